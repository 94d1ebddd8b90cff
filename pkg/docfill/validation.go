package docfill

import (
	"fmt"
	"slices"
	"sort"
)

// IssueSeverity indicates template issue severity.
type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
)

// IssueCode identifies a kind of template issue.
type IssueCode string

const (
	IssueCodeLoopMismatch  IssueCode = "LOOP_MISMATCH"
	IssueCodeLoopPlacement IssueCode = "LOOP_PLACEMENT"
	IssueCodeUnknownLoop   IssueCode = "UNKNOWN_LOOP"
)

// TemplateIssue is one problem found in a template.
type TemplateIssue struct {
	Severity IssueSeverity `json:"severity"`
	Code     IssueCode     `json:"code"`
	Message  string        `json:"message"`
	Marker   string        `json:"marker,omitempty"`
	Offset   int           `json:"offset"`
}

// TemplateInfo describes the placeholders a template uses.
type TemplateInfo struct {
	// Fields are placeholders outside any loop.
	Fields []string `json:"fields"`
	// Loops are the loop region names, outermost first.
	Loops []string `json:"loops"`
	// LoopFields maps a loop name to the placeholders used inside it.
	LoopFields map[string][]string `json:"loopFields"`
	Issues     []TemplateIssue     `json:"issues"`
}

// Valid reports whether the template has no error-level issues.
func (ti *TemplateInfo) Valid() bool {
	for _, issue := range ti.Issues {
		if issue.Severity == IssueSeverityError {
			return false
		}
	}
	return true
}

// Inspect lists the fields and loops of a template and reports loop markers
// that Bind would reject. loopName is the region the row list binds to; other
// loop names are reported as warnings.
func Inspect(pkg *Package, loopName string) (*TemplateInfo, error) {
	doc, err := pkg.DocumentXML()
	if err != nil {
		return nil, err
	}
	merged, err := mergeSplitTokens(doc)
	if err != nil {
		return nil, &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}
	tokens, tree, err := collectTokens(merged)
	if err != nil {
		return nil, &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	info := &TemplateInfo{LoopFields: make(map[string][]string)}
	fields := make(map[string]bool)
	loopFields := make(map[string]map[string]bool)
	var stack []Token

	for _, t := range tokens {
		switch t.Type {
		case TokenValue:
			if len(stack) == 0 {
				fields[t.Name] = true
				continue
			}
			name := stack[len(stack)-1].Name
			if loopFields[name] == nil {
				loopFields[name] = make(map[string]bool)
			}
			loopFields[name][t.Name] = true

		case TokenLoopStart:
			if !slices.Contains(info.Loops, t.Name) {
				info.Loops = append(info.Loops, t.Name)
				if loopName != "" && t.Name != loopName {
					info.Issues = append(info.Issues, TemplateIssue{
						Severity: IssueSeverityWarning,
						Code:     IssueCodeUnknownLoop,
						Message:  fmt.Sprintf("loop %q is not bound to any data and expands to nothing", t.Name),
						Marker:   t.Raw,
						Offset:   t.Start,
					})
				}
			}
			stack = append(stack, t)

		case TokenLoopEnd:
			if len(stack) == 0 {
				info.Issues = append(info.Issues, TemplateIssue{
					Severity: IssueSeverityError,
					Code:     IssueCodeLoopMismatch,
					Message:  "loop end without matching start",
					Marker:   t.Raw,
					Offset:   t.Start,
				})
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if t.Name != "" && t.Name != open.Name {
				info.Issues = append(info.Issues, TemplateIssue{
					Severity: IssueSeverityError,
					Code:     IssueCodeLoopMismatch,
					Message:  fmt.Sprintf("loop %q closed by %q", open.Name, t.Name),
					Marker:   t.Raw,
					Offset:   t.Start,
				})
				continue
			}
			bd := &binding{doc: merged, tree: tree}
			if _, err := bd.region(open, t); err != nil {
				info.Issues = append(info.Issues, TemplateIssue{
					Severity: IssueSeverityError,
					Code:     IssueCodeLoopPlacement,
					Message:  err.(*TemplateSyntaxError).Message,
					Marker:   open.Raw,
					Offset:   open.Start,
				})
			}
		}
	}

	for _, open := range stack {
		info.Issues = append(info.Issues, TemplateIssue{
			Severity: IssueSeverityError,
			Code:     IssueCodeLoopMismatch,
			Message:  fmt.Sprintf("unclosed loop %q", open.Name),
			Marker:   open.Raw,
			Offset:   open.Start,
		})
	}

	info.Fields = sortedKeys(fields)
	for name, set := range loopFields {
		info.LoopFields[name] = sortedKeys(set)
	}
	sort.SliceStable(info.Issues, func(i, j int) bool { return info.Issues[i].Offset < info.Issues[j].Offset })
	return info, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

