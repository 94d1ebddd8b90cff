package docfill

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

// lineBreak ends the current text node, emits a break and reopens text.
const lineBreak = `</w:t><w:br/><w:t xml:space="preserve">`

// Binder substitutes placeholders and expands loop regions in document
// markup.
type Binder struct {
	// LoopName is the loop region bound to the row list.
	LoopName string
	// Linebreaks turns newlines in values into w:br elements.
	Linebreaks bool
}

// NewBinder creates a binder for the given loop name.
func NewBinder(loopName string, linebreaks bool) *Binder {
	if loopName == "" {
		loopName = "items"
	}
	return &Binder{LoopName: loopName, Linebreaks: linebreaks}
}

// Bind returns doc with every {Name} replaced by its field value and every
// loop region repeated once per row, in row order. Missing fields render as
// the empty string. Loop regions with an unknown name expand to nothing.
func (b *Binder) Bind(doc string, fields FieldMap, rows []TableRow) (string, error) {
	merged, err := mergeSplitTokens(doc)
	if err != nil {
		return "", &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	tokens, tree, err := collectTokens(merged)
	if err != nil {
		return "", &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	GetLogger().Debug("binding template",
		zap.Int("tokens", len(tokens)),
		zap.Int("rows", len(rows)))

	root := &scope{
		values: fields,
		lists:  map[string][]TableRow{b.LoopName: rows},
	}

	bd := &binding{binder: b, doc: merged, tree: tree}
	var out strings.Builder
	out.Grow(len(merged))
	if err := bd.emit(&out, 0, len(merged), tokens, root); err != nil {
		return "", err
	}
	return out.String(), nil
}

type scope struct {
	values map[string]string
	lists  map[string][]TableRow
	parent *scope
}

func (s *scope) lookup(name string) string {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.values[name]; ok {
			return v
		}
	}
	return ""
}

func (s *scope) list(name string) []TableRow {
	for c := s; c != nil; c = c.parent {
		if l, ok := c.lists[name]; ok {
			return l
		}
	}
	return nil
}

// region is the markup a loop pair governs. outer is cut from the output and
// body is emitted once per row.
type region struct {
	name                 string
	outerStart, outerEnd int
	bodyStart, bodyEnd   int
	open, close          int
}

type binding struct {
	binder *Binder
	doc    string
	tree   *wordml.Tree
}

// emit writes doc[from:to] with tokens bound against sc. tokens holds every
// token inside the range, in document order.
func (bd *binding) emit(w *strings.Builder, from, to int, tokens []Token, sc *scope) error {
	pairs, err := pairLoops(tokens)
	if err != nil {
		return err
	}

	regions := make([]region, 0, len(pairs))
	for _, p := range pairs {
		r, err := bd.region(tokens[p[0]], tokens[p[1]])
		if err != nil {
			return err
		}
		if r.outerStart < from || r.outerEnd > to {
			return &TemplateSyntaxError{
				Message: "loop region crosses an enclosing loop",
				Marker:  tokens[p[0]].Raw,
				Offset:  tokens[p[0]].Start,
			}
		}
		r.open, r.close = p[0], p[1]
		regions = append(regions, r)
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].outerStart < regions[j].outerStart })

	cursor := from
	var last *region
	for i := range regions {
		r := &regions[i]
		if last != nil && r.outerStart < last.outerEnd {
			// A loop fully inside another region's body is expanded with it.
			if r.outerEnd <= last.bodyEnd && r.outerStart >= last.bodyStart {
				continue
			}
			return &TemplateSyntaxError{
				Message: "loop regions overlap",
				Marker:  tokens[r.open].Raw,
				Offset:  tokens[r.open].Start,
			}
		}

		bd.plain(w, cursor, r.outerStart, tokens, sc)

		inner := within(tokens, r.bodyStart, r.bodyEnd)
		for k := range inner {
			if inner[k].Start == tokens[r.open].Start || inner[k].Start == tokens[r.close].Start {
				inner[k].Type = tokenDrop
			}
		}
		for _, row := range sc.list(r.name) {
			child := &scope{values: row.Values(), parent: sc}
			if err := bd.emit(w, r.bodyStart, r.bodyEnd, inner, child); err != nil {
				return err
			}
		}

		cursor = r.outerEnd
		last = r
	}
	bd.plain(w, cursor, to, tokens, sc)
	return nil
}

// plain writes doc[from:to] substituting value tokens and cutting drop
// tokens.
func (bd *binding) plain(w *strings.Builder, from, to int, tokens []Token, sc *scope) {
	pos := from
	for _, t := range tokens {
		if t.Start < from || t.End > to {
			continue
		}
		w.WriteString(bd.doc[pos:t.Start])
		if t.Type == TokenValue {
			w.WriteString(bd.binder.value(sc.lookup(t.Name)))
		}
		pos = t.End
	}
	w.WriteString(bd.doc[pos:to])
}

// region works out which markup a loop pair repeats. Markers in one
// paragraph repeat the text between them. Markers in different cells of one
// table row repeat the row; markers in sibling rows repeat the rows between
// them. Markers that each stand alone in sibling paragraphs, including
// paragraphs of one table cell, repeat the content between those paragraphs,
// and other sibling paragraphs are repeated whole.
func (bd *binding) region(open, close Token) (region, error) {
	els := bd.tree.Elements
	r := region{name: open.Name}

	switch {
	case open.para == close.para:
		r.outerStart, r.outerEnd = open.Start, close.End
		r.bodyStart, r.bodyEnd = open.End, close.Start

	case open.row >= 0 && open.row == close.row && bd.cell(open) != bd.cell(close):
		row := els[open.row]
		r.outerStart, r.outerEnd = row.Start, row.End
		r.bodyStart, r.bodyEnd = row.Start, row.End

	case open.row >= 0 && close.row >= 0 && els[open.row].Parent == els[close.row].Parent:
		r.outerStart, r.outerEnd = els[open.row].Start, els[close.row].End
		r.bodyStart, r.bodyEnd = r.outerStart, r.outerEnd

	case open.para >= 0 && close.para >= 0 && els[open.para].Parent == els[close.para].Parent:
		first, last := els[open.para], els[close.para]
		r.outerStart, r.outerEnd = first.Start, last.End
		if open.sole && close.sole {
			r.bodyStart, r.bodyEnd = first.End, last.Start
		} else {
			r.bodyStart, r.bodyEnd = r.outerStart, r.outerEnd
		}

	default:
		return r, &TemplateSyntaxError{
			Message: fmt.Sprintf("loop %q must open and close in the same paragraph, table or container", open.Name),
			Marker:  open.Raw,
			Offset:  open.Start,
		}
	}

	if r.outerEnd < r.outerStart || r.bodyEnd < r.bodyStart {
		return r, &TemplateSyntaxError{Message: "loop end precedes loop start", Marker: close.Raw, Offset: close.Start}
	}
	return r, nil
}

// cell returns the table cell holding t, or -1.
func (bd *binding) cell(t Token) int {
	if t.para < 0 {
		return -1
	}
	return bd.tree.Ancestor(t.para, "w:tc")
}

// pairLoops matches loop markers and returns the outermost pairs as token
// indices.
func pairLoops(tokens []Token) ([][2]int, error) {
	var (
		stack []int
		pairs [][2]int
	)
	for i, t := range tokens {
		switch t.Type {
		case TokenLoopStart:
			stack = append(stack, i)
		case TokenLoopEnd:
			if len(stack) == 0 {
				return nil, &TemplateSyntaxError{Message: "loop end without matching start", Marker: t.Raw, Offset: t.Start}
			}
			top := stack[len(stack)-1]
			if t.Name != "" && tokens[top].Name != t.Name {
				return nil, &TemplateSyntaxError{
					Message: fmt.Sprintf("loop %q closed by %q", tokens[top].Name, t.Name),
					Marker:  t.Raw,
					Offset:  t.Start,
				}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				pairs = append(pairs, [2]int{top, i})
			}
		}
	}
	if len(stack) > 0 {
		t := tokens[stack[0]]
		return nil, &TemplateSyntaxError{Message: fmt.Sprintf("unclosed loop %q", t.Name), Marker: t.Raw, Offset: t.Start}
	}
	return pairs, nil
}

// within returns a copy of the tokens that lie in [from, to).
func within(tokens []Token, from, to int) []Token {
	var out []Token
	for _, t := range tokens {
		if t.Start >= from && t.End <= to {
			out = append(out, t)
		}
	}
	return out
}

// value escapes a field value for character data.
func (b *Binder) value(v string) string {
	if !b.Linebreaks || !strings.ContainsAny(v, "\r\n") {
		return wordml.EscapeText(v)
	}
	v = strings.ReplaceAll(v, "\r\n", "\n")
	lines := strings.Split(v, "\n")
	for i, line := range lines {
		lines[i] = wordml.EscapeText(line)
	}
	return strings.Join(lines, lineBreak)
}
