package docfill

import (
	"strings"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

// mergeSplitTokens rejoins placeholders that a word processor split across
// several w:t elements of one paragraph, e.g. <w:t>{Na</w:t>...<w:t>me}</w:t>.
// The whole token is moved into the w:t where it starts. Every w:t that ends
// up holding a token is marked xml:space="preserve" so substituted values
// keep their spaces.
func mergeSplitTokens(doc string) (string, error) {
	tree, err := wordml.Scan(doc, "w:p", "w:t")
	if err != nil {
		return "", err
	}

	// Group text nodes by paragraph, in document order
	var order []int
	groups := make(map[int][]int)
	for i, el := range tree.Elements {
		if el.Name != "w:t" {
			continue
		}
		key := tree.Ancestor(i, "w:p")
		if key < 0 {
			key = -1 - i
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	rewritten := make(map[int]string)
	for _, key := range order {
		for node, text := range mergeParagraph(doc, tree, groups[key]) {
			rewritten[node] = text
		}
	}
	if len(rewritten) == 0 {
		return doc, nil
	}

	var b strings.Builder
	b.Grow(len(doc) + 32*len(rewritten))
	pos := 0
	for i, el := range tree.Elements {
		text, ok := rewritten[i]
		if !ok {
			continue
		}
		if el.SelfClosing() {
			if text == "" {
				continue
			}
			b.WriteString(doc[pos:el.Start])
			b.WriteString(`<w:t xml:space="preserve">`)
			b.WriteString(text)
			b.WriteString("</w:t>")
			pos = el.End
			continue
		}
		b.WriteString(doc[pos:el.Start])
		start := doc[el.Start:el.ContentStart]
		if len(Tokenize(text, 0)) > 0 {
			start = ensurePreserve(start)
		}
		b.WriteString(start)
		b.WriteString(text)
		b.WriteString(doc[el.ContentEnd:el.End])
		pos = el.End
	}
	b.WriteString(doc[pos:])
	return b.String(), nil
}

// mergeParagraph returns the new text of each node in nodes that changes.
// Nodes whose only change is gaining xml:space are included unchanged.
func mergeParagraph(doc string, tree *wordml.Tree, nodes []int) map[int]string {
	var (
		joined strings.Builder
		starts = make([]int, len(nodes))
	)
	for k, i := range nodes {
		el := tree.Elements[i]
		starts[k] = joined.Len()
		joined.WriteString(doc[el.ContentStart:el.ContentEnd])
	}
	text := joined.String()
	if !strings.Contains(text, "{") {
		return nil
	}

	// owner[k] is the node index (into nodes) each byte of text belongs to
	owner := make([]int, len(text))
	for k := range nodes {
		end := len(text)
		if k+1 < len(nodes) {
			end = starts[k+1]
		}
		for j := starts[k]; j < end; j++ {
			owner[j] = k
		}
	}

	changed := make(map[int]bool)
	for _, tok := range Tokenize(text, 0) {
		first := owner[tok.Start]
		last := owner[tok.End-1]
		for k := first; k <= last; k++ {
			changed[k] = true
		}
		for j := tok.Start; j < tok.End; j++ {
			owner[j] = first
		}
	}
	if len(changed) == 0 {
		return nil
	}

	parts := make([]strings.Builder, len(nodes))
	for j := 0; j < len(text); j++ {
		parts[owner[j]].WriteByte(text[j])
	}

	out := make(map[int]string, len(changed))
	for k := range changed {
		out[nodes[k]] = parts[k].String()
	}
	return out
}

// ensurePreserve adds xml:space="preserve" to a w:t start tag that lacks it.
func ensurePreserve(startTag string) string {
	if strings.Contains(startTag, "xml:space") {
		return startTag
	}
	return strings.TrimSuffix(startTag, ">") + ` xml:space="preserve">`
}
