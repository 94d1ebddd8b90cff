package wordml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace is the WordprocessingML main namespace URI.
const Namespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ErrNoBody is returned when a document has no w:body element.
var ErrNoBody = errors.New("document has no w:body element")

// Element is one element located in a markup string by byte offsets.
type Element struct {
	// Name is the qualified name as written in the markup, e.g. "w:p".
	Name string
	// Start is the offset of the '<' opening the start tag.
	Start int
	// ContentStart is the offset just past the start tag.
	ContentStart int
	// ContentEnd is the offset of the '<' opening the end tag.
	ContentEnd int
	// End is the offset just past the end tag.
	End int
	// Parent is the index of the nearest enclosing element kept in the
	// tree, or -1.
	Parent int
}

// SelfClosing reports whether the element was written as <name/>.
func (e Element) SelfClosing() bool {
	return e.ContentStart == e.End
}

// Tree is the list of elements found by Scan, in document order.
type Tree struct {
	Elements []Element
}

// SyntaxError reports markup that is not well-formed.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed markup at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Scan walks doc and records the span of every element whose qualified name
// is in names. With no names every element is recorded.
func Scan(doc string, names ...string) (*Tree, error) {
	var keep map[string]bool
	if len(names) > 0 {
		keep = make(map[string]bool, len(names))
		for _, n := range names {
			keep[n] = true
		}
	}

	d := xml.NewDecoder(strings.NewReader(doc))
	tree := &Tree{}

	type open struct {
		name  string
		index int
	}
	var stack []open

	parent := func() int {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].index >= 0 {
				return stack[i].index
			}
		}
		return -1
	}

	for {
		off := int(d.InputOffset())
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SyntaxError{Offset: off, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := qualified(t.Name)
			idx := -1
			if keep == nil || keep[name] {
				idx = len(tree.Elements)
				tree.Elements = append(tree.Elements, Element{
					Name:         name,
					Start:        off,
					ContentStart: int(d.InputOffset()),
					Parent:       parent(),
				})
			}
			stack = append(stack, open{name: name, index: idx})
		case xml.EndElement:
			name := qualified(t.Name)
			if len(stack) == 0 {
				return nil, &SyntaxError{Offset: off, Err: fmt.Errorf("unexpected end element </%s>", name)}
			}
			top := stack[len(stack)-1]
			if top.name != name {
				return nil, &SyntaxError{Offset: off, Err: fmt.Errorf("element <%s> closed by </%s>", top.name, name)}
			}
			stack = stack[:len(stack)-1]
			if top.index >= 0 {
				el := &tree.Elements[top.index]
				el.ContentEnd = off
				el.End = int(d.InputOffset())
			}
		}
	}

	if len(stack) > 0 {
		return nil, &SyntaxError{Offset: len(doc), Err: fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name)}
	}

	return tree, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Find returns the indices of all elements with the given name.
func (t *Tree) Find(name string) []int {
	var out []int
	for i, el := range t.Elements {
		if el.Name == name {
			out = append(out, i)
		}
	}
	return out
}

// Outermost returns the indices of elements with the given name that are not
// nested inside another element of the same name.
func (t *Tree) Outermost(name string) []int {
	var out []int
	for _, i := range t.Find(name) {
		if t.Ancestor(i, name) < 0 {
			out = append(out, i)
		}
	}
	return out
}

// Ancestor returns the index of the nearest ancestor of element i with the
// given name, or -1.
func (t *Tree) Ancestor(i int, name string) int {
	for p := t.Elements[i].Parent; p >= 0; p = t.Elements[p].Parent {
		if t.Elements[p].Name == name {
			return p
		}
	}
	return -1
}

// Enclosing returns the innermost element with the given name whose content
// contains the byte range [start, end), or -1.
func (t *Tree) Enclosing(start, end int, name string) int {
	best := -1
	for i, el := range t.Elements {
		if el.Name != name || el.ContentStart > start || el.ContentEnd < end {
			continue
		}
		if best < 0 || el.Start >= t.Elements[best].Start {
			best = i
		}
	}
	return best
}

// Children returns the indices of the direct children of element i.
func (t *Tree) Children(i int) []int {
	var out []int
	for j := i + 1; j < len(t.Elements) && t.Elements[j].Start < t.Elements[i].End; j++ {
		if t.Elements[j].Parent == i {
			out = append(out, j)
		}
	}
	return out
}
