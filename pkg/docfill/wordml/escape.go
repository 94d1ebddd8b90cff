package wordml

import (
	"encoding/xml"
	"strings"
)

// EscapeText escapes s for use as character data.
func EscapeText(s string) string {
	if !strings.ContainsAny(s, "&<>\"'\t\r\n") {
		return s
	}
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// BodyClose returns the offset of the closing </w:body> tag.
func BodyClose(doc string) (int, error) {
	tree, err := Scan(doc, "w:body")
	if err != nil {
		return -1, err
	}
	bodies := tree.Find("w:body")
	if len(bodies) == 0 {
		return -1, ErrNoBody
	}
	return tree.Elements[bodies[len(bodies)-1]].ContentEnd, nil
}

// InsertAt returns doc with fragment inserted at offset.
func InsertAt(doc string, offset int, fragment string) string {
	var b strings.Builder
	b.Grow(len(doc) + len(fragment))
	b.WriteString(doc[:offset])
	b.WriteString(fragment)
	b.WriteString(doc[offset:])
	return b.String()
}

// InsertBeforeBodyClose inserts fragment immediately before </w:body>. A
// self-closing <w:body/> is expanded to hold the fragment.
func InsertBeforeBodyClose(doc, fragment string) (string, error) {
	tree, err := Scan(doc, "w:body")
	if err != nil {
		return "", err
	}
	bodies := tree.Find("w:body")
	if len(bodies) == 0 {
		return "", ErrNoBody
	}
	body := tree.Elements[bodies[len(bodies)-1]]
	if body.SelfClosing() {
		return doc[:body.Start] + "<w:body>" + fragment + "</w:body>" + doc[body.End:], nil
	}
	return InsertAt(doc, body.ContentEnd, fragment), nil
}
