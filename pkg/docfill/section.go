package docfill

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

// Orientation is a page orientation.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// A4 landscape dimensions in twentieths of a point.
const (
	LandscapeWidth  = 16838
	LandscapeHeight = 11906
)

// SectionProperties is the page size descriptor of one section.
type SectionProperties struct {
	Width       int
	Height      int
	Orientation Orientation
}

// PageSize returns the w:pgSz element describing p.
func (p SectionProperties) PageSize() string {
	s := `<w:pgSz w:w="` + strconv.Itoa(p.Width) + `" w:h="` + strconv.Itoa(p.Height) + `"`
	if p.Orientation == Landscape {
		s += ` w:orient="landscape"`
	}
	return s + `/>`
}

// LandscapeSection is the descriptor ForceLandscape writes.
var LandscapeSection = SectionProperties{
	Width:       LandscapeWidth,
	Height:      LandscapeHeight,
	Orientation: Landscape,
}

const defaultMargins = `<w:pgMar w:top="1417" w:right="1417" w:bottom="1417" w:left="1417" w:header="708" w:footer="708" w:gutter="0"/>`

// sectPr children that must precede w:pgSz.
var beforePageSize = map[string]bool{
	"w:headerReference": true,
	"w:footerReference": true,
	"w:footnotePr":      true,
	"w:endnotePr":       true,
	"w:type":            true,
}

type edit struct {
	start, end int
	text       string
}

// ForceLandscape sets every section of doc to A4 landscape. Existing page
// sizes are overwritten whatever their orientation, sections without one
// gain one, and a document without any section gets a body-level section
// with default margins. Applying it twice gives the same result as once.
func ForceLandscape(doc string) (string, error) {
	tree, err := wordml.Scan(doc)
	if err != nil {
		return "", &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	sections := tree.Find("w:sectPr")
	if len(sections) == 0 {
		out, err := wordml.InsertBeforeBodyClose(doc, `<w:sectPr>`+LandscapeSection.PageSize()+defaultMargins+`</w:sectPr>`)
		if err != nil {
			return "", &ArchiveError{Reason: "cannot add a page section", Cause: err}
		}
		return out, nil
	}

	pageSize := LandscapeSection.PageSize()
	var edits []edit
	for _, s := range sections {
		sect := tree.Elements[s]
		children := tree.Children(s)

		replaced := false
		for _, c := range children {
			if el := tree.Elements[c]; el.Name == "w:pgSz" {
				edits = append(edits, edit{el.Start, el.End, pageSize})
				replaced = true
			}
		}
		if replaced {
			continue
		}

		if sect.SelfClosing() {
			open := strings.TrimSpace(strings.TrimSuffix(doc[sect.Start:sect.End], "/>")) + ">"
			edits = append(edits, edit{sect.Start, sect.End, open + pageSize + "</w:sectPr>"})
			continue
		}

		at := sect.ContentEnd
		for _, c := range children {
			if el := tree.Elements[c]; !beforePageSize[el.Name] {
				at = el.Start
				break
			}
		}
		edits = append(edits, edit{at, at, pageSize})
	}

	return applyEdits(doc, edits), nil
}

// ReadSections returns the page size of every section in document order. A
// section without w:pgSz reports zero dimensions and portrait orientation.
func ReadSections(doc string) ([]SectionProperties, error) {
	tree, err := wordml.Scan(doc)
	if err != nil {
		return nil, &ArchiveError{Reason: "document markup is not well-formed", Cause: err}
	}

	var out []SectionProperties
	for _, s := range tree.Find("w:sectPr") {
		props := SectionProperties{Orientation: Portrait}
		for _, c := range tree.Children(s) {
			el := tree.Elements[c]
			if el.Name != "w:pgSz" {
				continue
			}
			props = parsePageSize(doc[el.Start:el.ContentStart])
			break
		}
		out = append(out, props)
	}
	return out, nil
}

func parsePageSize(tag string) SectionProperties {
	props := SectionProperties{Orientation: Portrait}
	tok, err := xml.NewDecoder(strings.NewReader(tag)).RawToken()
	if err != nil {
		return props
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return props
	}

	orient := ""
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "w":
			props.Width, _ = strconv.Atoi(a.Value)
		case "h":
			props.Height, _ = strconv.Atoi(a.Value)
		case "orient":
			orient = a.Value
		}
	}
	if orient == string(Landscape) || (orient == "" && props.Width > props.Height) {
		props.Orientation = Landscape
	}
	return props
}

func applyEdits(doc string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var b strings.Builder
	b.Grow(len(doc) + 64*len(edits))
	pos := 0
	for _, e := range edits {
		b.WriteString(doc[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(doc[pos:])
	return b.String()
}
