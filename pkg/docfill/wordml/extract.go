package wordml

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// BlockKind distinguishes extracted paragraphs from tables.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockTable
)

// Block is one top-level piece of body content reduced to plain text.
type Block struct {
	Kind BlockKind
	// Text holds the paragraph text for BlockParagraph.
	Text string
	// Rows holds cell texts for BlockTable. Nested tables are flattened
	// into the text of the enclosing cell.
	Rows [][]string
}

// Layout is the plain-text content of a document plus its page geometry.
type Layout struct {
	Blocks []Block
	// PageWidth and PageHeight are in twentieths of a point, taken from the
	// last w:pgSz in the document. Zero when absent.
	PageWidth  int
	PageHeight int
	Landscape  bool
}

// Extract reads document markup and returns its text content in order.
func Extract(r io.Reader) (*Layout, error) {
	d := xml.NewDecoder(r)
	layout := &Layout{}

	var (
		para     strings.Builder
		table    *Block
		tblDepth int
		inText   bool
	)

	cell := func() *string {
		if table == nil || len(table.Rows) == 0 {
			return nil
		}
		row := table.Rows[len(table.Rows)-1]
		if len(row) == 0 {
			return nil
		}
		return &table.Rows[len(table.Rows)-1][len(row)-1]
	}

	write := func(s string) {
		if tblDepth > 0 {
			if c := cell(); c != nil {
				*c += s
			}
			return
		}
		para.WriteString(s)
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != Namespace {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				if tblDepth == 0 {
					table = &Block{Kind: BlockTable}
				}
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					table.Rows = append(table.Rows, nil)
				}
			case "tc":
				if tblDepth == 1 && len(table.Rows) > 0 {
					last := len(table.Rows) - 1
					table.Rows[last] = append(table.Rows[last], "")
				}
			case "p":
				if tblDepth == 0 {
					para.Reset()
				} else if c := cell(); c != nil && *c != "" {
					*c += "\n"
				}
			case "t":
				inText = true
			case "tab":
				write("\t")
			case "br", "cr":
				write("\n")
			case "pgSz":
				readPageSize(t, layout)
			}
		case xml.EndElement:
			if t.Name.Space != Namespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if tblDepth == 0 {
					layout.Blocks = append(layout.Blocks, Block{Kind: BlockParagraph, Text: para.String()})
				}
			case "tbl":
				tblDepth--
				if tblDepth == 0 && table != nil {
					layout.Blocks = append(layout.Blocks, *table)
					table = nil
				}
			}
		case xml.CharData:
			if inText {
				write(string(t))
			}
		}
	}

	return layout, nil
}

func readPageSize(t xml.StartElement, layout *Layout) {
	orient := ""
	for _, a := range t.Attr {
		switch a.Name.Local {
		case "w":
			layout.PageWidth, _ = strconv.Atoi(a.Value)
		case "h":
			layout.PageHeight, _ = strconv.Atoi(a.Value)
		case "orient":
			orient = a.Value
		}
	}
	layout.Landscape = orient == "landscape" || (orient == "" && layout.PageWidth > layout.PageHeight)
}
