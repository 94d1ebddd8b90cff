// Package wordml provides offset-based helpers for WordprocessingML markup.
//
// The docfill engine rewrites word/document.xml as text so that everything it
// does not touch is preserved byte for byte. This package supplies the
// XML-aware half of that approach: instead of building an object model, it
// walks the markup with encoding/xml raw tokens and reports where each element
// starts and ends in the original string. Callers splice the string using
// those offsets, which keeps every edit aligned to balanced element
// boundaries.
//
// # Structure Organization
//
//   - scan.go: Scan builds a Tree of Element spans, optionally filtered by name
//   - escape.go: text escaping and body-close lookup
//   - extract.go: plain-text extraction of paragraphs, tables and page size
//
// # Usage
//
//	tree, err := wordml.Scan(doc, "w:sectPr", "w:pgSz")
//	if err != nil {
//	    return err
//	}
//	for _, i := range tree.Find("w:sectPr") {
//	    sect := tree.Elements[i]
//	    fmt.Println(doc[sect.Start:sect.End])
//	}
package wordml
