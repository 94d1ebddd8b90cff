package docfill

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

const (
	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="` + documentContentType + `"/></Types>`

	testRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="` + officeDocumentRelType + `" Target="word/document.xml"/></Relationships>`

	testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`
)

type zipEntry struct {
	name    string
	content string
	method  uint16
}

// documentXML wraps body markup in a w:document.
func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="` + wordml.Namespace + `"><w:body>` + body + `</w:body></w:document>`
}

// para is a one-run paragraph.
func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func buildZip(t testing.TB, entries ...zipEntry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, e := range entries {
		method := e.method
		if method == 0 {
			method = zip.Deflate
		}
		f, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		_, err = f.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildDocx returns a minimal DOCX whose body is the given markup.
func buildDocx(t testing.TB, body string) []byte {
	t.Helper()
	return buildZip(t,
		zipEntry{name: contentTypesPath, content: testContentTypes},
		zipEntry{name: rootRelsPath, content: testRootRels},
		zipEntry{name: DocumentPath, content: documentXML(body)},
		zipEntry{name: "word/styles.xml", content: testStyles},
		zipEntry{name: "word/media/image1.png", content: "\x89PNG fake image", method: zip.Store},
	)
}

func loadDocx(t testing.TB, body string) *Package {
	t.Helper()
	pkg, err := Load(buildDocx(t, body))
	require.NoError(t, err)
	return pkg
}

// paragraphs returns the text of each top-level paragraph and, for tables,
// one "cell|cell" string per row.
func paragraphs(t testing.TB, doc string) []string {
	t.Helper()
	layout, err := wordml.Extract(strings.NewReader(doc))
	require.NoError(t, err)
	var out []string
	for _, b := range layout.Blocks {
		switch b.Kind {
		case wordml.BlockParagraph:
			out = append(out, b.Text)
		case wordml.BlockTable:
			for _, row := range b.Rows {
				out = append(out, strings.Join(row, "|"))
			}
		}
	}
	return out
}

// wellFormed fails the test when doc is not balanced markup.
func wellFormed(t testing.TB, doc string) {
	t.Helper()
	_, err := wordml.Scan(doc)
	require.NoError(t, err, "output is not well-formed:\n%s", doc)
}
