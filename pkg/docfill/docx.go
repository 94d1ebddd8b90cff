package docfill

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// DocumentPath is the conventional location of the main document part.
	DocumentPath = "word/document.xml"

	contentTypesPath = "[Content_Types].xml"
	rootRelsPath     = "_rels/.rels"

	officeDocumentRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	documentContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	templateContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.template.main+xml"
)

// Relationship represents a relationship in the DOCX package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// Package is an immutable view of a DOCX container. Replace returns a new
// Package; entries that were never replaced are written back with their
// original compressed bytes.
type Package struct {
	entries []packageEntry
	index   map[string]int
	main    string
}

type packageEntry struct {
	name string
	// file is the entry as loaded. It is nil for added entries.
	file *zip.File
	// data replaces the loaded content when non-nil.
	data []byte
}

// Load parses a DOCX container. It fails with an *ArchiveError when data is
// not a zip archive and with a *MissingEntryError when the archive has no
// main document part.
func Load(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ArchiveError{Reason: "not a zip container", Cause: err}
	}

	pkg := &Package{
		entries: make([]packageEntry, 0, len(zr.File)),
		index:   make(map[string]int, len(zr.File)),
	}

	// Index all parts by name
	for _, file := range zr.File {
		if _, dup := pkg.index[file.Name]; dup {
			continue
		}
		pkg.index[file.Name] = len(pkg.entries)
		pkg.entries = append(pkg.entries, packageEntry{name: file.Name, file: file})
	}

	pkg.main = pkg.resolveMain()
	if pkg.main == "" {
		return nil, &MissingEntryError{Path: DocumentPath}
	}

	// The main part must decompress cleanly; zip.NewReader only reads the
	// central directory.
	if _, err := pkg.Entry(pkg.main); err != nil {
		return nil, &ArchiveError{Reason: "unreadable document body", Cause: err}
	}

	return pkg, nil
}

// Open reads and loads a DOCX file from disk.
func Open(path string) (*Package, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("read", path, err)
	}
	return Load(content)
}

// resolveMain follows the officeDocument relationship in _rels/.rels and
// falls back to word/document.xml.
func (p *Package) resolveMain() string {
	if content, err := p.Entry(rootRelsPath); err == nil {
		var rels Relationships
		if xml.Unmarshal(content, &rels) == nil {
			for _, rel := range rels.Relationship {
				if rel.Type != officeDocumentRelType {
					continue
				}
				target := strings.TrimPrefix(rel.Target, "/")
				if p.Has(target) {
					return target
				}
			}
		}
	}
	if p.Has(DocumentPath) {
		return DocumentPath
	}
	return ""
}

// MainPath returns the entry name of the main document part.
func (p *Package) MainPath() string {
	return p.main
}

// Has reports whether the package contains the named entry.
func (p *Package) Has(path string) bool {
	_, ok := p.index[path]
	return ok
}

// Entries returns all entry names in archive order.
func (p *Package) Entries() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.name
	}
	return names
}

// Entry returns a copy of the named entry's content.
func (p *Package) Entry(path string) ([]byte, error) {
	i, ok := p.index[path]
	if !ok {
		return nil, &MissingEntryError{Path: path}
	}
	e := p.entries[i]
	if e.data != nil {
		return append([]byte(nil), e.data...), nil
	}

	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", path, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", path, err)
	}
	return content, nil
}

// Text returns the named entry as a string.
func (p *Package) Text(path string) (string, error) {
	content, err := p.Entry(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// DocumentXML returns the main document part as a string.
func (p *Package) DocumentXML() (string, error) {
	return p.Text(p.main)
}

// Replace returns a new Package in which path holds content. A path that
// does not exist is appended. The receiver is left unchanged.
func (p *Package) Replace(path string, content []byte) *Package {
	next := &Package{
		entries: make([]packageEntry, len(p.entries), len(p.entries)+1),
		index:   p.index,
		main:    p.main,
	}
	copy(next.entries, p.entries)

	data := append(make([]byte, 0, len(content)), content...)
	if i, ok := p.index[path]; ok {
		next.entries[i] = packageEntry{name: path, file: p.entries[i].file, data: data}
		return next
	}

	next.index = make(map[string]int, len(p.index)+1)
	for k, v := range p.index {
		next.index[k] = v
	}
	next.index[path] = len(next.entries)
	next.entries = append(next.entries, packageEntry{name: path, data: data})
	return next
}

// ReplaceText is Replace for string content.
func (p *Package) ReplaceText(path, content string) *Package {
	return p.Replace(path, []byte(content))
}

// WithDocumentXML returns a new Package with the main document part replaced.
func (p *Package) WithDocumentXML(content string) *Package {
	return p.ReplaceText(p.main, content)
}

// Serialize writes the package as a zip archive. Entries keep their load
// order; added entries follow.
func (p *Package) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := p.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the archive to w.
func (p *Package) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, e := range p.entries {
		if e.data == nil {
			// Copy untouched parts as-is, without recompressing
			if err := zw.Copy(e.file); err != nil {
				return fmt.Errorf("failed to copy %s: %w", e.name, err)
			}
			continue
		}

		header := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.file != nil {
			header.Modified = e.file.Modified
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

// IsTemplate reports whether the main part is declared with the template
// (.dotx) content type.
func (p *Package) IsTemplate() bool {
	ct, err := p.Text(contentTypesPath)
	if err != nil {
		return false
	}
	return strings.Contains(ct, templateContentType)
}

// AsDocument returns a Package whose main part is declared as a regular
// document so the output opens as .docx. Documents are returned unchanged.
func (p *Package) AsDocument() (*Package, error) {
	if !p.IsTemplate() {
		return p, nil
	}
	ct, err := p.Text(contentTypesPath)
	if err != nil {
		return nil, err
	}
	return p.ReplaceText(contentTypesPath, strings.ReplaceAll(ct, templateContentType, documentContentType)), nil
}
