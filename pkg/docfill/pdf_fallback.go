package docfill

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

const (
	fallbackName     = "pdf-fallback"
	fallbackFontSize = 10
	fallbackLine     = 5.0
	fallbackMargin   = 20.0
)

// PDFFallback renders the text and tables of a document with gofpdf. The
// output keeps content and page orientation but not styling.
type PDFFallback struct {
	// FontPath is an optional UTF-8 TrueType font.
	FontPath string
	// FontCandidates are probed in order when FontPath is empty. Without a
	// font text is written in Helvetica and characters outside cp1252 are
	// lost.
	FontCandidates []string
	Logger         *zap.Logger
}

// Font returns the TrueType font the fallback writes with, or "" for the
// built-in Helvetica.
func (f *PDFFallback) Font() string {
	if f.FontPath != "" {
		return f.FontPath
	}
	for _, c := range f.FontCandidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	return ""
}

// Name implements Strategy.
func (f *PDFFallback) Name() string {
	return fallbackName
}

// Render implements Strategy.
func (f *PDFFallback) Render(ctx context.Context, docx []byte) ([]byte, error) {
	pkg, err := Load(docx)
	if err != nil {
		return nil, f.failed(err)
	}
	doc, err := pkg.DocumentXML()
	if err != nil {
		return nil, f.failed(err)
	}
	layout, err := wordml.Extract(strings.NewReader(doc))
	if err != nil {
		return nil, f.failed(err)
	}

	pdf := gofpdf.New(pageOrientation(layout), "mm", "A4", "")
	pdf.SetMargins(fallbackMargin, fallbackMargin, fallbackMargin)
	pdf.SetAutoPageBreak(true, fallbackMargin)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if font := f.Font(); font != "" {
		pdf.AddUTF8Font("body", "", font)
		family = "body"
		tr = func(s string) string { return s }
	} else {
		f.logger().Warn("no unicode font for the PDF fallback; text outside cp1252 is dropped",
			zap.Strings("candidates", f.FontCandidates))
	}
	pdf.SetFont(family, "", fallbackFontSize)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	for _, block := range layout.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, f.failed(err)
		}
		switch block.Kind {
		case wordml.BlockParagraph:
			if strings.TrimSpace(block.Text) == "" {
				pdf.Ln(fallbackLine)
				continue
			}
			pdf.MultiCell(0, fallbackLine, tr(block.Text), "", "L", false)
		case wordml.BlockTable:
			if err := writeTable(ctx, pdf, tr, block.Rows, usable); err != nil {
				return nil, f.failed(err)
			}
		}
	}

	if pdf.Err() {
		return nil, f.failed(pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, f.failed(err)
	}
	return buf.Bytes(), nil
}

// pageOrientation returns the gofpdf orientation code for the document's
// last section.
func pageOrientation(layout *wordml.Layout) string {
	if layout.Landscape {
		return "L"
	}
	return "P"
}

func writeTable(ctx context.Context, pdf *gofpdf.Fpdf, tr func(string) string, rows [][]string, width float64) error {
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return nil
	}
	cellWidth := width / float64(cols)

	for i, row := range rows {
		if i%1000 == 999 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for c := 0; c < cols; c++ {
			text := ""
			if c < len(row) {
				text = fitCell(pdf, tr, row[c], cellWidth-2)
			}
			pdf.CellFormat(cellWidth, fallbackLine+1, text, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(fallbackLine)
	return nil
}

// fitCell shortens text so it fits on one line of the given width and
// returns it translated for the current font.
func fitCell(pdf *gofpdf.Fpdf, tr func(string) string, text string, width float64) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if out := tr(text); pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return tr(string(runes) + "...")
}

func (f *PDFFallback) logger() *zap.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return GetLogger()
}

func (f *PDFFallback) failed(cause error) error {
	return &RenderError{Kind: KindRenderFailed, Strategy: fallbackName, Cause: fmt.Errorf("fallback conversion: %w", cause)}
}
