package docfill

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

const (
	// TableMarker is replaced by the synthesized table when present.
	TableMarker = "<!--TABLE-->"

	// DateLayout is the day.month.year format of synthesized dates.
	DateLayout = "02.01.2006"

	columnWidth = 2000
)

// TableHeaders are the column labels of a synthesized table.
var TableHeaders = [5]string{
	"Наименование товара",
	"Дата поставки",
	"Количество",
	"Цена за единицу",
	"Сумма",
}

// escapedTableMarker is the marker as typed into a word processor.
var escapedTableMarker = wordml.EscapeText(TableMarker)

// Synthesizer generates tables of random product rows. It is safe for
// concurrent use.
type Synthesizer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	since time.Time
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSeed makes the row sequence reproducible.
func WithSeed(seed1, seed2 uint64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.rng = rand.New(rand.NewPCG(seed1, seed2))
	}
}

// WithClock sets the upper bound of generated dates.
func WithClock(now func() time.Time) SynthesizerOption {
	return func(s *Synthesizer) {
		s.now = now
	}
}

// NewSynthesizer creates a synthesizer. Dates fall between 1 January 2023
// and now.
func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		since: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.Local),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rows generates n rows. Quantity is 1..100, the unit price 10.00..1009.99
// and the total is exactly quantity times unit price.
func (s *Synthesizer) Rows(n int) []TableRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	span := end.Sub(s.since)

	rows := make([]TableRow, n)
	for i := range rows {
		date := s.since
		if span > 0 {
			date = s.since.Add(time.Duration(s.rng.Int64N(int64(span))))
		}
		quantity := s.rng.IntN(100) + 1
		price := Cents(1000 + s.rng.Int64N(100000))

		rows[i] = TableRow{
			Name:      fmt.Sprintf("Товар %d", i+1),
			Date:      date.Format(DateLayout),
			Quantity:  quantity,
			UnitPrice: price,
			Total:     price.Mul(quantity),
		}
	}
	return rows
}

// Synthesize returns a table fragment with a header row and n data rows.
func (s *Synthesizer) Synthesize(n int) (string, error) {
	if n < 0 {
		return "", &InputError{Field: "rows", Message: fmt.Sprintf("row count must not be negative, got %d", n)}
	}
	return TableXML(s.Rows(n)), nil
}

// TableXML renders rows as a bordered five-column table with a header row.
func TableXML(rows []TableRow) string {
	var b strings.Builder
	b.Grow(1024 + 700*(len(rows)+1))

	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:jc w:val="center"/><w:tblBorders>`)
	for _, side := range [...]string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		b.WriteString(`<w:`)
		b.WriteString(side)
		b.WriteString(` w:val="single" w:sz="4" w:space="0" w:color="000000"/>`)
	}
	b.WriteString(`</w:tblBorders></w:tblPr><w:tblGrid>`)
	for range TableHeaders {
		b.WriteString(`<w:gridCol w:w="` + strconv.Itoa(columnWidth) + `"/>`)
	}
	b.WriteString(`</w:tblGrid>`)

	writeRow(&b, TableHeaders[:])
	for _, r := range rows {
		writeRow(&b, []string{
			r.Name,
			r.Date,
			strconv.Itoa(r.Quantity),
			r.UnitPrice.String(),
			r.Total.String(),
		})
	}

	b.WriteString(`</w:tbl>`)
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString(`<w:tr>`)
	for _, c := range cells {
		b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="`)
		b.WriteString(strconv.Itoa(columnWidth))
		b.WriteString(`" w:type="dxa"/></w:tcPr><w:p><w:r><w:t xml:space="preserve">`)
		b.WriteString(wordml.EscapeText(c))
		b.WriteString(`</w:t></w:r></w:p></w:tc>`)
	}
	b.WriteString(`</w:tr>`)
}

// InsertTable places table into doc. The first TableMarker comment is
// replaced when present; a comment inside a paragraph takes the whole
// paragraph when it has no other text, and otherwise the table follows the
// paragraph. Without a comment the first paragraph whose only text is the
// marker is replaced. Otherwise the table is appended immediately before
// </w:body>.
func InsertTable(doc, table string) (string, error) {
	if i := strings.Index(doc, TableMarker); i >= 0 {
		return replaceMarkerComment(doc, table, i)
	}

	if strings.Contains(doc, escapedTableMarker) {
		p, err := markerParagraph(doc)
		if err != nil {
			return "", err
		}
		if p != nil {
			return doc[:p.Start] + table + doc[p.End:], nil
		}
	}

	return wordml.InsertBeforeBodyClose(doc, table)
}

// replaceMarkerComment puts table at the comment starting at offset i. A
// table must not nest in a w:p, so a comment inside a paragraph moves the
// table to the paragraph's level.
func replaceMarkerComment(doc, table string, i int) (string, error) {
	end := i + len(TableMarker)
	tree, err := wordml.Scan(doc, "w:p", "w:t")
	if err != nil {
		return "", err
	}
	p := tree.Enclosing(i, end, "w:p")
	if p < 0 {
		return doc[:i] + table + doc[end:], nil
	}

	para := tree.Elements[p]
	var text strings.Builder
	for j, el := range tree.Elements {
		if el.Name == "w:t" && !el.SelfClosing() && tree.Ancestor(j, "w:p") == p {
			text.WriteString(doc[el.ContentStart:el.ContentEnd])
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return doc[:para.Start] + table + doc[para.End:], nil
	}
	return doc[:i] + doc[end:para.End] + table + doc[para.End:], nil
}

// markerParagraph finds the first paragraph whose text is the typed marker.
func markerParagraph(doc string) (*wordml.Element, error) {
	tree, err := wordml.Scan(doc, "w:p", "w:t")
	if err != nil {
		return nil, err
	}
	text := make(map[int]*strings.Builder)
	var order []int
	for i, el := range tree.Elements {
		if el.Name != "w:t" || el.SelfClosing() {
			continue
		}
		p := tree.Ancestor(i, "w:p")
		if p < 0 {
			continue
		}
		if text[p] == nil {
			text[p] = &strings.Builder{}
			order = append(order, p)
		}
		text[p].WriteString(doc[el.ContentStart:el.ContentEnd])
	}
	for _, p := range order {
		if strings.TrimSpace(text[p].String()) == escapedTableMarker {
			el := tree.Elements[p]
			return &el, nil
		}
	}
	return nil, nil
}
