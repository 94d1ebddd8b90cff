package docfill

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docfill/pkg/docfill/wordml"
)

var testClock = func() time.Time { return time.Date(2024, time.June, 30, 12, 0, 0, 0, time.Local) }

func testSynthesizer() *Synthesizer {
	return NewSynthesizer(WithSeed(1, 2), WithClock(testClock))
}

func TestSynthesize(t *testing.T) {
	header := strings.Join(TableHeaders[:], "|")
	since := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.Local)

	for _, n := range []int{0, 1, 2, 250} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			fragment, err := testSynthesizer().Synthesize(n)
			require.NoError(t, err)
			assert.Equal(t, n+1, strings.Count(fragment, "<w:tr>"))

			doc := documentXML(fragment)
			wellFormed(t, doc)
			lines := paragraphs(t, doc)
			require.Len(t, lines, n+1)
			assert.Equal(t, header, lines[0])

			for i, line := range lines[1:] {
				cells := strings.Split(line, "|")
				require.Len(t, cells, 5)
				assert.Equal(t, "Товар "+strconv.Itoa(i+1), cells[0])

				date, err := time.ParseInLocation(DateLayout, cells[1], time.Local)
				require.NoError(t, err)
				assert.False(t, date.Before(since), "date %s too early", cells[1])
				assert.False(t, date.After(testClock()), "date %s too late", cells[1])

				qty, err := strconv.Atoi(cells[2])
				require.NoError(t, err)
				assert.GreaterOrEqual(t, qty, 1)
				assert.LessOrEqual(t, qty, 100)

				price, err := ParseCents(cells[3])
				require.NoError(t, err)
				assert.GreaterOrEqual(t, price, Cents(1000))
				assert.Less(t, price, Cents(101000))

				total, err := ParseCents(cells[4])
				require.NoError(t, err)
				assert.Equal(t, price.Mul(qty), total, "row %d: %s x %d", i+1, cells[3], qty)
			}
		})
	}
}

func TestSynthesize_Negative(t *testing.T) {
	_, err := testSynthesizer().Synthesize(-1)
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestSynthesizer_Seeded(t *testing.T) {
	a, err := testSynthesizer().Synthesize(20)
	require.NoError(t, err)
	b, err := testSynthesizer().Synthesize(20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSynthesizer_Rows(t *testing.T) {
	rows := testSynthesizer().Rows(100)
	require.Len(t, rows, 100)
	for _, r := range rows {
		assert.Equal(t, r.UnitPrice.Mul(r.Quantity), r.Total)
	}
}

func TestTableXML_EscapesCells(t *testing.T) {
	fragment := TableXML([]TableRow{{Name: "A & B <c>", Quantity: 1, UnitPrice: 100, Total: 100}})
	lines := paragraphs(t, documentXML(fragment))
	require.Len(t, lines, 2)
	assert.Equal(t, "A & B <c>||1|1.00|1.00", lines[1])
}

func TestInsertTable(t *testing.T) {
	const tbl = `<w:tbl><w:tr><w:tc><w:p/></w:tc></w:tr></w:tbl>`
	escaped := para("&lt;!--TABLE--&gt;")

	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr bool
	}{
		{
			name: "comment marker",
			doc:  documentXML(para("a") + TableMarker + para("b")),
			want: documentXML(para("a") + tbl + para("b")),
		},
		{
			name: "comment marker wins over typed marker",
			doc:  documentXML(escaped + TableMarker),
			want: documentXML(escaped + tbl),
		},
		{
			name: "comment alone in a paragraph",
			doc:  documentXML(para("a") + `<w:p><w:r><w:t xml:space="preserve"> </w:t></w:r>` + TableMarker + `</w:p>` + para("b")),
			want: documentXML(para("a") + tbl + para("b")),
		},
		{
			name: "comment after paragraph text",
			doc:  documentXML(`<w:p><w:r><w:t>Items:</w:t></w:r>` + TableMarker + `</w:p>` + para("b")),
			want: documentXML(para("Items:") + tbl + para("b")),
		},
		{
			name: "comment inside a run",
			doc:  documentXML(`<w:p><w:r>` + TableMarker + `</w:r></w:p>`),
			want: documentXML(tbl),
		},
		{
			name: "typed marker paragraph",
			doc:  documentXML(para("a") + escaped + para("b")),
			want: documentXML(para("a") + tbl + para("b")),
		},
		{
			name: "typed marker with other text is ignored",
			doc:  documentXML(para("see &lt;!--TABLE--&gt; here")),
			want: documentXML(para("see &lt;!--TABLE--&gt; here") + tbl),
		},
		{
			name: "append before body close",
			doc:  documentXML(para("a") + `<w:sectPr/>`),
			want: documentXML(para("a") + `<w:sectPr/>` + tbl),
		},
		{
			name:    "no body",
			doc:     `<w:document/>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InsertTable(tt.doc, tbl)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, strings.Count(got, tbl))
			assertTableNotInParagraph(t, got)
		})
	}
}

// assertTableNotInParagraph fails when a w:tbl is nested in a w:p.
func assertTableNotInParagraph(t *testing.T, doc string) {
	t.Helper()
	tree, err := wordml.Scan(doc, "w:p", "w:tbl")
	require.NoError(t, err)
	for _, i := range tree.Find("w:tbl") {
		assert.Equal(t, -1, tree.Ancestor(i, "w:p"), "table nested in a paragraph:\n%s", doc)
	}
}

func TestBindThenSynthesize(t *testing.T) {
	bodies := map[string]string{
		"marker after paragraph": para("Hello {Name}") + TableMarker,
		"marker inside paragraph": `<w:p><w:r><w:t>Hello {Name}</w:t></w:r>` + TableMarker + `</w:p>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			bound, err := NewBinder("items", true).Bind(documentXML(body), FieldMap{"Name": "Ann"}, nil)
			require.NoError(t, err)
			fragment, err := testSynthesizer().Synthesize(2)
			require.NoError(t, err)
			out, err := InsertTable(bound, fragment)
			require.NoError(t, err)

			wellFormed(t, out)
			assertTableNotInParagraph(t, out)
			assert.NotContains(t, out, TableMarker)
			lines := paragraphs(t, out)
			require.Len(t, lines, 4)
			assert.Equal(t, "Hello Ann", lines[0])
			assert.Equal(t, strings.Join(TableHeaders[:], "|"), lines[1])
			for _, line := range lines[2:] {
				cells := strings.Split(line, "|")
				qty, _ := strconv.Atoi(cells[2])
				price, _ := ParseCents(cells[3])
				total, _ := ParseCents(cells[4])
				assert.Equal(t, price.Mul(qty), total)
			}
		})
	}
}
