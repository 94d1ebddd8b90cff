package docfill

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landscapeSz = `<w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/>`

func TestForceLandscape(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "portrait section",
			body: para("a") + `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134"/></w:sectPr>`,
			want: para("a") + `<w:sectPr>` + landscapeSz + `<w:pgMar w:top="1134"/></w:sectPr>`,
		},
		{
			name: "already landscape",
			body: `<w:sectPr>` + landscapeSz + `</w:sectPr>`,
			want: `<w:sectPr>` + landscapeSz + `</w:sectPr>`,
		},
		{
			name: "section with attributes and other sizes",
			body: `<w:sectPr w:rsidR="00A1"><w:pgSz w:w="12240" w:h="15840" w:code="1"></w:pgSz></w:sectPr>`,
			want: `<w:sectPr w:rsidR="00A1">` + landscapeSz + `</w:sectPr>`,
		},
		{
			name: "every section is patched",
			body: `<w:p><w:pPr><w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:pPr></w:p>` +
				`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`,
			want: `<w:p><w:pPr><w:sectPr>` + landscapeSz + `</w:sectPr></w:pPr></w:p>` +
				`<w:sectPr>` + landscapeSz + `</w:sectPr>`,
		},
		{
			name: "section without page size",
			body: `<w:sectPr><w:headerReference w:type="default" r:id="rId1" xmlns:r="urn:r"/><w:pgMar w:top="1134"/></w:sectPr>`,
			want: `<w:sectPr><w:headerReference w:type="default" r:id="rId1" xmlns:r="urn:r"/>` + landscapeSz + `<w:pgMar w:top="1134"/></w:sectPr>`,
		},
		{
			name: "section with only leading children",
			body: `<w:sectPr><w:type w:val="nextPage"/></w:sectPr>`,
			want: `<w:sectPr><w:type w:val="nextPage"/>` + landscapeSz + `</w:sectPr>`,
		},
		{
			name: "self-closing section",
			body: `<w:sectPr w:rsidR="1" />`,
			want: `<w:sectPr w:rsidR="1">` + landscapeSz + `</w:sectPr>`,
		},
		{
			name: "no section",
			body: para("a"),
			want: para("a") + `<w:sectPr>` + landscapeSz + defaultMargins + `</w:sectPr>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ForceLandscape(documentXML(tt.body))
			require.NoError(t, err)
			assert.Equal(t, documentXML(tt.want), got)

			again, err := ForceLandscape(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "not idempotent")

			sections, err := ReadSections(got)
			require.NoError(t, err)
			for _, s := range sections {
				assert.Equal(t, LandscapeSection, s)
			}
		})
	}
}

func TestForceLandscape_Errors(t *testing.T) {
	_, err := ForceLandscape(`<w:document><w:body>`)
	assert.True(t, IsCorruptArchive(err))

	_, err = ForceLandscape(`<w:document/>`)
	assert.True(t, IsCorruptArchive(err))
}

func TestReadSections(t *testing.T) {
	doc := documentXML(
		`<w:p><w:pPr><w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:pPr></w:p>` +
			`<w:p><w:pPr><w:sectPr><w:pgSz w:w="16838" w:h="11906"/></w:sectPr></w:pPr></w:p>` +
			`<w:p><w:pPr><w:sectPr><w:pgMar w:top="1"/></w:sectPr></w:pPr></w:p>` +
			`<w:sectPr><w:pgSz w:w="16838" w:h="11906" w:orient="landscape"/></w:sectPr>`,
	)

	got, err := ReadSections(doc)
	require.NoError(t, err)
	want := []SectionProperties{
		{Width: 11906, Height: 16838, Orientation: Portrait},
		{Width: 16838, Height: 11906, Orientation: Landscape},
		{Orientation: Portrait},
		{Width: 16838, Height: 11906, Orientation: Landscape},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadSections() mismatch (-want +got):\n%s", diff)
	}
}

func TestSectionProperties_PageSize(t *testing.T) {
	assert.Equal(t, landscapeSz, LandscapeSection.PageSize())
	portrait := SectionProperties{Width: 11906, Height: 16838, Orientation: Portrait}
	assert.Equal(t, `<w:pgSz w:w="11906" w:h="16838"/>`, portrait.PageSize())
	assert.False(t, strings.Contains(portrait.PageSize(), "orient"))
}
