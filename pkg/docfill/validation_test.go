package docfill

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	body := para("Договор № {ContractNumber}, г. {City}") +
		table(row("{#items}{product}", "{quantity}", "{total}{/items}")) +
		para("{ClientName} / {City}")

	info, err := Inspect(loadDocx(t, body), "items")
	require.NoError(t, err)

	want := &TemplateInfo{
		Fields:     []string{"City", "ClientName", "ContractNumber"},
		Loops:      []string{"items"},
		LoopFields: map[string][]string{"items": {"product", "quantity", "total"}},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Inspect() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, info.Valid())
}

func TestInspect_Issues(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCodes []IssueCode
		wantValid bool
	}{
		{
			name:      "unclosed loop",
			body:      para("{#items}{product}"),
			wantCodes: []IssueCode{IssueCodeLoopMismatch},
		},
		{
			name:      "end without start",
			body:      para("{product}{/items}"),
			wantCodes: []IssueCode{IssueCodeLoopMismatch},
		},
		{
			name:      "mismatched names",
			body:      para("{#items}{product}{/rows}"),
			wantCodes: []IssueCode{IssueCodeLoopMismatch},
		},
		{
			name:      "loop across containers",
			body:      table(row("{#items}{product}")) + para("{/items}"),
			wantCodes: []IssueCode{IssueCodeLoopPlacement},
		},
		{
			name:      "unbound loop is a warning",
			body:      para("{#other}{x}{/other}"),
			wantCodes: []IssueCode{IssueCodeUnknownLoop},
			wantValid: true,
		},
		{
			name:      "paragraph loop",
			body:      para("{#items}") + para("{product}") + para("{/items}"),
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Inspect(loadDocx(t, tt.body), "items")
			require.NoError(t, err)

			var codes []IssueCode
			for _, issue := range info.Issues {
				codes = append(codes, issue.Code)
				assert.NotEmpty(t, issue.Message)
			}
			assert.Equal(t, tt.wantCodes, codes)
			assert.Equal(t, tt.wantValid, info.Valid())
		})
	}
}

func TestInspect_AgreesWithBind(t *testing.T) {
	bodies := []string{
		para("{#items}{product}"),
		table(row("{#items}{product}")) + para("{/items}"),
		para("{#items}{product}{/items}"),
		table(row("{#items}{product}"), row("{total}{/items}")),
	}
	binder := NewBinder("items", true)

	for _, body := range bodies {
		pkg := loadDocx(t, body)
		info, err := Inspect(pkg, "items")
		require.NoError(t, err)
		doc, err := pkg.DocumentXML()
		require.NoError(t, err)

		_, bindErr := binder.Bind(doc, nil, testRows)
		assert.Equal(t, info.Valid(), bindErr == nil, "body %s", body)
	}
}

func TestInspect_MalformedMarkup(t *testing.T) {
	pkg := loadDocx(t, para("x")).WithDocumentXML(`<w:document><w:body><w:p></w:body></w:document>`)
	_, err := Inspect(pkg, "items")
	assert.Equal(t, KindCorruptArchive, KindOf(err))
}
