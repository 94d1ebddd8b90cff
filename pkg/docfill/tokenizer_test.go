package docfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "value token",
			input: "Hello {Name}",
			want:  []Token{{Type: TokenValue, Name: "Name", Raw: "{Name}", Start: 6, End: 12}},
		},
		{
			name:  "loop markers",
			input: "{#items}{/items}{/}",
			want: []Token{
				{Type: TokenLoopStart, Name: "items", Raw: "{#items}", Start: 0, End: 8},
				{Type: TokenLoopEnd, Name: "items", Raw: "{/items}", Start: 8, End: 16},
				{Type: TokenLoopEnd, Name: "", Raw: "{/}", Start: 16, End: 19},
			},
		},
		{
			name:  "spaces inside braces",
			input: "{ Name }",
			want:  []Token{{Type: TokenValue, Name: "Name", Raw: "{ Name }", Start: 0, End: 8}},
		},
		{
			name:  "unicode and dotted names",
			input: "{Город}{client.name}",
			want: []Token{
				{Type: TokenValue, Name: "Город", Raw: "{Город}", Start: 0, End: 12},
				{Type: TokenValue, Name: "client.name", Raw: "{client.name}", Start: 12, End: 25},
			},
		},
		{
			name:  "not tokens",
			input: "{} {1abc} {a b} {#} {x-y}",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input, 0))
		})
	}
}

func TestTokenize_Base(t *testing.T) {
	tokens := Tokenize("{A}", 100)
	require.Len(t, tokens, 1)
	assert.Equal(t, 100, tokens[0].Start)
	assert.Equal(t, 103, tokens[0].End)
}

func TestMergeSplitTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "token split in two runs",
			input: `<w:p><w:r><w:t>Hi {Na</w:t></w:r><w:r><w:t>me}!</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t xml:space="preserve">Hi {Name}</w:t></w:r><w:r><w:t>!</w:t></w:r></w:p>`,
		},
		{
			name:  "token split in three runs",
			input: `<w:p><w:r><w:t>{</w:t></w:r><w:r><w:t>#items</w:t></w:r><w:r><w:t>}x</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t xml:space="preserve">{#items}</w:t></w:r><w:r><w:t></w:t></w:r><w:r><w:t>x</w:t></w:r></w:p>`,
		},
		{
			name:  "existing xml:space kept",
			input: `<w:p><w:r><w:t xml:space="preserve"> {A}</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t xml:space="preserve"> {A}</w:t></w:r></w:p>`,
		},
		{
			name:  "whole token gains preserve",
			input: `<w:p><w:r><w:t>{A}</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t xml:space="preserve">{A}</w:t></w:r></w:p>`,
		},
		{
			name:  "paragraphs are not joined",
			input: `<w:p><w:r><w:t>{A</w:t></w:r></w:p><w:p><w:r><w:t>}</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t>{A</w:t></w:r></w:p><w:p><w:r><w:t>}</w:t></w:r></w:p>`,
		},
		{
			name:  "no tokens",
			input: `<w:p><w:r><w:t>plain {text here}</w:t></w:r></w:p>`,
			want:  `<w:p><w:r><w:t>plain {text here}</w:t></w:r></w:p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mergeSplitTokens(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
