package docfill

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputStore_Save(t *testing.T) {
	store, err := NewOutputStore(filepath.Join(t.TempDir(), "nested", "downloads"))
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^document_[0-9a-f-]{36}\.docx$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		name, err := store.Save("document", ".docx", []byte("data"))
		require.NoError(t, err)
		assert.Regexp(t, pattern, name)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestOutputStore_PutNeverOverwrites(t *testing.T) {
	store, err := NewOutputStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("a.pdf", []byte("first")))
	err = store.Put("a.pdf", []byte("second"))
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))

	data, err := store.Read("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestOutputStore_Open(t *testing.T) {
	store, err := NewOutputStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put("out.docx", []byte("x")))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "sub.docx"), 0o755))

	path, err := store.Open("out.docx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "out.docx"), path)

	_, err = store.Open("missing.docx")
	assert.Equal(t, KindMissingEntry, KindOf(err))

	_, err = store.Open("sub.docx")
	assert.Equal(t, KindMissingEntry, KindOf(err))

	_, err = store.Open("../out.docx")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestNewOutputStore_Empty(t *testing.T) {
	_, err := NewOutputStore("")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"document_1.docx", true},
		{"Договор.pdf", true},
		{"", false},
		{".", false},
		{"..", false},
		{".hidden", false},
		{"../etc/passwd", false},
		{"a/b.docx", false},
		{`a\b.docx`, false},
		{"C:evil.docx", false},
		{"nul\x00.docx", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSibling(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"document_x.docx", "pdf", "document_x.pdf"},
		{"document_x.docx", ".pdf", "document_x.pdf"},
		{"plain", "pdf", "plain.pdf"},
	}
	for _, tt := range tests {
		if got := Sibling(tt.name, tt.ext); got != tt.want {
			t.Errorf("Sibling(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
		}
	}
}
