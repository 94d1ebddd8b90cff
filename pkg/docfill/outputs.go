package docfill

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// OutputStore is a flat directory of generated files. Files are only ever
// added; an existing name is never overwritten.
type OutputStore struct {
	dir string
}

// NewOutputStore opens dir, creating it if needed.
func NewOutputStore(dir string) (*OutputStore, error) {
	if dir == "" {
		return nil, &InputError{Field: "output_dir", Message: "must not be empty"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewDocumentError("create output directory", dir, err)
	}
	return &OutputStore{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (s *OutputStore) Dir() string {
	return s.dir
}

// Save writes data under a fresh name of the form <prefix>_<uuid>.<ext> and
// returns that name.
func (s *OutputStore) Save(prefix, ext string, data []byte) (string, error) {
	name := prefix + "_" + uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
	if err := s.Put(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Put writes data under name. It fails if the file already exists. A
// partially written file is removed.
func (s *OutputStore) Put(name string, data []byte) (err error) {
	if !ValidName(name) {
		return &InputError{Field: "name", Message: fmt.Sprintf("%q is not a plain file name", name)}
	}
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return NewDocumentError("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = NewDocumentError("close", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return NewDocumentError("write", path, err)
	}
	return nil
}

// Open returns the path of a stored file after checking the name.
func (s *OutputStore) Open(name string) (string, error) {
	if !ValidName(name) {
		return "", &InputError{Field: "name", Message: fmt.Sprintf("%q is not a plain file name", name)}
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &MissingEntryError{Path: name}
	}
	if err != nil {
		return "", NewDocumentError("stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", &MissingEntryError{Path: name}
	}
	return path, nil
}

// Read returns the content of a stored file.
func (s *OutputStore) Read(name string) ([]byte, error) {
	path, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("read", path, err)
	}
	return data, nil
}

// ValidName reports whether name is a plain file name that stays inside the
// store.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\:`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

// Sibling returns name with its extension replaced by ext.
func Sibling(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + strings.TrimPrefix(ext, ".")
}
