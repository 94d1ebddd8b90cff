package docfill

import (
	"container/list"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TemplateLibrary serves named templates from a directory and keeps
// recently used ones loaded. Packages are immutable, so a cached Package is
// shared between requests.
type TemplateLibrary struct {
	dir    string
	config CacheConfig

	mu    sync.Mutex
	cache map[string]*cacheEntry
	lru   *list.List
}

type cacheEntry struct {
	key     string
	pkg     *Package
	modTime time.Time
	size    int64
	expiry  time.Time
	element *list.Element
}

// NewTemplateLibrary creates a library over dir.
func NewTemplateLibrary(dir string, config CacheConfig) *TemplateLibrary {
	return &TemplateLibrary{
		dir:    dir,
		config: config,
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
	}
}

// IsTemplateFile reports whether name has a .docx or .dotx extension.
func IsTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx", ".dotx":
		return true
	}
	return false
}

// Load returns the named template. A cached copy is used while the file's
// modification time and size are unchanged.
func (tl *TemplateLibrary) Load(name string) (*Package, error) {
	if !ValidName(name) || !IsTemplateFile(name) {
		return nil, &InputError{Field: "templateName", Message: "must name a .docx or .dotx file in the template directory"}
	}
	path := filepath.Join(tl.dir, name)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingEntryError{Path: name}
	}
	if err != nil {
		return nil, NewDocumentError("stat", path, err)
	}

	if pkg, ok := tl.lookup(name, info); ok {
		return pkg, nil
	}

	pkg, err := Open(path)
	if err != nil {
		return nil, err
	}
	tl.store(name, info, pkg)

	GetLogger().Debug("template loaded", zap.String("template", name), zap.Int64("size", info.Size()))
	return pkg, nil
}

func (tl *TemplateLibrary) lookup(key string, info fs.FileInfo) (*Package, bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	entry, exists := tl.cache[key]
	if !exists {
		return nil, false
	}
	// Drop entries that expired or whose file changed on disk
	stale := !entry.modTime.Equal(info.ModTime()) || entry.size != info.Size()
	if stale || (tl.config.TTL > 0 && time.Now().After(entry.expiry)) {
		tl.removeLocked(entry)
		return nil, false
	}
	tl.lru.MoveToFront(entry.element)
	return entry.pkg, true
}

func (tl *TemplateLibrary) store(key string, info fs.FileInfo, pkg *Package) {
	// Check if caching is disabled
	if tl.config.MaxSize <= 0 {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	if existing, ok := tl.cache[key]; ok {
		tl.removeLocked(existing)
	}

	// Evict least recently used
	for tl.lru.Len() >= tl.config.MaxSize {
		oldest := tl.lru.Back()
		if oldest == nil {
			break
		}
		tl.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{
		key:     key,
		pkg:     pkg,
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if tl.config.TTL > 0 {
		entry.expiry = time.Now().Add(tl.config.TTL)
	}
	entry.element = tl.lru.PushFront(entry)
	tl.cache[key] = entry
}

func (tl *TemplateLibrary) removeLocked(entry *cacheEntry) {
	delete(tl.cache, entry.key)
	tl.lru.Remove(entry.element)
}

// List returns the template file names in the directory, sorted.
func (tl *TemplateLibrary) List() ([]string, error) {
	entries, err := os.ReadDir(tl.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, NewDocumentError("list", tl.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsTemplateFile(e.Name()) && ValidName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove drops a template from the cache.
func (tl *TemplateLibrary) Remove(name string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if entry, ok := tl.cache[name]; ok {
		tl.removeLocked(entry)
	}
}

// Clear empties the cache.
func (tl *TemplateLibrary) Clear() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.cache = make(map[string]*cacheEntry)
	tl.lru = list.New()
}

// Size returns the current number of cached templates.
func (tl *TemplateLibrary) Size() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.cache)
}
