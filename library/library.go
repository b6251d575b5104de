// Package library manages the on-disk store of materialized books: identity
// lookup, recency tracking and eviction under byte/count budgets. The store
// is not safe for concurrent use from multiple processes - a single running
// instance owns the library directory.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

const indexFileName = "library_index.json"

// SourceIdentity ties a cache entry back to the archive it was produced
// from. Fingerprint is authoritative, path is informational.
type SourceIdentity struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// Entry is one cached book.
type Entry struct {
	BookID           string         `json:"-"`
	Source           SourceIdentity `json:"source_identity"`
	Title            string         `json:"title"`
	Dir              string         `json:"dir"` // relative to the library root
	Size             int64          `json:"size"`
	LastAccessTime   time.Time      `json:"last_access_time"`
	LastStylesheetID string         `json:"last_used_stylesheet_id,omitempty"`
}

type indexFile struct {
	Books map[string]*Entry `json:"books"`
}

// Library is the cache manager. Both budget limits treat zero as disabled.
type Library struct {
	root     string
	maxBooks int
	maxBytes int64
	books    map[string]*Entry
	log      *zap.Logger
}

// Open loads the library index from root, creating the directory when
// needed. A missing index starts a fresh library, a corrupt one is discarded
// along with any cached content - stale cache is never fatal.
func Open(root string, maxBooks int, maxBytes int64, log *zap.Logger) (*Library, error) {

	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("unable to create library directory: %w", err)
	}

	l := &Library{
		root:     root,
		maxBooks: maxBooks,
		maxBytes: maxBytes,
		books:    make(map[string]*Entry),
		log:      log,
	}

	data, err := os.ReadFile(filepath.Join(root, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read library index: %w", err)
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		log.Warn("Library index is corrupt, resetting library", zap.String("root", root), zap.Error(err))
		if err := l.reset(); err != nil {
			return nil, err
		}
		return l, nil
	}
	for id, e := range idx.Books {
		e.BookID = id
		l.books[id] = e
	}
	return l, nil
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Lookup finds a cached book by content fingerprint.
func (l *Library) Lookup(src SourceIdentity) (*Entry, bool) {
	for _, e := range l.books {
		if e.Source.Fingerprint == src.Fingerprint {
			return e, true
		}
	}
	return nil, false
}

// EntryDir returns the entry's absolute materialized directory.
func (l *Library) EntryDir(e *Entry) string {
	return filepath.Join(l.root, e.Dir)
}

// MaterializeAndInsert produces a new cache entry. The producer fills the
// given directory and reports the byte size of what it wrote. The directory
// is complete before the index references it, so a crash mid-materialization
// never leaves the index pointing at a half-written book. Eviction runs after
// insertion so the new book is never its own victim.
func (l *Library) MaterializeAndInsert(bookID, title string, src SourceIdentity, producer func(dir string) (int64, error)) (*Entry, error) {

	dir := l.allocateDir(bookID)
	absDir := filepath.Join(l.root, dir)
	if err := os.MkdirAll(absDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create book directory: %w", err)
	}

	size, err := producer(absDir)
	if err != nil {
		_ = os.RemoveAll(absDir)
		return nil, err
	}

	e := &Entry{
		BookID:         bookID,
		Source:         src,
		Title:          title,
		Dir:            dir,
		Size:           size,
		LastAccessTime: time.Now().UTC(),
	}
	l.books[bookID] = e

	l.evictToFit(bookID)
	if err := l.writeIndex(); err != nil {
		return nil, err
	}
	return e, nil
}

// Resize records a new materialized size for a cached book, after a styled
// rendition was added to or dropped from its directory, and re-checks the
// byte budget. The resized book itself is not an eviction candidate here.
func (l *Library) Resize(bookID string, size int64) error {
	e, ok := l.books[bookID]
	if !ok {
		return fmt.Errorf("book '%s' is not in the library", bookID)
	}
	e.Size = size
	l.evictToFit(bookID)
	return l.writeIndex()
}

// Touch refreshes recency. Call it on every cache hit, read-only opens
// included, or eviction order degrades to insertion order.
func (l *Library) Touch(bookID, stylesheetID string) error {
	e, ok := l.books[bookID]
	if !ok {
		return fmt.Errorf("book '%s' is not in the library", bookID)
	}
	e.LastAccessTime = time.Now().UTC()
	if len(stylesheetID) > 0 {
		e.LastStylesheetID = stylesheetID
	}
	return l.writeIndex()
}

// List returns all entries in natural title order.
func (l *Library) List() []*Entry {
	entries := make([]*Entry, 0, len(l.books))
	for _, e := range l.books {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Title != entries[j].Title {
			return natural.Less(entries[i].Title, entries[j].Title)
		}
		return entries[i].BookID < entries[j].BookID
	})
	return entries
}

// Remove drops the named books from the library, deleting their directories.
// Unknown ids are reported, not ignored.
func (l *Library) Remove(ids ...string) error {
	for _, id := range ids {
		e, ok := l.books[id]
		if !ok {
			return fmt.Errorf("book '%s' is not in the library", id)
		}
		l.dropEntry(e)
	}
	return l.writeIndex()
}

// Clear empties the whole library.
func (l *Library) Clear() error {
	for _, e := range l.books {
		l.dropEntry(e)
	}
	return l.writeIndex()
}

// Shrink evicts least recently used entries until the given limits hold,
// independently of the configured budgets. Zero disables a limit here too.
func (l *Library) Shrink(maxBooks int, maxBytes int64) error {
	saveBooks, saveBytes := l.maxBooks, l.maxBytes
	l.maxBooks, l.maxBytes = maxBooks, maxBytes
	defer func() { l.maxBooks, l.maxBytes = saveBooks, saveBytes }()
	l.evictToFit("")
	return l.writeIndex()
}

// TotalSize returns the sum of cached book sizes.
func (l *Library) TotalSize() int64 {
	var total int64
	for _, e := range l.books {
		total += e.Size
	}
	return total
}

// Count returns the number of cached books.
func (l *Library) Count() int {
	return len(l.books)
}

// evictToFit removes least recently used entries until both budgets hold.
// The entry named by keep survives even when it alone busts the byte budget -
// an oversized book simply cannot coexist with anything else and will be the
// eviction victim of the next insert.
func (l *Library) evictToFit(keep string) {
	for l.overBudget() {
		victim := l.oldest(keep)
		if victim == nil {
			return
		}
		l.log.Info("Evicting book from library",
			zap.String("id", victim.BookID),
			zap.String("title", victim.Title),
			zap.Time("last_access", victim.LastAccessTime))
		l.dropEntry(victim)
	}
}

func (l *Library) overBudget() bool {
	if l.maxBooks > 0 && len(l.books) > l.maxBooks {
		return true
	}
	if l.maxBytes > 0 && l.TotalSize() > l.maxBytes {
		return true
	}
	return false
}

// oldest picks the eviction victim strictly by recency, never by size.
func (l *Library) oldest(keep string) *Entry {
	var victim *Entry
	for id, e := range l.books {
		if id == keep {
			continue
		}
		if victim == nil || e.LastAccessTime.Before(victim.LastAccessTime) {
			victim = e
		}
	}
	return victim
}

func (l *Library) dropEntry(e *Entry) {
	if err := os.RemoveAll(filepath.Join(l.root, e.Dir)); err != nil {
		l.log.Warn("Unable to remove book directory", zap.String("dir", e.Dir), zap.Error(err))
	}
	delete(l.books, e.BookID)
}

// allocateDir derives a filesystem-safe directory name from the book id,
// keeping it unique among live entries.
func (l *Library) allocateDir(bookID string) string {
	base := slug.Make(bookID)
	if len(base) == 0 {
		base = "book"
	}
	dir := base
	for ext := 2; l.dirTaken(dir); ext++ {
		dir = fmt.Sprintf("%s_%d", base, ext)
	}
	return dir
}

func (l *Library) dirTaken(dir string) bool {
	for _, e := range l.books {
		if e.Dir == dir {
			return true
		}
	}
	// a leftover directory from an evicted or crashed run also blocks reuse
	_, err := os.Stat(filepath.Join(l.root, dir))
	return err == nil
}

// writeIndex persists the index via temp file and atomic rename, readers
// always see either the previous or the new complete index.
func (l *Library) writeIndex() error {

	data, err := json.MarshalIndent(indexFile{Books: l.books}, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize library index: %w", err)
	}

	tmp, err := os.CreateTemp(l.root, indexFileName+".*")
	if err != nil {
		return fmt.Errorf("unable to create library index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write library index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to write library index: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.root, indexFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("unable to replace library index: %w", err)
	}
	return nil
}

// reset wipes the library directory and starts from an empty index.
func (l *Library) reset() error {
	if err := os.RemoveAll(l.root); err != nil {
		return fmt.Errorf("unable to clear library: %w", err)
	}
	if err := os.MkdirAll(l.root, 0700); err != nil {
		return fmt.Errorf("unable to recreate library directory: %w", err)
	}
	l.books = make(map[string]*Entry)
	return l.writeIndex()
}
