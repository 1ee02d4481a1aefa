// Package searchindex stores note content for full-text filtering. Entries
// are lowercased, truncated and flate-compressed; a byte ceiling with
// least-recently-used eviction keeps the index bounded no matter how large
// the workspace grows.
package searchindex

import (
	"bytes"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/verdantlabs/arbor/internal/textkey"
)

const (
	// MaxContentChars caps how much of a note body one entry stores.
	MaxContentChars = 20000
	// MaxIndexBytes is the ceiling on total compressed payload size.
	MaxIndexBytes = 2 * 1024 * 1024
	// MinIndexableChars is the shortest content worth indexing.
	MinIndexableChars = 5
)

// Entry is one indexed note.
type Entry struct {
	Compressed []byte    `json:"compressed"`
	Indexed    time.Time `json:"indexed"`
	Accessed   time.Time `json:"accessed"`
}

// FlushFunc is invoked after a mutating operation so the owner can persist
// the index asynchronously.
type FlushFunc func()

// Index is a concurrency-safe compressed content index keyed by normalized
// note title.
type Index struct {
	mu      sync.Mutex
	entries map[string]*Entry
	size    int
	logger  *slog.Logger
	flush   FlushFunc
	now     func() time.Time
}

// New returns an empty index. flush may be nil.
func New(logger *slog.Logger, flush FlushFunc) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		entries: map[string]*Entry{},
		logger:  logger,
		flush:   flush,
		now:     time.Now,
	}
}

// Upsert indexes content under the note title. Empty titles, and content
// shorter than MinIndexableChars, are skipped. Re-indexing identical content
// only refreshes the access time. Returns true when the index changed.
func (x *Index) Upsert(title, content string) bool {
	key := textkey.Normalize(title)
	content = strings.TrimSpace(content)
	if key == "" || len(content) < MinIndexableChars {
		return false
	}
	if runes := []rune(content); len(runes) > MaxContentChars {
		content = string(runes[:MaxContentChars])
	}
	compressed, err := deflate(strings.ToLower(content))
	if err != nil {
		x.logger.Debug("index compression failed",
			slog.String("title", key),
			slog.String("error", err.Error()))
		return false
	}

	x.mu.Lock()
	now := x.now()
	if prev, ok := x.entries[key]; ok {
		if bytes.Equal(prev.Compressed, compressed) {
			prev.Accessed = now
			x.mu.Unlock()
			return false
		}
		x.size -= len(prev.Compressed)
	}
	x.entries[key] = &Entry{Compressed: compressed, Indexed: now, Accessed: now}
	x.size += len(compressed)
	x.evictLocked(key)
	x.mu.Unlock()

	if x.flush != nil {
		x.flush()
	}
	return true
}

// evictLocked drops least-recently-accessed entries until the index fits
// under MaxIndexBytes. The entry named keep survives as long as anything
// else remains to evict.
func (x *Index) evictLocked(keep string) {
	if x.size <= MaxIndexBytes {
		return
	}
	type aged struct {
		key string
		at  time.Time
	}
	order := make([]aged, 0, len(x.entries))
	for k, e := range x.entries {
		order = append(order, aged{key: k, at: e.Accessed})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].at.Before(order[j].at) })
	for _, a := range order {
		if x.size <= MaxIndexBytes || len(x.entries) <= 1 {
			return
		}
		if a.key == keep && len(x.entries) > 1 {
			continue
		}
		x.size -= len(x.entries[a.key].Compressed)
		delete(x.entries, a.key)
		x.logger.Debug("index entry evicted", slog.String("title", a.key))
	}
}

// Lookup returns the decompressed, lowercased content for a note title and
// refreshes its access time. A payload that fails to inflate is returned
// as-is rather than lost.
func (x *Index) Lookup(title string) (string, bool) {
	key := textkey.Normalize(title)
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.entries[key]
	if !ok {
		return "", false
	}
	e.Accessed = x.now()
	content, err := inflate(e.Compressed)
	if err != nil {
		x.logger.Debug("index decompression failed",
			slog.String("title", key),
			slog.String("error", err.Error()))
		return string(e.Compressed), true
	}
	return content, true
}

// Contains reports whether a title is indexed without touching access time.
func (x *Index) Contains(title string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.entries[textkey.Normalize(title)]
	return ok
}

// Len returns the number of indexed entries.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// Size returns the total compressed payload size in bytes.
func (x *Index) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.size
}

// Clear drops every entry.
func (x *Index) Clear() {
	x.mu.Lock()
	x.entries = map[string]*Entry{}
	x.size = 0
	x.mu.Unlock()
	if x.flush != nil {
		x.flush()
	}
}

// Export returns a copy of the raw entries for persistence.
func (x *Index) Export() map[string]Entry {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make(map[string]Entry, len(x.entries))
	for k, e := range x.entries {
		cp := *e
		cp.Compressed = append([]byte(nil), e.Compressed...)
		out[k] = cp
	}
	return out
}

// Load replaces the index contents with persisted entries, recomputing the
// size accounting and evicting if the persisted set exceeds the ceiling.
func (x *Index) Load(entries map[string]Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]*Entry, len(entries))
	x.size = 0
	for k, e := range entries {
		key := textkey.Normalize(k)
		if key == "" || len(e.Compressed) == 0 {
			continue
		}
		cp := e
		cp.Compressed = append([]byte(nil), e.Compressed...)
		x.entries[key] = &cp
		x.size += len(cp.Compressed)
	}
	x.evictLocked("")
}

func deflate(s string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(b []byte) (string, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
