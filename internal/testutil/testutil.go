// Package testutil provides shared test helpers for building host documents
// and temporary stores.
package testutil

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// Doc parses markup into a host document mirror.
func Doc(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

// TestDB creates a temporary SQLite provider that is cleaned up with the
// test.
func TestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "arbor-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MemProvider is an in-memory storage.Provider for tests that don't need
// SQLite on disk.
type MemProvider struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemProvider returns an empty in-memory provider.
func NewMemProvider() *MemProvider {
	return &MemProvider{data: map[string][]byte{}}
}

func (m *MemProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemProvider) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemProvider) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemProvider) Close() error { return nil }

// Has reports whether a key has been written.
func (m *MemProvider) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

var _ storage.Provider = (*MemProvider)(nil)
