package remoteconfig

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/verdantlabs/arbor/internal/selector"
	"github.com/verdantlabs/arbor/internal/storage"
)

type memProvider struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemProvider() *memProvider { return &memProvider{data: map[string][]byte{}} }

func (m *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memProvider) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memProvider) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memProvider) Close() error { return nil }

var _ storage.Provider = (*memProvider)(nil)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestOverridesFetchesAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"version":2,"selectors":{"sourceRow":[".new-row"],"empty":[]}}`))
	}))
	defer srv.Close()

	s := New(srv.URL, newMemProvider(), testLogger())
	ctx := context.Background()

	chains := s.Overrides(ctx)
	if len(chains) != 1 {
		t.Fatalf("chains = %v, want only sourceRow (empty lists dropped)", chains)
	}
	if got := chains[selector.RoleSourceRow]; len(got) != 1 || got[0] != ".new-row" {
		t.Fatalf("sourceRow chain = %v", got)
	}

	// Second call within the TTL must come from cache.
	s.Overrides(ctx)
	if hits != 1 {
		t.Fatalf("server hits = %d, want 1", hits)
	}
}

func TestOverridesRefetchesAfterTTL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"selectors":{"sourceRow":[".row"]}}`))
	}))
	defer srv.Close()

	s := New(srv.URL, newMemProvider(), testLogger())
	ctx := context.Background()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Overrides(ctx)
	clock = clock.Add(CacheTTL + time.Minute)
	s.Overrides(ctx)
	if hits != 2 {
		t.Fatalf("server hits = %d, want refetch after TTL", hits)
	}
}

func TestOverridesFallsBackSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(srv.URL, newMemProvider(), testLogger())
	if chains := s.Overrides(context.Background()); chains != nil {
		t.Fatalf("chains on server error = %v, want nil", chains)
	}

	// Malformed body behaves the same.
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer bad.Close()
	s = New(bad.URL, newMemProvider(), testLogger())
	if chains := s.Overrides(context.Background()); chains != nil {
		t.Fatalf("chains on bad body = %v, want nil", chains)
	}
}

func TestOverridesServesStaleCacheOnFetchFailure(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"selectors":{"studioRow":[".artifact"]}}`))
	}))
	defer srv.Close()

	s := New(srv.URL, newMemProvider(), testLogger())
	ctx := context.Background()
	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Overrides(ctx)
	healthy = false
	clock = clock.Add(CacheTTL + time.Hour)
	chains := s.Overrides(ctx)
	if got := chains[selector.RoleStudioRow]; len(got) != 1 || got[0] != ".artifact" {
		t.Fatalf("stale cache not served: %v", chains)
	}
}

func TestOverridesDisabledWithoutURL(t *testing.T) {
	s := New("", newMemProvider(), testLogger())
	if chains := s.Overrides(context.Background()); chains != nil {
		t.Fatalf("chains = %v, want nil when disabled", chains)
	}
}
