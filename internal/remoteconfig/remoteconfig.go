// Package remoteconfig keeps selector chains updatable without a release.
// A published JSON document overrides the built-in chains; it is fetched at
// most once per TTL and cached through the persistence provider. Every
// failure path falls back silently to the built-in defaults.
package remoteconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/verdantlabs/arbor/internal/selector"
	"github.com/verdantlabs/arbor/internal/storage"
)

const (
	// FetchTimeout bounds one remote fetch.
	FetchTimeout = 10 * time.Second
	// CacheTTL is how long a fetched document stays fresh.
	CacheTTL = 24 * time.Hour
	// maxDocumentBytes caps how much of a response body is read.
	maxDocumentBytes = 1 << 20
)

// Document is the published selector override format.
type Document struct {
	Version   int                 `json:"version,omitempty"`
	Selectors map[string][]string `json:"selectors"`
}

type cacheEntry struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Document  Document  `json:"document"`
}

// Service resolves the current selector overrides.
type Service struct {
	url    string
	client *http.Client
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// New returns a service fetching from url. An empty url disables remote
// fetching entirely; Overrides then always returns nil.
func New(url string, store storage.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		url:    url,
		client: &http.Client{Timeout: FetchTimeout},
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Overrides returns the selector chains to lay over the defaults, or nil
// when none apply. The cached document is reused within the TTL; on fetch
// failure a stale cache still serves.
func (s *Service) Overrides(ctx context.Context) selector.Chains {
	if s.url == "" {
		return nil
	}
	cached, ok := s.loadCache(ctx)
	if ok && s.now().Sub(cached.FetchedAt) < CacheTTL {
		return toChains(cached.Document)
	}

	doc, err := s.fetch(ctx)
	if err != nil {
		s.logger.Debug("selector config fetch failed",
			slog.String("url", s.url),
			slog.String("error", err.Error()))
		if ok {
			return toChains(cached.Document)
		}
		return nil
	}
	s.saveCache(ctx, cacheEntry{FetchedAt: s.now(), Document: doc})
	return toChains(doc)
}

func (s *Service) fetch(ctx context.Context) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *Service) loadCache(ctx context.Context) (cacheEntry, bool) {
	if s.store == nil {
		return cacheEntry{}, false
	}
	raw, ok, err := s.store.Get(ctx, storage.KeyRemoteConfig)
	if err != nil || !ok {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cacheEntry{}, false
	}
	return entry, true
}

func (s *Service) saveCache(ctx context.Context, entry cacheEntry) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, storage.KeyRemoteConfig, raw); err != nil {
		s.logger.Debug("selector config cache write failed",
			slog.String("error", err.Error()))
	}
}

func toChains(doc Document) selector.Chains {
	if len(doc.Selectors) == 0 {
		return nil
	}
	out := make(selector.Chains, len(doc.Selectors))
	for role, candidates := range doc.Selectors {
		if len(candidates) == 0 {
			continue
		}
		out[selector.Role(role)] = append([]string(nil), candidates...)
	}
	return out
}
