// Package engine implements the reconciliation core: one Session per
// workspace observes the mirrored host document, debounces mutation bursts,
// and re-derives the proxy tree, native-row visibility and the search index
// from the organizer state. The host markup is unversioned and changes
// underneath us; every pass is best-effort and fault-isolated per feature.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/health"
	"github.com/verdantlabs/arbor/internal/remoteconfig"
	"github.com/verdantlabs/arbor/internal/searchindex"
	"github.com/verdantlabs/arbor/internal/selector"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/storage"
	"github.com/verdantlabs/arbor/internal/tasks"
)

// Timing windows. Organizer and index passes share one mutation signal but
// debounce independently; bursts collapse to a single trailing run.
const (
	organizerDebounce = 250 * time.Millisecond
	indexDebounce     = 1000 * time.Millisecond
	settleDelay       = 50 * time.Millisecond
	initDelay         = 500 * time.Millisecond
	workspacePoll     = 1 * time.Second
	healthInterval    = 30 * time.Second
)

// SessionState is the lifecycle phase of a Session.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateLoading
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	}
	return "uninitialized"
}

var workspaceRe = regexp.MustCompile(`/notebook/([^/?#]+)`)

// WorkspaceID extracts the workspace identifier from a host location URL.
func WorkspaceID(location string) string {
	m := workspaceRe.FindStringSubmatch(location)
	if m == nil {
		return ""
	}
	return m[1]
}

// PublishFunc receives session events for fan-out (SSE, logs).
type PublishFunc func(event string, payload any)

// Options configures a Session. Document and Provider are required.
type Options struct {
	Document *dom.Document
	Resolver *selector.Resolver
	Provider storage.Provider
	Remote   *remoteconfig.Service
	Logger   *slog.Logger
	Publish  PublishFunc
	// Notify delivers user-facing degradation messages. Defaults to a
	// published "notice" event.
	Notify func(message string)
}

// Session is the per-workspace reconciliation engine instance.
type Session struct {
	doc      *dom.Document
	resolver *selector.Resolver
	governor *health.Governor
	store    *state.Store
	index    *searchindex.Index
	tasks    *tasks.List
	provider storage.Provider
	flusher  *storage.Flusher
	remote   *remoteconfig.Service
	logger   *slog.Logger
	publish  PublishFunc

	mu          sync.Mutex
	sessState   SessionState
	workspaceID string

	// processing is the shared re-entrancy latch: overlapping item
	// passes are dropped, not queued.
	processing atomic.Bool

	// treeDirty marks that the folder forests changed shape and the tree
	// mounts need a rebuild on the next pass. Rebuilding every pass would
	// churn the proxy mounts and defeat proxy reuse.
	treeDirty atomic.Bool

	reprocessCh chan struct{}
}

// NewSession wires a session. Call Run to start it and Close when done.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = selector.NewResolver(logger)
	}
	s := &Session{
		doc:         opts.Document,
		resolver:    resolver,
		store:       state.NewStore(),
		tasks:       tasks.NewList(),
		provider:    opts.Provider,
		remote:      opts.Remote,
		logger:      logger,
		publish:     opts.Publish,
		reprocessCh: make(chan struct{}, 1),
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(msg string) { s.emit("notice", map[string]string{"message": msg}) }
	}
	s.governor = health.NewGovernor(logger, func(msg string) {
		s.emit("feature-disabled", map[string]string{"message": msg})
		notify(msg)
	})
	s.index = searchindex.New(logger, func() { s.persistIndex() })
	if opts.Provider != nil {
		s.flusher = storage.NewFlusher(opts.Provider, logger)
	}
	return s
}

func (s *Session) emit(event string, payload any) {
	if s.publish != nil {
		s.publish(event, payload)
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessState
}

// Workspace returns the active workspace identifier, if any.
func (s *Session) Workspace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceID
}

// Governor exposes feature status for diagnostics endpoints.
func (s *Session) Governor() *health.Governor { return s.governor }

// Run drives the session until ctx is cancelled: it observes the document,
// debounces mutations into organizer and reindex passes, polls the location
// for workspace changes and probes selector health on an interval.
func (s *Session) Run(ctx context.Context) error {
	target := s.resolver.Resolve(s.doc.Root(), selector.RoleObserverTarget)
	if target == nil {
		target = s.doc.Body()
	}
	if target == nil {
		target = s.doc.Root()
	}
	obs := s.doc.Observe(target, dom.ObserveOptions{
		ChildList:       true,
		Subtree:         true,
		Attributes:      true,
		AttributeFilter: []string{"class"},
	})
	defer obs.Disconnect()

	organizerTimer := newStoppedTimer()
	indexTimer := newStoppedTimer()
	defer organizerTimer.Stop()
	defer indexTimer.Stop()

	pollTicker := time.NewTicker(workspacePoll)
	defer pollTicker.Stop()
	healthTicker := time.NewTicker(healthInterval)
	defer healthTicker.Stop()

	if id := WorkspaceID(s.doc.Location()); id != "" {
		s.initialize(ctx, id)
		resetTimer(organizerTimer, initDelay)
		resetTimer(indexTimer, indexDebounce)
	}

	s.logger.Info("session loop started")
	for {
		select {
		case <-ctx.Done():
			s.persistAll()
			s.logger.Info("session loop stopped")
			return nil

		case <-obs.C():
			if s.relevant(obs.Take()) && s.State() == StateActive {
				resetTimer(organizerTimer, organizerDebounce)
				resetTimer(indexTimer, indexDebounce)
			}

		case <-s.reprocessCh:
			resetTimer(organizerTimer, settleDelay)

		case <-organizerTimer.C:
			s.runOrganizer()

		case <-indexTimer.C:
			s.indexActiveNote()

		case <-pollTicker.C:
			if s.pollWorkspace(ctx) {
				resetTimer(organizerTimer, initDelay)
				resetTimer(indexTimer, indexDebounce)
			}

		case <-healthTicker.C:
			s.resolver.CheckHealth(s.doc)
		}
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// relevant filters a mutation batch down to host-driven changes. Mutations
// inside the session's own injected containers are feedback from rendering
// and must not retrigger a pass; attribute churn only matters for the
// native checkbox's checked-class toggle.
func (s *Session) relevant(muts []dom.Mutation) bool {
	for _, m := range muts {
		if m.Target == nil {
			continue
		}
		if m.Target.HasClass(containerClass) || m.Target.Closest("."+containerClass) != nil {
			continue
		}
		switch m.Type {
		case dom.ChildListMutation:
			return true
		case dom.AttributeMutation:
			if m.Target.Tag() == "mat-checkbox" || m.Target.Closest("mat-checkbox") != nil {
				return true
			}
		}
	}
	return false
}

// pollWorkspace reconciles the session against the current location.
// Reports whether a (re)initialization happened.
func (s *Session) pollWorkspace(ctx context.Context) bool {
	id := WorkspaceID(s.doc.Location())
	s.mu.Lock()
	current, st := s.workspaceID, s.sessState
	s.mu.Unlock()

	switch {
	case id == "" && st != StateUninitialized:
		s.logger.Info("workspace left", slog.String("workspace", current))
		s.teardown()
		return false
	case id == "":
		return false
	case st == StateUninitialized:
		s.initialize(ctx, id)
		return true
	case id != current:
		// A different workspace invalidates all ambient state; rebuild
		// the session from scratch the way a page reload would.
		s.logger.Info("workspace changed",
			slog.String("from", current),
			slog.String("to", id))
		s.persistAll()
		s.teardown()
		s.initialize(ctx, id)
		return true
	}
	return false
}

// initialize loads persisted state and selector overrides for a workspace
// and transitions the session to Active.
func (s *Session) initialize(ctx context.Context, workspaceID string) {
	s.mu.Lock()
	s.sessState = StateLoading
	s.workspaceID = workspaceID
	s.mu.Unlock()
	s.logger.Info("workspace loading", slog.String("workspace", workspaceID))

	if s.remote != nil {
		if chains := s.remote.Overrides(ctx); chains != nil {
			s.resolver.Apply(chains)
		}
	}
	s.loadPersisted(ctx, workspaceID)
	s.governor.ResetAll()

	s.mu.Lock()
	s.sessState = StateActive
	s.mu.Unlock()
	s.treeDirty.Store(true)
	s.emit("workspace", map[string]string{"id": workspaceID, "state": "active"})
	s.logger.Info("workspace active", slog.String("workspace", workspaceID))
}

// teardown discards all in-memory workspace state and removes injected
// markup from the document.
func (s *Session) teardown() {
	s.mu.Lock()
	s.workspaceID = ""
	s.sessState = StateUninitialized
	s.mu.Unlock()
	// Reset contents in place; ops hold the same store pointers.
	s.store.Load(state.Snapshot{Settings: state.DefaultSettings()})
	s.tasks.Load(tasks.Snapshot{})
	s.index.Clear()
	s.removeContainers()
}

func (s *Session) removeContainers() {
	for _, ctx := range []state.Context{state.ContextSource, state.ContextStudio} {
		if c := s.doc.ElementByID(containerID(ctx)); c != nil {
			c.Remove()
		}
	}
}

// scheduleReprocess requests an organizer pass after a short settle delay,
// once freshly rendered mounts exist in the tree.
func (s *Session) scheduleReprocess() {
	select {
	case s.reprocessCh <- struct{}{}:
	default:
	}
}

func (s *Session) loadPersisted(ctx context.Context, workspaceID string) {
	if s.provider == nil {
		return
	}
	if raw, ok := s.getKey(ctx, storage.ScopedKey(storage.KeyState, workspaceID)); ok {
		var snap state.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			s.logger.Warn("persisted state malformed", slog.String("error", err.Error()))
		} else {
			s.store.Load(snap)
		}
	}
	if raw, ok := s.getKey(ctx, storage.ScopedKey(storage.KeyTasks, workspaceID)); ok {
		var snap tasks.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			s.logger.Warn("persisted tasks malformed", slog.String("error", err.Error()))
		} else {
			s.tasks.Load(snap)
		}
	}
	if raw, ok := s.getKey(ctx, storage.ScopedKey(storage.KeySearchIndex, workspaceID)); ok {
		var entries map[string]searchindex.Entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			s.logger.Warn("persisted index malformed", slog.String("error", err.Error()))
		} else {
			s.index.Load(entries)
		}
	}
}

func (s *Session) getKey(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		s.logger.Warn("state read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return raw, ok
}

// Persistence is fire-and-forget through the flusher; in-memory state stays
// authoritative for the session even when a flush fails.

func (s *Session) persistState() {
	s.enqueue(storage.KeyState, s.store.Export())
}

func (s *Session) persistTasks() {
	s.enqueue(storage.KeyTasks, s.tasks.Export())
}

func (s *Session) persistIndex() {
	s.enqueue(storage.KeySearchIndex, s.index.Export())
}

func (s *Session) persistAll() {
	s.persistState()
	s.persistTasks()
	s.persistIndex()
}

func (s *Session) enqueue(base string, payload any) {
	if s.flusher == nil {
		return
	}
	s.mu.Lock()
	workspaceID := s.workspaceID
	s.mu.Unlock()
	if workspaceID == "" {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("state marshal failed",
			slog.String("key", base),
			slog.String("error", err.Error()))
		return
	}
	s.flusher.Enqueue(storage.ScopedKey(base, workspaceID), raw)
}

// Close flushes pending writes and releases resources. The Run loop should
// already be stopped.
func (s *Session) Close() {
	if s.flusher != nil {
		s.flusher.Close()
	}
}
