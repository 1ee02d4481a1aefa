package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	counts map[string]int
}

func newEventLog() *eventLog { return &eventLog{counts: map[string]int{}} }

func (e *eventLog) publish(event string, _ any) {
	e.mu.Lock()
	e.counts[event]++
	e.mu.Unlock()
}

func (e *eventLog) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[event]
}

func (e *eventLog) waitFor(t *testing.T, event string, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.count(event) >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("event %q count = %d, want >= %d", event, e.count(event), want)
}

func appendSourceRow(doc *dom.Document, title string) {
	list := doc.Query(".source-list")
	row := doc.CreateElement("div")
	row.AddClass("single-source-container")
	row.AppendChild(doc.CreateElement("mat-checkbox"))
	titleEl := doc.CreateElement("div")
	titleEl.AddClass("source-title")
	titleEl.SetText(title)
	row.AppendChild(titleEl)
	list.AppendChild(row)
}

func TestRunLoopCollapsesMutationBurst(t *testing.T) {
	doc := testutil.Doc(t, hostMarkup)
	doc.SetLocation("https://host.example/notebook/abc123/")
	events := newEventLog()
	s := NewSession(Options{
		Document: doc,
		Provider: testutil.NewMemProvider(),
		Logger:   testutil.Logger(),
		Publish:  events.publish,
	})
	t.Cleanup(s.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// Initial pass after the startup delay.
	events.waitFor(t, "reconcile", 1, 3*time.Second)
	if doc.ElementByID(containerID(state.ContextSource)) == nil {
		t.Fatal("container not injected by initial pass")
	}
	// Container injection is itself a host-visible mutation and may
	// schedule one settling pass; wait for steady state before counting.
	time.Sleep(3 * organizerDebounce)
	base := events.count("reconcile")

	// A burst of host mutations inside one debounce window must collapse
	// into exactly one additional pass.
	for i := 0; i < 5; i++ {
		appendSourceRow(doc, "Burst Note")
	}
	events.waitFor(t, "reconcile", base+1, 2*time.Second)
	time.Sleep(2 * organizerDebounce)
	if got := events.count("reconcile"); got != base+1 {
		t.Fatalf("reconcile passes after burst = %d, want %d", got, base+1)
	}

	cancel()
	<-done
}

func TestRunLoopReinitializesOnWorkspaceChange(t *testing.T) {
	doc := testutil.Doc(t, hostMarkup)
	doc.SetLocation("https://host.example/notebook/first111/")
	events := newEventLog()
	s := NewSession(Options{
		Document: doc,
		Provider: testutil.NewMemProvider(),
		Logger:   testutil.Logger(),
		Publish:  events.publish,
	})
	t.Cleanup(s.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	events.waitFor(t, "reconcile", 1, 3*time.Second)
	if got := s.Workspace(); got != "first111" {
		t.Fatalf("workspace = %q", got)
	}
	if _, err := s.CreateFolder(state.ContextSource, "Ephemeral", ""); err != nil {
		t.Fatal(err)
	}

	doc.SetLocation("https://host.example/notebook/second222/")
	events.waitFor(t, "workspace", 2, 4*time.Second)
	if got := s.Workspace(); got != "second222" {
		t.Fatalf("workspace after switch = %q", got)
	}
	// Disjoint state: the first workspace's folders are gone.
	if got := s.Folders(state.ContextSource); len(got) != 0 {
		t.Fatalf("folders after switch = %+v, want none", got)
	}

	cancel()
	<-done
}

func TestSessionStateLifecycle(t *testing.T) {
	doc := testutil.Doc(t, hostMarkup)
	s := NewSession(Options{
		Document: doc,
		Provider: testutil.NewMemProvider(),
		Logger:   testutil.Logger(),
	})
	t.Cleanup(s.Close)

	if s.State() != StateUninitialized {
		t.Fatalf("initial state = %v", s.State())
	}
	s.initialize(context.Background(), "abc123")
	if s.State() != StateActive {
		t.Fatalf("state after init = %v", s.State())
	}
	s.teardown()
	if s.State() != StateUninitialized || s.Workspace() != "" {
		t.Fatalf("state after teardown = %v / %q", s.State(), s.Workspace())
	}
}
