package selector

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/verdantlabs/arbor/internal/dom"
)

func doc(t *testing.T, markup string) *dom.Document {
	t.Helper()
	d, err := dom.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestResolveFallbackChain(t *testing.T) {
	r := NewResolver(slog.Default())
	r.Apply(Chains{"sourceRow": {".a", ".b"}})

	d := doc(t, `<div class="b" id="hit">x</div>`)
	el := r.Resolve(d.Root(), RoleSourceRow)
	if el == nil || el.ID() != "hit" {
		t.Fatalf("Resolve = %v, want #hit", el)
	}

	empty := doc(t, `<div class="c"></div>`)
	if el := r.Resolve(empty.Root(), RoleSourceRow); el != nil {
		t.Fatalf("Resolve on no match = %v, want nil", el)
	}
}

func TestResolveAllFirstMatchWins(t *testing.T) {
	r := NewResolver(slog.Default())
	r.Apply(Chains{"sourceRow": {".a", ".b"}})

	// Both candidates have matches; only the first candidate's set returns.
	d := doc(t, `<div class="a">1</div><div class="a">2</div><div class="b">3</div>`)
	els := r.ResolveAll(d.Root(), RoleSourceRow)
	if len(els) != 2 {
		t.Fatalf("got %d matches, want 2 (first candidate only)", len(els))
	}
}

func TestResolveMalformedCandidateFallsThrough(t *testing.T) {
	r := NewResolver(slog.Default())
	r.Apply(Chains{"sourceRow": {"[[[", ".ok"}})

	d := doc(t, `<div class="ok" id="hit"></div>`)
	el := r.Resolve(d.Root(), RoleSourceRow)
	if el == nil || el.ID() != "hit" {
		t.Fatalf("malformed candidate did not fall through")
	}
}

func TestApplyNilRestoresDefaults(t *testing.T) {
	r := NewResolver(slog.Default())
	r.Apply(Chains{"sourceRow": {".custom"}})
	if got := r.Candidates(RoleSourceRow); len(got) != 1 || got[0] != ".custom" {
		t.Fatalf("override not applied: %v", got)
	}
	r.Apply(nil)
	if got := r.Candidates(RoleSourceRow); got[0] != Defaults()[RoleSourceRow][0] {
		t.Fatalf("defaults not restored: %v", got)
	}
}

func TestCheckHealthSnapshot(t *testing.T) {
	r := NewResolver(slog.Default())
	d := doc(t, `<div class="single-source-container"><div class="source-title">T</div></div>`)

	h := r.CheckHealth(d)
	if !h[RoleSourceRow] || !h[RoleSourceTitle] {
		t.Errorf("expected source roles healthy: %v", h)
	}
	if h[RoleStudioRow] {
		t.Errorf("studio row should be failing: %v", h)
	}
	// Second identical check returns the same snapshot without incident.
	h2 := r.CheckHealth(d)
	if len(h2) != len(h) {
		t.Errorf("snapshot size changed: %v vs %v", h, h2)
	}
}
