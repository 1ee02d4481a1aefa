package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/verdantlabs/arbor/internal/apperr"
)

func mustAdd(t *testing.T, l *List, text string) *Task {
	t.Helper()
	task, err := l.Add(text, "", "")
	if err != nil {
		t.Fatalf("Add(%s): %v", text, err)
	}
	return task
}

func taskTexts(ts []Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Text
	}
	return out
}

func assertOrder(t *testing.T, l *List, want ...string) {
	t.Helper()
	got := taskTexts(l.Tasks())
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAddValidatesInput(t *testing.T) {
	l := NewList()
	if _, err := l.Add("  ", "", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("blank text err = %v", err)
	}
	if _, err := l.Add("x", "missing-section", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing section err = %v", err)
	}
	task := mustAdd(t, l, "  write summary  ")
	if task.Text != "write summary" {
		t.Fatalf("text = %q, want trimmed", task.Text)
	}
	if task.ID == "" {
		t.Fatal("task ID empty")
	}
}

func TestToggleAndClearCompleted(t *testing.T) {
	l := NewList()
	a := mustAdd(t, l, "a")
	mustAdd(t, l, "b")
	c := mustAdd(t, l, "c")

	for _, id := range []string{a.ID, c.ID} {
		done, err := l.Toggle(id)
		if err != nil || !done {
			t.Fatalf("Toggle(%s) = %v, %v", id, done, err)
		}
	}
	if n := l.ClearCompleted(); n != 2 {
		t.Fatalf("cleared = %d, want 2", n)
	}
	assertOrder(t, l, "b")
}

func TestMoveSwapsAdjacent(t *testing.T) {
	l := NewList()
	mustAdd(t, l, "a")
	b := mustAdd(t, l, "b")
	mustAdd(t, l, "c")

	if err := l.Move(b.ID, -1); err != nil {
		t.Fatal(err)
	}
	assertOrder(t, l, "b", "a", "c")

	// Moving the first task up is a no-op.
	if err := l.Move(b.ID, -1); err != nil {
		t.Fatal(err)
	}
	assertOrder(t, l, "b", "a", "c")
}

func TestSortByPriorityUnsetLast(t *testing.T) {
	l := NewList()
	none := mustAdd(t, l, "none")
	low := mustAdd(t, l, "low")
	high := mustAdd(t, l, "high")
	med := mustAdd(t, l, "med")

	set := func(id string, p int) {
		if _, err := l.Edit(id, Update{Priority: &p}); err != nil {
			t.Fatal(err)
		}
	}
	set(low.ID, PriorityLow)
	set(high.ID, PriorityHigh)
	set(med.ID, PriorityMed)
	_ = none

	l.SortByPriority()
	assertOrder(t, l, "high", "med", "low", "none")
}

func TestSortByDateUndatedLast(t *testing.T) {
	l := NewList()
	later := mustAdd(t, l, "later")
	undated := mustAdd(t, l, "undated")
	soon := mustAdd(t, l, "soon")

	set := func(id, d string) {
		if _, err := l.Edit(id, Update{Date: &d}); err != nil {
			t.Fatal(err)
		}
	}
	set(later.ID, "2026-12-01")
	set(soon.ID, "2026-09-01")
	_ = undated

	l.SortByDate()
	assertOrder(t, l, "soon", "later", "undated")
}

func TestOverdue(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		task Task
		want bool
	}{
		{"past date", Task{Date: "2026-08-28"}, true},
		{"today", Task{Date: "2026-08-29"}, false},
		{"future date", Task{Date: "2026-09-01"}, false},
		{"undated", Task{}, false},
		{"done", Task{Date: "2020-01-01", Done: true}, false},
	}
	for _, tc := range cases {
		if got := tc.task.Overdue(now); got != tc.want {
			t.Errorf("%s: Overdue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCyclePriorityWraps(t *testing.T) {
	l := NewList()
	task := mustAdd(t, l, "x")
	want := []int{PriorityHigh, PriorityMed, PriorityLow, PriorityNone}
	for _, w := range want {
		got, err := l.CyclePriority(task.ID)
		if err != nil || got != w {
			t.Fatalf("CyclePriority = %d, %v, want %d", got, err, w)
		}
	}
}

func TestDeleteSectionClearsReferences(t *testing.T) {
	l := NewList()
	sec, err := l.AddSection("Research")
	if err != nil {
		t.Fatal(err)
	}
	task, err := l.Add("read paper", sec.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.DeleteSection(sec.ID); err != nil {
		t.Fatal(err)
	}
	got := l.Tasks()
	if len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("tasks after section delete = %+v", got)
	}
	if got[0].SectionID != "" {
		t.Fatalf("task still references deleted section %q", got[0].SectionID)
	}
	if len(l.Sections()) != 0 {
		t.Fatal("section survived deletion")
	}
}

func TestMoveSectionSwapsAdjacent(t *testing.T) {
	l := NewList()
	a, _ := l.AddSection("A")
	b, _ := l.AddSection("B")
	c, _ := l.AddSection("C")

	sectionNames := func() []string {
		secs := l.Sections()
		out := make([]string, len(secs))
		for i, s := range secs {
			out[i] = s.Name
			if s.Order != i {
				t.Fatalf("section %s order = %d at position %d", s.Name, s.Order, i)
			}
		}
		return out
	}

	if err := l.MoveSection(b.ID, -1); err != nil {
		t.Fatal(err)
	}
	got := sectionNames()
	if got[0] != "B" || got[1] != "A" || got[2] != "C" {
		t.Fatalf("order after move up = %v", got)
	}

	// Moves past the ends are no-ops.
	if err := l.MoveSection(b.ID, -1); err != nil {
		t.Fatal(err)
	}
	if err := l.MoveSection(c.ID, 1); err != nil {
		t.Fatal(err)
	}
	got = sectionNames()
	if got[0] != "B" || got[2] != "C" {
		t.Fatalf("order after edge moves = %v", got)
	}

	if err := l.MoveSection("missing", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown section err = %v", err)
	}
	_ = a
}

func TestCycleSectionColorWraps(t *testing.T) {
	l := NewList()
	sec, _ := l.AddSection("S")
	if sec.Color != "" {
		t.Fatalf("new section color = %q, want none", sec.Color)
	}
	seen := map[string]bool{}
	for range sectionColors {
		color, err := l.CycleSectionColor(sec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if seen[color] {
			t.Fatalf("color %q repeated before the cycle closed", color)
		}
		seen[color] = true
	}
	// Full cycle lands back on none.
	if got := l.Sections()[0].Color; got != "" {
		t.Fatalf("color after full cycle = %q, want none", got)
	}
	if _, err := l.CycleSectionColor("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown section err = %v", err)
	}
}

func TestLoadOrdersSectionsByStoredOrder(t *testing.T) {
	l := NewList()
	l.Load(Snapshot{Sections: []Section{
		{ID: "s2", Name: "Second", Order: 5},
		{ID: "s1", Name: "First", Order: 1},
	}})
	secs := l.Sections()
	if len(secs) != 2 || secs[0].Name != "First" || secs[1].Name != "Second" {
		t.Fatalf("sections = %+v", secs)
	}
	// Sparse persisted orders come back dense.
	if secs[0].Order != 0 || secs[1].Order != 1 {
		t.Fatalf("orders = %d, %d, want 0, 1", secs[0].Order, secs[1].Order)
	}
}

func TestEditRejectsBadUpdates(t *testing.T) {
	l := NewList()
	task := mustAdd(t, l, "x")
	blank := "  "
	if _, err := l.Edit(task.ID, Update{Text: &blank}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("blank text err = %v", err)
	}
	bad := 7
	if _, err := l.Edit(task.ID, Update{Priority: &bad}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("bad priority err = %v", err)
	}
	missing := "nope"
	if _, err := l.Edit(task.ID, Update{SectionID: &missing}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing section err = %v", err)
	}
}

func TestLoadExportRoundTrip(t *testing.T) {
	l := NewList()
	sec, _ := l.AddSection("S")
	l.Add("a", sec.ID, "note-1")
	l.Add("b", "", "")

	snap := l.Export()
	snap.Tasks = append(snap.Tasks, Task{Text: ""})       // dropped on load
	snap.Tasks = append(snap.Tasks, Task{Text: "c", Priority: 42}) // clamped

	m := NewList()
	m.Load(snap)
	got := m.Tasks()
	if len(got) != 3 {
		t.Fatalf("loaded %d tasks, want 3", len(got))
	}
	if got[2].Priority != PriorityNone {
		t.Fatalf("out-of-range priority = %d, want clamped", got[2].Priority)
	}
	if got[2].ID == "" {
		t.Fatal("load must assign missing IDs")
	}
	if len(m.Sections()) != 1 {
		t.Fatal("sections lost in round trip")
	}
}
