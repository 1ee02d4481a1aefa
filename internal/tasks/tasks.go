// Package tasks implements the workspace task list: an ordered set of tasks
// with optional sections, priorities and due dates.
package tasks

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/arbor/internal/apperr"
)

// Priority levels. Zero means unset and sorts last.
const (
	PriorityNone = 0
	PriorityHigh = 1
	PriorityMed  = 2
	PriorityLow  = 3
)

// Task is one to-do item. Date is a YYYY-MM-DD string or empty. SourceNote
// links a task back to the note it was created from.
type Task struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Done        bool   `json:"done"`
	Priority    int    `json:"priority"`
	Date        string `json:"date,omitempty"`
	SectionID   string `json:"sectionId,omitempty"`
	SourceNote  string `json:"sourceNote,omitempty"`
}

// Overdue reports whether the task's due date has passed relative to now.
// Undated and completed tasks are never overdue. YYYY-MM-DD strings
// order lexically, so no parsing is needed.
func (t Task) Overdue(now time.Time) bool {
	if t.Done || t.Date == "" {
		return false
	}
	return t.Date < now.Format("2006-01-02")
}

// Section groups tasks under a heading. Order is the dense display
// position; Color is a hex accent or empty for none.
type Section struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsOpen bool   `json:"isOpen"`
	Order  int    `json:"order"`
	Color  string `json:"color,omitempty"`
}

// sectionColors is the accent cycle, starting and ending at none.
var sectionColors = []string{"", "#e8eaed", "#f28b82", "#fbbc04", "#34a853", "#4285f4", "#d93025"}

// Snapshot is the persistable task state. Slice order is display order.
type Snapshot struct {
	Tasks    []Task    `json:"tasks"`
	Sections []Section `json:"sections"`
}

// List is a concurrency-safe task list for one workspace.
type List struct {
	mu       sync.RWMutex
	tasks    []*Task
	sections []*Section
}

// NewList returns an empty task list.
func NewList() *List { return &List{} }

// Load replaces the list contents with a persisted snapshot. Tasks without
// IDs get fresh ones.
func (l *List) Load(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = l.tasks[:0]
	l.sections = l.sections[:0]
	for _, t := range snap.Tasks {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Priority < PriorityNone || t.Priority > PriorityLow {
			t.Priority = PriorityNone
		}
		cp := t
		l.tasks = append(l.tasks, &cp)
	}
	for _, s := range snap.Sections {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		cp := s
		l.sections = append(l.sections, &cp)
	}
	sort.SliceStable(l.sections, func(i, j int) bool {
		return l.sections[i].Order < l.sections[j].Order
	})
	l.renumberSectionsLocked()
}

// Export returns a copy of the current state.
func (l *List) Export() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := Snapshot{
		Tasks:    make([]Task, 0, len(l.tasks)),
		Sections: make([]Section, 0, len(l.sections)),
	}
	for _, t := range l.tasks {
		snap.Tasks = append(snap.Tasks, *t)
	}
	for _, s := range l.sections {
		snap.Sections = append(snap.Sections, *s)
	}
	return snap
}

// Add appends a new task and returns it.
func (l *List) Add(text, sectionID, sourceNote string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("task text empty: %w", apperr.ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if sectionID != "" && l.sectionLocked(sectionID) == nil {
		return nil, fmt.Errorf("section %q: %w", sectionID, apperr.ErrNotFound)
	}
	t := &Task{
		ID:         uuid.NewString(),
		Text:       text,
		SectionID:  sectionID,
		SourceNote: sourceNote,
	}
	l.tasks = append(l.tasks, t)
	cp := *t
	return &cp, nil
}

// Update rewrites a task's editable fields. Empty text is rejected;
// priorities clamp to the known range.
type Update struct {
	Text        *string `json:"text,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Date        *string `json:"date,omitempty"`
	SectionID   *string `json:"sectionId,omitempty"`
}

// Edit applies an update to one task and returns the result.
func (l *List) Edit(id string, upd Update) (*Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.taskLocked(id)
	if t == nil {
		return nil, fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
	}
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if text == "" {
			return nil, fmt.Errorf("task text empty: %w", apperr.ErrInvalid)
		}
		t.Text = text
	}
	if upd.Description != nil {
		t.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Priority != nil {
		p := *upd.Priority
		if p < PriorityNone || p > PriorityLow {
			return nil, fmt.Errorf("priority %d: %w", p, apperr.ErrInvalid)
		}
		t.Priority = p
	}
	if upd.Date != nil {
		t.Date = *upd.Date
	}
	if upd.SectionID != nil {
		if *upd.SectionID != "" && l.sectionLocked(*upd.SectionID) == nil {
			return nil, fmt.Errorf("section %q: %w", *upd.SectionID, apperr.ErrNotFound)
		}
		t.SectionID = *upd.SectionID
	}
	cp := *t
	return &cp, nil
}

// Toggle flips a task's done flag and returns the new value.
func (l *List) Toggle(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.taskLocked(id)
	if t == nil {
		return false, fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
	}
	t.Done = !t.Done
	return t.Done, nil
}

// CyclePriority steps a task's priority none→high→med→low→none and returns
// the new value.
func (l *List) CyclePriority(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.taskLocked(id)
	if t == nil {
		return 0, fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
	}
	t.Priority = (t.Priority + 1) % 4
	return t.Priority, nil
}

// Delete removes a task.
func (l *List) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.tasks {
		if t.ID == id {
			l.tasks = append(l.tasks[:i], l.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
}

// Move shifts a task one position up (negative delta) or down (positive)
// in display order. Moves past either end are no-ops.
func (l *List) Move(id string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, t := range l.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
	}
	target := idx
	switch {
	case delta < 0:
		target--
	case delta > 0:
		target++
	}
	if target < 0 || target >= len(l.tasks) {
		return nil
	}
	l.tasks[idx], l.tasks[target] = l.tasks[target], l.tasks[idx]
	return nil
}

// SortByPriority stably reorders tasks high→med→low with unset last.
func (l *List) SortByPriority() {
	l.mu.Lock()
	defer l.mu.Unlock()
	rank := func(t *Task) int {
		if t.Priority == PriorityNone {
			return 99
		}
		return t.Priority
	}
	sort.SliceStable(l.tasks, func(i, j int) bool { return rank(l.tasks[i]) < rank(l.tasks[j]) })
}

// SortByDate stably reorders tasks by due date ascending with undated last.
func (l *List) SortByDate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	sort.SliceStable(l.tasks, func(i, j int) bool {
		a, b := l.tasks[i].Date, l.tasks[j].Date
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
}

// ClearCompleted removes every done task and returns how many were removed.
func (l *List) ClearCompleted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.tasks[:0]
	removed := 0
	for _, t := range l.tasks {
		if t.Done {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	l.tasks = kept
	return removed
}

// Tasks returns a copy of the task list in display order.
func (l *List) Tasks() []Task {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		out = append(out, *t)
	}
	return out
}

// AddSection appends a section and returns it.
func (l *List) AddSection(name string) (*Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("section name empty: %w", apperr.ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &Section{ID: uuid.NewString(), Name: name, IsOpen: true, Order: len(l.sections)}
	l.sections = append(l.sections, s)
	cp := *s
	return &cp, nil
}

// MoveSection shifts a section one position up (negative delta) or down
// (positive) in display order. Moves past either end are no-ops.
func (l *List) MoveSection(id string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renumberSectionsLocked()
	idx := -1
	for i, s := range l.sections {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("section %q: %w", id, apperr.ErrNotFound)
	}
	target := idx
	switch {
	case delta < 0:
		target--
	case delta > 0:
		target++
	}
	if target < 0 || target >= len(l.sections) {
		return nil
	}
	l.sections[idx], l.sections[target] = l.sections[target], l.sections[idx]
	l.sections[idx].Order, l.sections[target].Order = idx, target
	return nil
}

// CycleSectionColor steps the section's accent through the palette and
// returns the new color (empty string for none).
func (l *List) CycleSectionColor(id string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sectionLocked(id)
	if s == nil {
		return "", fmt.Errorf("section %q: %w", id, apperr.ErrNotFound)
	}
	next := 0
	for i, c := range sectionColors {
		if c == s.Color {
			next = (i + 1) % len(sectionColors)
			break
		}
	}
	s.Color = sectionColors[next]
	return s.Color, nil
}

// RenameSection updates a section's name.
func (l *List) RenameSection(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("section name empty: %w", apperr.ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sectionLocked(id)
	if s == nil {
		return fmt.Errorf("section %q: %w", id, apperr.ErrNotFound)
	}
	s.Name = name
	return nil
}

// ToggleSection flips a section's open state.
func (l *List) ToggleSection(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sectionLocked(id)
	if s == nil {
		return false, fmt.Errorf("section %q: %w", id, apperr.ErrNotFound)
	}
	s.IsOpen = !s.IsOpen
	return s.IsOpen, nil
}

// DeleteSection removes a section. Its tasks survive with the section
// reference cleared.
func (l *List) DeleteSection(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, s := range l.sections {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("section %q: %w", id, apperr.ErrNotFound)
	}
	l.sections = append(l.sections[:idx], l.sections[idx+1:]...)
	l.renumberSectionsLocked()
	for _, t := range l.tasks {
		if t.SectionID == id {
			t.SectionID = ""
		}
	}
	return nil
}

func (l *List) renumberSectionsLocked() {
	for i, s := range l.sections {
		s.Order = i
	}
}

// Sections returns a copy of the sections in display order.
func (l *List) Sections() []Section {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Section, 0, len(l.sections))
	for _, s := range l.sections {
		out = append(out, *s)
	}
	return out
}

func (l *List) taskLocked(id string) *Task {
	for _, t := range l.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (l *List) sectionLocked(id string) *Section {
	for _, s := range l.sections {
		if s.ID == id {
			return s
		}
	}
	return nil
}
