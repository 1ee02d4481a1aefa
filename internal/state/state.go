// Package state holds the per-workspace organizer state: the folder forests
// for both panels, title-to-folder mappings, pinned items, tasks and user
// settings. The store is the single mutation point; callers persist the
// snapshot it returns.
package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/verdantlabs/arbor/internal/apperr"
	"github.com/verdantlabs/arbor/internal/textkey"
)

// Context names the two organized panels.
type Context string

const (
	ContextSource Context = "source"
	ContextStudio Context = "studio"
)

// Valid reports whether c is a known panel context.
func (c Context) Valid() bool { return c == ContextSource || c == ContextStudio }

// Folder is one node of a panel's folder forest. ParentID is empty for
// roots. Order is the position among siblings.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	IsOpen   bool   `json:"isOpen"`
	Order    int    `json:"order"`
	Color    string `json:"color,omitempty"`
}

// Settings are the user-facing toggles that shape rendering.
type Settings struct {
	ShowGenerators bool `json:"showGenerators"`
	ShowResearch   bool `json:"showResearch"`
	FocusMode      bool `json:"focusMode"`
	TasksOpen      bool `json:"tasksOpen"`
	CompletedOpen  bool `json:"completedOpen"`
}

// DefaultSettings returns the settings a fresh workspace starts with.
func DefaultSettings() Settings {
	return Settings{ShowGenerators: true, ShowResearch: true, TasksOpen: true}
}

// PanelState is one panel's folders, mappings and pins. Mapping keys are
// normalized item titles (textkey.Normalize); values are folder IDs.
type PanelState struct {
	Folders  map[string]*Folder `json:"folders"`
	Mappings map[string]string  `json:"mappings"`
	Pinned   map[string]bool    `json:"pinned"`
}

// Snapshot is the full persistable workspace state.
type Snapshot struct {
	Source   PanelState `json:"source"`
	Studio   PanelState `json:"studio"`
	Settings Settings   `json:"settings"`
}

// colorCycle is the palette CycleFolderColor steps through. The leading
// empty string is "no color".
var colorCycle = []string{"", "#e8eaed", "#f28b82", "#fbbc04", "#34a853", "#4285f4", "#d93025"}

// Store is the concurrency-safe state container for one workspace.
type Store struct {
	mu       sync.RWMutex
	panels   map[Context]*PanelState
	settings Settings
}

// NewStore returns an empty store with default settings.
func NewStore() *Store {
	return &Store{
		panels: map[Context]*PanelState{
			ContextSource: newPanel(),
			ContextStudio: newPanel(),
		},
		settings: DefaultSettings(),
	}
}

func newPanel() *PanelState {
	return &PanelState{
		Folders:  map[string]*Folder{},
		Mappings: map[string]string{},
		Pinned:   map[string]bool{},
	}
}

// Load replaces the store contents with a persisted snapshot, normalizing
// any shape drift from older persisted forms.
func (s *Store) Load(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panels[ContextSource] = normalizePanel(snap.Source)
	s.panels[ContextStudio] = normalizePanel(snap.Studio)
	s.settings = snap.Settings
}

func normalizePanel(p PanelState) *PanelState {
	out := newPanel()
	for id, f := range p.Folders {
		if f == nil || id == "" {
			continue
		}
		ff := *f
		ff.ID = id
		out.Folders[id] = &ff
	}
	// Drop mappings to folders that no longer exist and renormalize keys
	// persisted before normalization was introduced.
	for key, folderID := range p.Mappings {
		if _, ok := out.Folders[folderID]; !ok {
			continue
		}
		out.Mappings[textkey.Normalize(key)] = folderID
	}
	for key, v := range p.Pinned {
		if v {
			out.Pinned[textkey.Normalize(key)] = true
		}
	}
	return out
}

// Export returns a deep copy of the current state.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Source:   copyPanel(s.panels[ContextSource]),
		Studio:   copyPanel(s.panels[ContextStudio]),
		Settings: s.settings,
	}
}

func copyPanel(p *PanelState) PanelState {
	out := PanelState{
		Folders:  make(map[string]*Folder, len(p.Folders)),
		Mappings: make(map[string]string, len(p.Mappings)),
		Pinned:   make(map[string]bool, len(p.Pinned)),
	}
	for id, f := range p.Folders {
		ff := *f
		out.Folders[id] = &ff
	}
	for k, v := range p.Mappings {
		out.Mappings[k] = v
	}
	for k, v := range p.Pinned {
		out.Pinned[k] = v
	}
	return out
}

func (s *Store) panel(ctx Context) (*PanelState, error) {
	p, ok := s.panels[ctx]
	if !ok {
		return nil, fmt.Errorf("panel %q: %w", ctx, apperr.ErrInvalid)
	}
	return p, nil
}

// CreateFolder adds a folder under parentID (empty for root) and returns it.
func (s *Store) CreateFolder(ctx Context, name, parentID string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name empty: %w", apperr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return nil, err
	}
	if parentID != "" {
		if _, ok := p.Folders[parentID]; !ok {
			return nil, fmt.Errorf("parent folder %q: %w", parentID, apperr.ErrNotFound)
		}
	}
	f := &Folder{
		ID:       uuid.NewString(),
		Name:     name,
		ParentID: parentID,
		IsOpen:   true,
		Order:    countSiblings(p, parentID),
	}
	p.Folders[f.ID] = f
	cp := *f
	return &cp, nil
}

func countSiblings(p *PanelState, parentID string) int {
	n := 0
	for _, f := range p.Folders {
		if f.ParentID == parentID {
			n++
		}
	}
	return n
}

// RenameFolder updates a folder's name.
func (s *Store) RenameFolder(ctx Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("folder name empty: %w", apperr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	f, ok := p.Folders[id]
	if !ok {
		return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	f.Name = name
	return nil
}

// DeleteFolder removes a folder. Items mapped to it are unmapped and child
// folders are reparented to the root, keeping their relative order after the
// existing roots.
func (s *Store) DeleteFolder(ctx Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	if _, ok := p.Folders[id]; !ok {
		return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	delete(p.Folders, id)
	for key, folderID := range p.Mappings {
		if folderID == id {
			delete(p.Mappings, key)
		}
	}
	rootCount := countSiblings(p, "")
	orphans := childrenOf(p, id)
	for i, child := range orphans {
		child.ParentID = ""
		child.Order = rootCount + i
	}
	return nil
}

func childrenOf(p *PanelState, parentID string) []*Folder {
	var out []*Folder
	for _, f := range p.Folders {
		if f.ParentID == parentID {
			out = append(out, f)
		}
	}
	sortFolders(out)
	return out
}

func sortFolders(fs []*Folder) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Order != fs[j].Order {
			return fs[i].Order < fs[j].Order
		}
		return strings.ToLower(fs[i].Name) < strings.ToLower(fs[j].Name)
	})
}

// MoveFolder shifts a folder one step among its siblings. A negative delta
// moves it up, positive down. Out-of-range moves are no-ops.
func (s *Store) MoveFolder(ctx Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	f, ok := p.Folders[id]
	if !ok {
		return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	siblings := childrenOf(p, f.ParentID)
	// Renumber first so stored orders are dense before the swap.
	idx := -1
	for i, sib := range siblings {
		sib.Order = i
		if sib.ID == id {
			idx = i
		}
	}
	target := idx + sign(delta)
	if idx < 0 || target < 0 || target >= len(siblings) {
		return nil
	}
	siblings[idx].Order, siblings[target].Order = siblings[target].Order, siblings[idx].Order
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// ReparentFolder moves a folder under a new parent (empty for root). Moving
// a folder under itself or its own descendant is rejected.
func (s *Store) ReparentFolder(ctx Context, id, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	f, ok := p.Folders[id]
	if !ok {
		return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	if parentID != "" {
		if _, ok := p.Folders[parentID]; !ok {
			return fmt.Errorf("parent folder %q: %w", parentID, apperr.ErrNotFound)
		}
		for cur := parentID; cur != ""; {
			if cur == id {
				return fmt.Errorf("folder cycle: %w", apperr.ErrInvalid)
			}
			next, ok := p.Folders[cur]
			if !ok {
				break
			}
			cur = next.ParentID
		}
	}
	f.ParentID = parentID
	f.Order = countSiblings(p, parentID) - 1
	return nil
}

// CycleFolderColor steps the folder's color through the palette and returns
// the new color (empty string for none).
func (s *Store) CycleFolderColor(ctx Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return "", err
	}
	f, ok := p.Folders[id]
	if !ok {
		return "", fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	next := 0
	for i, c := range colorCycle {
		if c == f.Color {
			next = (i + 1) % len(colorCycle)
			break
		}
	}
	f.Color = colorCycle[next]
	return f.Color, nil
}

// SetFolderOpen records a folder's expanded state.
func (s *Store) SetFolderOpen(ctx Context, id string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	f, ok := p.Folders[id]
	if !ok {
		return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	f.IsOpen = open
	return nil
}

// SetAllFoldersOpen expands or collapses every folder in the panel.
func (s *Store) SetAllFoldersOpen(ctx Context, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	for _, f := range p.Folders {
		f.IsOpen = open
	}
	return nil
}

// Folder returns a copy of one folder.
func (s *Store) Folder(ctx Context, id string) (*Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.panel(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := p.Folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

// FlatFolder is a folder with its depth in the rendered tree.
type FlatFolder struct {
	Folder
	Level int `json:"level"`
}

// FolderList walks the panel's forest depth-first, siblings ordered by Order
// then name, and returns every folder with its nesting level.
func (s *Store) FolderList(ctx Context) []FlatFolder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[ctx]
	if !ok {
		return nil
	}
	var out []FlatFolder
	var walk func(parentID string, level int)
	walk = func(parentID string, level int) {
		for _, f := range childrenOf(p, parentID) {
			out = append(out, FlatFolder{Folder: *f, Level: level})
			walk(f.ID, level+1)
		}
	}
	walk("", 0)
	return out
}

// AssignItem maps an item title to a folder. The key is normalized so a
// retitled whitespace variant still resolves.
func (s *Store) AssignItem(ctx Context, title, folderID string) error {
	key := textkey.Normalize(title)
	if key == "" {
		return fmt.Errorf("item title empty: %w", apperr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	if _, ok := p.Folders[folderID]; !ok {
		return fmt.Errorf("folder %q: %w", folderID, apperr.ErrNotFound)
	}
	p.Mappings[key] = folderID
	return nil
}

// EjectItem removes an item's folder mapping. Unmapped titles are a no-op.
func (s *Store) EjectItem(ctx Context, title string) error {
	key := textkey.Normalize(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return err
	}
	delete(p.Mappings, key)
	return nil
}

// MappedFolder returns the folder ID an item title maps to, if any.
func (s *Store) MappedFolder(ctx Context, title string) (string, bool) {
	key := textkey.Normalize(title)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[ctx]
	if !ok {
		return "", false
	}
	id, ok := p.Mappings[key]
	return id, ok
}

// TogglePin flips an item's pinned flag and returns the new value.
func (s *Store) TogglePin(ctx Context, title string) (bool, error) {
	key := textkey.Normalize(title)
	if key == "" {
		return false, fmt.Errorf("item title empty: %w", apperr.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.panel(ctx)
	if err != nil {
		return false, err
	}
	if p.Pinned[key] {
		delete(p.Pinned, key)
		return false, nil
	}
	p.Pinned[key] = true
	return true, nil
}

// Pinned reports whether an item title is pinned.
func (s *Store) Pinned(ctx Context, title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[ctx]
	if !ok {
		return false
	}
	return p.Pinned[textkey.Normalize(title)]
}

// PinnedKeys returns the panel's pinned keys in sorted order.
func (s *Store) PinnedKeys(ctx Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.panels[ctx]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(p.Pinned))
	for k := range p.Pinned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Settings returns the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies fn to the settings under the lock and returns the
// result.
func (s *Store) UpdateSettings(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	return s.settings
}
