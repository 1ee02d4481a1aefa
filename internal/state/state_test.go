package state

import (
	"errors"
	"testing"

	"github.com/verdantlabs/arbor/internal/apperr"
)

func mustCreate(t *testing.T, s *Store, ctx Context, name, parent string) *Folder {
	t.Helper()
	f, err := s.CreateFolder(ctx, name, parent)
	if err != nil {
		t.Fatalf("CreateFolder(%s): %v", name, err)
	}
	return f
}

func TestCreateFolderAssignsOrder(t *testing.T) {
	s := NewStore()
	a := mustCreate(t, s, ContextSource, "Alpha", "")
	b := mustCreate(t, s, ContextSource, "Beta", "")
	c := mustCreate(t, s, ContextSource, "Child", a.ID)

	if a.Order != 0 || b.Order != 1 {
		t.Fatalf("root orders = %d, %d, want 0, 1", a.Order, b.Order)
	}
	if c.Order != 0 || c.ParentID != a.ID {
		t.Fatalf("child = %+v", c)
	}
	if !a.IsOpen {
		t.Fatal("new folders start open")
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatal("folder IDs must be unique and non-empty")
	}
}

func TestCreateFolderRejectsBadInput(t *testing.T) {
	s := NewStore()
	if _, err := s.CreateFolder(ContextSource, "   ", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("blank name err = %v", err)
	}
	if _, err := s.CreateFolder(ContextSource, "x", "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing parent err = %v", err)
	}
	if _, err := s.CreateFolder(Context("sidebar"), "x", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("bad context err = %v", err)
	}
}

func TestDeleteFolderUnmapsAndOrphans(t *testing.T) {
	s := NewStore()
	root := mustCreate(t, s, ContextStudio, "Research", "")
	doomed := mustCreate(t, s, ContextStudio, "Drafts", "")
	child := mustCreate(t, s, ContextStudio, "Old drafts", doomed.ID)

	if err := s.AssignItem(ContextStudio, "Quarterly Report", doomed.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFolder(ContextStudio, doomed.ID); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.MappedFolder(ContextStudio, "Quarterly Report"); ok {
		t.Fatal("mapping survived folder deletion")
	}
	got, err := s.Folder(ContextStudio, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID != "" {
		t.Fatalf("orphan ParentID = %q, want root", got.ParentID)
	}
	if got.Order <= 0 {
		t.Fatalf("orphan order = %d, want after existing roots", got.Order)
	}
	_ = root
}

func TestMoveFolderSwapsSiblings(t *testing.T) {
	s := NewStore()
	a := mustCreate(t, s, ContextSource, "A", "")
	b := mustCreate(t, s, ContextSource, "B", "")
	c := mustCreate(t, s, ContextSource, "C", "")

	if err := s.MoveFolder(ContextSource, c.ID, -1); err != nil {
		t.Fatal(err)
	}
	names := folderNames(s.FolderList(ContextSource))
	want := []string{"A", "C", "B"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("after move up: %v, want %v", names, want)
		}
	}

	// Moving the first folder up is a no-op.
	if err := s.MoveFolder(ContextSource, a.ID, -1); err != nil {
		t.Fatal(err)
	}
	if got := folderNames(s.FolderList(ContextSource))[0]; got != "A" {
		t.Fatalf("first folder moved: %v", got)
	}
	_ = b
}

func folderNames(fs []FlatFolder) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestFolderListDepthFirst(t *testing.T) {
	s := NewStore()
	a := mustCreate(t, s, ContextSource, "A", "")
	mustCreate(t, s, ContextSource, "B", "")
	mustCreate(t, s, ContextSource, "A1", a.ID)

	list := s.FolderList(ContextSource)
	names := folderNames(list)
	want := []string{"A", "A1", "B"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("list = %v, want %v", names, want)
		}
	}
	if list[0].Level != 0 || list[1].Level != 1 || list[2].Level != 0 {
		t.Fatalf("levels = %d/%d/%d", list[0].Level, list[1].Level, list[2].Level)
	}
}

func TestReparentRejectsCycles(t *testing.T) {
	s := NewStore()
	a := mustCreate(t, s, ContextSource, "A", "")
	b := mustCreate(t, s, ContextSource, "B", a.ID)

	if err := s.ReparentFolder(ContextSource, a.ID, b.ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("cycle err = %v", err)
	}
	if err := s.ReparentFolder(ContextSource, a.ID, a.ID); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("self-parent err = %v", err)
	}
	if err := s.ReparentFolder(ContextSource, b.ID, ""); err != nil {
		t.Fatalf("reparent to root: %v", err)
	}
}

func TestCycleFolderColor(t *testing.T) {
	s := NewStore()
	f := mustCreate(t, s, ContextSource, "A", "")

	first, err := s.CycleFolderColor(ContextSource, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first != "#e8eaed" {
		t.Fatalf("first color = %q", first)
	}
	var last string
	for i := 0; i < len(colorCycle)-1; i++ {
		last, err = s.CycleFolderColor(ContextSource, f.ID)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last != "" {
		t.Fatalf("cycle did not wrap to none, got %q", last)
	}
}

func TestMappingsNormalizeTitles(t *testing.T) {
	s := NewStore()
	f := mustCreate(t, s, ContextSource, "Papers", "")

	if err := s.AssignItem(ContextSource, "  Deep   Learning Survey ", f.ID); err != nil {
		t.Fatal(err)
	}
	id, ok := s.MappedFolder(ContextSource, "deep learning survey")
	if !ok || id != f.ID {
		t.Fatalf("mapping lookup = %q, %v", id, ok)
	}

	if err := s.EjectItem(ContextSource, "DEEP LEARNING SURVEY"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.MappedFolder(ContextSource, "Deep Learning Survey"); ok {
		t.Fatal("mapping survived eject")
	}
}

func TestTogglePin(t *testing.T) {
	s := NewStore()
	on, err := s.TogglePin(ContextStudio, "Audio Overview")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	if !s.Pinned(ContextStudio, " audio  OVERVIEW ") {
		t.Fatal("pin lookup must normalize")
	}
	off, err := s.TogglePin(ContextStudio, "audio overview")
	if err != nil || off {
		t.Fatalf("second toggle = %v, %v", off, err)
	}
	if _, err := s.TogglePin(ContextStudio, "  "); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("blank title err = %v", err)
	}
}

func TestLoadNormalizesPersistedShape(t *testing.T) {
	s := NewStore()
	snap := Snapshot{
		Source: PanelState{
			Folders: map[string]*Folder{
				"f1": {Name: "Kept"},
				"":   {Name: "Dropped"},
			},
			Mappings: map[string]string{
				"  Messy   Key ": "f1",
				"stale":          "gone",
			},
			Pinned: map[string]bool{"  Pinned Item ": true, "off": false},
		},
		Settings: Settings{FocusMode: true},
	}
	s.Load(snap)

	if f, err := s.Folder(ContextSource, "f1"); err != nil || f.ID != "f1" {
		t.Fatalf("folder after load = %+v, %v", f, err)
	}
	if id, ok := s.MappedFolder(ContextSource, "messy key"); !ok || id != "f1" {
		t.Fatalf("mapping after load = %q, %v", id, ok)
	}
	if _, ok := s.MappedFolder(ContextSource, "stale"); ok {
		t.Fatal("stale mapping survived load")
	}
	if !s.Pinned(ContextSource, "pinned item") || s.Pinned(ContextSource, "off") {
		t.Fatal("pins not normalized on load")
	}
	if !s.Settings().FocusMode {
		t.Fatal("settings not loaded")
	}
}

func TestExportDeepCopies(t *testing.T) {
	s := NewStore()
	f := mustCreate(t, s, ContextSource, "A", "")
	snap := s.Export()
	snap.Source.Folders[f.ID].Name = "mutated"
	if got, _ := s.Folder(ContextSource, f.ID); got.Name != "A" {
		t.Fatalf("export aliased store state: %q", got.Name)
	}
}

func TestSetAllFoldersOpen(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, ContextSource, "A", "")
	mustCreate(t, s, ContextSource, "B", "")
	if err := s.SetAllFoldersOpen(ContextSource, false); err != nil {
		t.Fatal(err)
	}
	for _, f := range s.FolderList(ContextSource) {
		if f.IsOpen {
			t.Fatalf("folder %s still open", f.Name)
		}
	}
}
