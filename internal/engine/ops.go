package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/verdantlabs/arbor/internal/apperr"
	"github.com/verdantlabs/arbor/internal/dom"
	"github.com/verdantlabs/arbor/internal/export"
	"github.com/verdantlabs/arbor/internal/health"
	"github.com/verdantlabs/arbor/internal/popout"
	"github.com/verdantlabs/arbor/internal/selector"
	"github.com/verdantlabs/arbor/internal/state"
	"github.com/verdantlabs/arbor/internal/tasks"
	"github.com/verdantlabs/arbor/internal/textkey"
)

// Session operations: the user-action surface that the browser click
// handlers map to. Every mutating operation persists asynchronously and
// schedules a reprocess pass where the DOM could be affected.

func (s *Session) requireFeature(feature string) error {
	if !s.governor.Enabled(feature) {
		return fmt.Errorf("%s is disabled: %w", health.DisplayName(feature), apperr.ErrDisabled)
	}
	return nil
}

// CreateFolder adds a folder and re-renders the tree.
func (s *Session) CreateFolder(ctx state.Context, name, parentID string) (*state.Folder, error) {
	if err := s.requireFeature(health.FeatureFolderOrganization); err != nil {
		return nil, err
	}
	f, err := s.store.CreateFolder(ctx, name, parentID)
	if err != nil {
		return nil, err
	}
	s.afterTreeChange(ctx)
	return f, nil
}

// RenameFolder renames a folder.
func (s *Session) RenameFolder(ctx state.Context, id, name string) error {
	if err := s.store.RenameFolder(ctx, id, name); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// DeleteFolder deletes a folder; its mapped items return to their native
// rows and child folders become roots.
func (s *Session) DeleteFolder(ctx state.Context, id string) error {
	if err := s.store.DeleteFolder(ctx, id); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// MoveFolder shifts a folder among its siblings.
func (s *Session) MoveFolder(ctx state.Context, id string, delta int) error {
	if err := s.store.MoveFolder(ctx, id, delta); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// ReparentFolder moves a folder under a new parent.
func (s *Session) ReparentFolder(ctx state.Context, id, parentID string) error {
	if err := s.store.ReparentFolder(ctx, id, parentID); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// CycleFolderColor steps a folder's color through the palette.
func (s *Session) CycleFolderColor(ctx state.Context, id string) (string, error) {
	color, err := s.store.CycleFolderColor(ctx, id)
	if err != nil {
		return "", err
	}
	s.afterTreeChange(ctx)
	return color, nil
}

// ToggleFolder flips a folder's open state.
func (s *Session) ToggleFolder(ctx state.Context, id string) error {
	f, err := s.store.Folder(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetFolderOpen(ctx, id, !f.IsOpen); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// SetAllFolders expands or collapses every folder in a context.
func (s *Session) SetAllFolders(ctx state.Context, open bool) error {
	if err := s.store.SetAllFoldersOpen(ctx, open); err != nil {
		return err
	}
	s.afterTreeChange(ctx)
	return nil
}

// Folders returns the context's folder list in display order.
func (s *Session) Folders(ctx state.Context) []state.FlatFolder {
	return s.store.FolderList(ctx)
}

func (s *Session) afterTreeChange(ctx state.Context) {
	s.treeDirty.Store(true)
	s.persistState()
	s.emit("tree", map[string]string{"context": string(ctx)})
	s.scheduleReprocess()
}

// AssignItem maps an item to a folder and hides its native row on the next
// pass. Remapping overwrites the previous mapping.
func (s *Session) AssignItem(ctx state.Context, title, folderID string) error {
	if err := s.requireFeature(health.FeatureFolderOrganization); err != nil {
		return err
	}
	if err := s.store.AssignItem(ctx, title, folderID); err != nil {
		return err
	}
	s.persistState()
	s.scheduleReprocess()
	return nil
}

// EjectItem removes an item's folder mapping; the native row reappears on
// the next pass.
func (s *Session) EjectItem(ctx state.Context, title string) error {
	if err := s.store.EjectItem(ctx, title); err != nil {
		return err
	}
	s.persistState()
	s.scheduleReprocess()
	return nil
}

// TogglePin flips an item's pinned flag.
func (s *Session) TogglePin(ctx state.Context, title string) (bool, error) {
	if err := s.requireFeature(health.FeaturePinning); err != nil {
		return false, err
	}
	pinned, err := s.store.TogglePin(ctx, title)
	if err != nil {
		return false, err
	}
	s.persistState()
	s.scheduleReprocess()
	return pinned, nil
}

// ActivateItem surfaces a proxied item: the native row's identity is
// published so the host adapter can forward a real click to it.
func (s *Session) ActivateItem(ctx state.Context, title string) error {
	key := textkey.Normalize(title)
	if key == "" {
		return fmt.Errorf("item title empty: %w", apperr.ErrInvalid)
	}
	for _, row := range s.nativeRows(ctx) {
		if textkey.Normalize(s.rowTitle(ctx, row)) == key {
			s.emit("activate-item", map[string]string{
				"context": string(ctx),
				"title":   strings.TrimSpace(title),
			})
			return nil
		}
	}
	return fmt.Errorf("item %q: %w", title, apperr.ErrNotFound)
}

// ToggleFolderCheck converges the check state of every source row mapped
// into a folder: any row unchecked means all become checked, otherwise
// all become unchecked. Changes are published as toggle-check events so
// the host adapter can click the real checkboxes, and mirrored on the
// local rows so the folder header tri-state settles without waiting for
// a fresh snapshot.
func (s *Session) ToggleFolderCheck(ctx state.Context, folderID string) error {
	if ctx != state.ContextSource {
		return fmt.Errorf("check toggle in %s panel: %w", ctx, apperr.ErrInvalid)
	}
	if err := s.requireFeature(health.FeatureFolderOrganization); err != nil {
		return err
	}
	if _, err := s.store.Folder(ctx, folderID); err != nil {
		return err
	}

	type member struct {
		row     *dom.Node
		title   string
		checked bool
	}
	var members []member
	target := false
	for _, row := range s.nativeRows(ctx) {
		title := s.rowTitle(ctx, row)
		if id, ok := s.store.MappedFolder(ctx, title); !ok || id != folderID {
			continue
		}
		checked := s.rowChecked(row)
		if !checked {
			target = true
		}
		members = append(members, member{row: row, title: title, checked: checked})
	}
	if len(members) == 0 {
		return fmt.Errorf("folder %q has no items: %w", folderID, apperr.ErrNotFound)
	}
	for _, m := range members {
		if m.checked == target {
			continue
		}
		if cb := m.row.Query("mat-checkbox"); cb != nil {
			cb.ToggleClass("mat-mdc-checkbox-checked", target)
		}
		s.emit("toggle-check", map[string]string{
			"context": string(ctx),
			"title":   strings.TrimSpace(m.title),
		})
	}
	s.scheduleReprocess()
	return nil
}

// FilterStudioToNote narrows the studio panel to the note a task was
// captured from.
func (s *Session) FilterStudioToNote(sourceNote string) error {
	title := strings.TrimSpace(sourceNote)
	if title == "" {
		return fmt.Errorf("source note empty: %w", apperr.ErrInvalid)
	}
	s.Filter(state.ContextStudio, title)
	return nil
}

// FocusTaskSource filters the studio panel to the note a task was
// captured from.
func (s *Session) FocusTaskSource(id string) error {
	for _, t := range s.tasks.Tasks() {
		if t.ID != id {
			continue
		}
		if t.SourceNote == "" {
			return fmt.Errorf("task %q has no source note: %w", id, apperr.ErrInvalid)
		}
		return s.FilterStudioToNote(t.SourceNote)
	}
	return fmt.Errorf("task %q: %w", id, apperr.ErrNotFound)
}

// Settings returns the current settings.
func (s *Session) Settings() state.Settings { return s.store.Settings() }

// UpdateSettings applies a settings mutation than reflects it onto the
// page and persists.
func (s *Session) UpdateSettings(fn func(*state.Settings)) state.Settings {
	settings := s.store.UpdateSettings(fn)
	s.applySettingsToDOM()
	s.persistState()
	s.emit("settings", settings)
	return settings
}

// Task operations delegate to the task store and persist. They are guarded
// as one feature: a broken task surface disables together.

func (s *Session) AddTask(text, sectionID, sourceNote string) (*tasks.Task, error) {
	if err := s.requireFeature(health.FeatureTaskManagement); err != nil {
		return nil, err
	}
	t, err := s.tasks.Add(text, sectionID, sourceNote)
	if err != nil {
		return nil, err
	}
	s.persistTasks()
	return t, nil
}

func (s *Session) EditTask(id string, upd tasks.Update) (*tasks.Task, error) {
	t, err := s.tasks.Edit(id, upd)
	if err != nil {
		return nil, err
	}
	s.persistTasks()
	return t, nil
}

func (s *Session) ToggleTask(id string) (bool, error) {
	done, err := s.tasks.Toggle(id)
	if err != nil {
		return false, err
	}
	s.persistTasks()
	return done, nil
}

func (s *Session) CycleTaskPriority(id string) (int, error) {
	prio, err := s.tasks.CyclePriority(id)
	if err != nil {
		return 0, err
	}
	s.persistTasks()
	return prio, nil
}

func (s *Session) DeleteTask(id string) error {
	if err := s.tasks.Delete(id); err != nil {
		return err
	}
	s.persistTasks()
	return nil
}

func (s *Session) MoveTask(id string, delta int) error {
	if err := s.tasks.Move(id, delta); err != nil {
		return err
	}
	s.persistTasks()
	return nil
}

func (s *Session) SortTasksByPriority() {
	s.tasks.SortByPriority()
	s.persistTasks()
}

func (s *Session) SortTasksByDate() {
	s.tasks.SortByDate()
	s.persistTasks()
}

func (s *Session) ClearCompletedTasks() int {
	n := s.tasks.ClearCompleted()
	if n > 0 {
		s.persistTasks()
	}
	return n
}

func (s *Session) Tasks() []tasks.Task       { return s.tasks.Tasks() }
func (s *Session) Sections() []tasks.Section { return s.tasks.Sections() }

func (s *Session) AddSection(name string) (*tasks.Section, error) {
	if err := s.requireFeature(health.FeatureTaskManagement); err != nil {
		return nil, err
	}
	sec, err := s.tasks.AddSection(name)
	if err != nil {
		return nil, err
	}
	s.persistTasks()
	return sec, nil
}

func (s *Session) RenameSection(id, name string) error {
	if err := s.tasks.RenameSection(id, name); err != nil {
		return err
	}
	s.persistTasks()
	return nil
}

func (s *Session) MoveSection(id string, delta int) error {
	if err := s.tasks.MoveSection(id, delta); err != nil {
		return err
	}
	s.persistTasks()
	return nil
}

func (s *Session) CycleSectionColor(id string) (string, error) {
	color, err := s.tasks.CycleSectionColor(id)
	if err != nil {
		return "", err
	}
	s.persistTasks()
	return color, nil
}

func (s *Session) ToggleSection(id string) (bool, error) {
	open, err := s.tasks.ToggleSection(id)
	if err != nil {
		return false, err
	}
	s.persistTasks()
	return open, nil
}

func (s *Session) DeleteSection(id string) error {
	if err := s.tasks.DeleteSection(id); err != nil {
		return err
	}
	s.persistTasks()
	return nil
}

// SearchHit is one search result over the indexed notes.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Search runs the filter's term semantics over the whole index and returns
// matching note titles with a short content snippet.
func (s *Session) Search(query string) []SearchHit {
	terms := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(terms) == 0 {
		return nil
	}
	var hits []SearchHit
	for key := range s.index.Export() {
		if !s.proxyMatches(key, terms) {
			continue
		}
		content, _ := s.index.Lookup(key)
		hits = append(hits, SearchHit{Title: key, Snippet: snippet(content, terms[0])})
	}
	return hits
}

func snippet(content, term string) string {
	const window = 80
	idx := strings.Index(content, term)
	if idx < 0 {
		if len(content) > window {
			return content[:window]
		}
		return content
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

// ExportWorkspace builds the portable backup document.
func (s *Session) ExportWorkspace() export.Document {
	return export.Build(s.Workspace(), s.store.Export(), s.tasks.Export())
}

// ExportFilename suggests a download name for the current workspace.
func (s *Session) ExportFilename() string {
	return export.Filename(s.Workspace())
}

// ImportWorkspace validates a backup and replaces the workspace state with
// it. Validation failure leaves existing state untouched.
func (s *Session) ImportWorkspace(raw []byte) error {
	doc, err := export.Parse(raw)
	if err != nil {
		return err
	}
	export.Apply(doc, s.store, s.tasks)
	s.treeDirty.Store(true)
	s.persistState()
	s.persistTasks()
	s.emit("import", map[string]string{"workspace": s.Workspace()})
	s.scheduleReprocess()
	return nil
}

// ApplyOverrides installs selector override chains, replacing any prior
// overrides, and schedules a pass so the new selectors take effect.
func (s *Session) ApplyOverrides(overrides selector.Chains) {
	s.resolver.Apply(overrides)
	s.scheduleReprocess()
}

// ResetFeature re-enables one degraded feature.
func (s *Session) ResetFeature(name string) {
	s.governor.Reset(name)
	s.scheduleReprocess()
}

// ResetAllFeatures re-enables everything.
func (s *Session) ResetAllFeatures() {
	s.governor.ResetAll()
	s.scheduleReprocess()
}

// PopoutActiveNote renders the currently open note as a standalone page,
// themed after the host's current color scheme.
func (s *Session) PopoutActiveNote(w io.Writer) error {
	root := s.doc.Root()
	titleEl := s.resolver.Resolve(root, selector.RoleActiveNoteTitle)
	bodyEl := s.resolver.Resolve(root, selector.RoleActiveNoteBody)
	if titleEl == nil && bodyEl == nil {
		return fmt.Errorf("no open note: %w", apperr.ErrNotFound)
	}
	note := popout.Note{}
	if titleEl != nil {
		note.Title = titleEl.Text()
	}
	if bodyEl != nil {
		note.Content = bodyEl.Text()
	}
	if body := s.doc.Body(); body != nil {
		note.Theme = popout.ThemeFromClass(body.Attr("class"))
	}
	return popout.Render(w, note)
}

// RunOrganizerNow forces an immediate reconciliation pass, bypassing the
// debounce. Used by tests and the diagnostics API.
func (s *Session) RunOrganizerNow() { s.runOrganizer() }

// IndexActiveNoteNow forces an immediate reindex pass.
func (s *Session) IndexActiveNoteNow() { s.indexActiveNote() }
