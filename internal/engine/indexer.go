package engine

import (
	"log/slog"

	"github.com/verdantlabs/arbor/internal/health"
	"github.com/verdantlabs/arbor/internal/selector"
)

// indexActiveNote is the debounced reindex pass: when a note is open, its
// current title and body are upserted into the search index.
func (s *Session) indexActiveNote() {
	if s.State() != StateActive {
		return
	}
	s.governor.Guard(health.FeatureSearchIndexing, func() error {
		root := s.doc.Root()
		titleEl := s.resolver.Resolve(root, selector.RoleActiveNoteTitle)
		bodyEl := s.resolver.Resolve(root, selector.RoleActiveNoteBody)
		if titleEl == nil || bodyEl == nil {
			return nil
		}
		title := titleEl.Text()
		if s.index.Upsert(title, bodyEl.Text()) {
			s.logger.Debug("note indexed",
				slog.String("title", title),
				slog.Int("indexSize", s.index.Size()))
			s.emit("index", map[string]any{
				"title":   title,
				"entries": s.index.Len(),
				"size":    s.index.Size(),
			})
		}
		return nil
	})
}

// RebuildIndex clears the index and schedules a fresh pass over the active
// note. Older notes reindex as they are opened.
func (s *Session) RebuildIndex() {
	s.index.Clear()
	s.governor.Reset(health.FeatureSearchIndexing)
	s.indexActiveNote()
	s.persistIndex()
}
