package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/arbor/internal/engine"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(s *engine.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(s)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session diagnostics.
	r.Get("/status", h.Status)
	r.Post("/features/reset", h.ResetAllFeatures)
	r.Post("/features/{name}/reset", h.ResetFeature)
	r.Post("/reprocess", h.Reprocess)
	r.Post("/index/rebuild", h.RebuildIndex)

	// Folder trees.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/expand", h.ExpandFolders)
	r.Put("/folders/{id}", h.RenameFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)
	r.Post("/folders/{id}/move", h.MoveFolder)
	r.Post("/folders/{id}/reparent", h.ReparentFolder)
	r.Post("/folders/{id}/color", h.CycleFolderColor)
	r.Post("/folders/{id}/toggle", h.ToggleFolder)
	r.Post("/folders/{id}/check", h.ToggleFolderCheck)

	// Panel items.
	r.Post("/items/assign", h.AssignItem)
	r.Post("/items/eject", h.EjectItem)
	r.Post("/items/pin", h.TogglePin)
	r.Post("/items/activate", h.ActivateItem)
	r.Post("/filter", h.Filter)

	// Tasks and sections.
	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.CreateTask)
	r.Post("/tasks/sort", h.SortTasks)
	r.Post("/tasks/clear-completed", h.ClearCompletedTasks)
	r.Patch("/tasks/{id}", h.EditTask)
	r.Delete("/tasks/{id}", h.DeleteTask)
	r.Post("/tasks/{id}/toggle", h.ToggleTask)
	r.Post("/tasks/{id}/priority", h.CycleTaskPriority)
	r.Post("/tasks/{id}/move", h.MoveTask)
	r.Post("/tasks/{id}/focus-source", h.FocusTaskSource)
	r.Post("/sections", h.CreateSection)
	r.Put("/sections/{id}", h.RenameSection)
	r.Delete("/sections/{id}", h.DeleteSection)
	r.Post("/sections/{id}/toggle", h.ToggleSection)
	r.Post("/sections/{id}/move", h.MoveSection)
	r.Post("/sections/{id}/color", h.CycleSectionColor)

	// Search, settings, transfer.
	r.Get("/search", h.Search)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Get("/popout", h.Popout)
	r.Get("/popout.pdf", h.PopoutPDF)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
