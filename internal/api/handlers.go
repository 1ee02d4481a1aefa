package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/arbor/internal/apperr"
	"github.com/verdantlabs/arbor/internal/engine"
	"github.com/verdantlabs/arbor/internal/state"
)

// Handler holds API route handlers.
type Handler struct {
	session *engine.Session
}

// NewHandler creates a new Handler.
func NewHandler(s *engine.Session) *Handler {
	return &Handler{session: s}
}

func panelContext(raw string) (state.Context, error) {
	ctx := state.Context(raw)
	if !ctx.Valid() {
		return "", fmt.Errorf("context must be %q or %q: %w",
			state.ContextSource, state.ContextStudio, apperr.ErrInvalid)
	}
	return ctx, nil
}

// Status handles GET /status.
//
//	@Summary		Session lifecycle state and feature health
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:     h.session.State().String(),
		Workspace: h.session.Workspace(),
		Features:  h.session.Governor().Snapshot(),
	})
}

// ResetFeature handles POST /features/{name}/reset.
//
//	@Summary		Re-enable a degraded feature
//	@Tags			session
//	@Param			name	path	string	true	"Feature name"
//	@Success		204		"Feature reset"
//	@Security		BearerAuth
//	@Router			/features/{name}/reset [post]
func (h *Handler) ResetFeature(w http.ResponseWriter, r *http.Request) {
	h.session.ResetFeature(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// ResetAllFeatures handles POST /features/reset.
func (h *Handler) ResetAllFeatures(w http.ResponseWriter, r *http.Request) {
	h.session.ResetAllFeatures()
	w.WriteHeader(http.StatusNoContent)
}

// ListFolders handles GET /folders.
//
//	@Summary		List a panel's folders in display order
//	@Tags			folders
//	@Produce		json
//	@Param			context	query		string	true	"Panel context"	Enums(source, studio)
//	@Success		200		{object}	FolderListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [get]
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	ctx, err := panelContext(r.URL.Query().Get("context"))
	if err != nil {
		writeError(w, err)
		return
	}
	folders := h.session.Folders(ctx)
	if folders == nil {
		folders = []state.FlatFolder{}
	}
	writeJSON(w, http.StatusOK, FolderListResponse{Folders: folders})
}

// CreateFolder handles POST /folders.
//
//	@Summary		Create a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FolderRequest	true	"Folder to create"
//	@Success		201		{object}	state.Folder
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	f, err := h.session.CreateFolder(ctx, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// RenameFolder handles PUT /folders/{id}.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.RenameFolder(ctx, chi.URLParam(r, "id"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder handles DELETE /folders/{id}. Mapped items return to their
// native rows and child folders become roots.
//
//	@Summary		Delete a folder
//	@Tags			folders
//	@Param			id		path	string	true	"Folder ID"
//	@Param			context	query	string	true	"Panel context"
//	@Success		204		"Folder deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{id} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	ctx, err := panelContext(r.URL.Query().Get("context"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.DeleteFolder(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveFolder handles POST /folders/{id}/move.
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderMoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.MoveFolder(ctx, chi.URLParam(r, "id"), req.Delta); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReparentFolder handles POST /folders/{id}/reparent.
func (h *Handler) ReparentFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.ReparentFolder(ctx, chi.URLParam(r, "id"), req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CycleFolderColor handles POST /folders/{id}/color.
func (h *Handler) CycleFolderColor(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	color, err := h.session.CycleFolderColor(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"color": color})
}

// ToggleFolder handles POST /folders/{id}/toggle.
func (h *Handler) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.ToggleFolder(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFolderCheck handles POST /folders/{id}/check: converge the check
// state of every source row in the folder.
func (h *Handler) ToggleFolderCheck(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.ToggleFolderCheck(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpandFolders handles POST /folders/expand.
func (h *Handler) ExpandFolders(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.SetAllFolders(ctx, req.Open); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignItem handles POST /items/assign.
//
//	@Summary		Map an item into a folder
//	@Tags			items
//	@Accept			json
//	@Param			body	body	ItemRequest	true	"Item and target folder"
//	@Success		204		"Item assigned"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/assign [post]
func (h *Handler) AssignItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.AssignItem(ctx, req.Title, req.FolderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EjectItem handles POST /items/eject.
func (h *Handler) EjectItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.EjectItem(ctx, req.Title); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePin handles POST /items/pin.
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	pinned, err := h.session.TogglePin(ctx, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}

// ActivateItem handles POST /items/activate.
func (h *Handler) ActivateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.session.ActivateItem(ctx, req.Title); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Filter handles POST /filter.
//
//	@Summary		Apply a live filter query to a panel
//	@Tags			items
//	@Accept			json
//	@Param			body	body	FilterRequest	true	"Query; empty clears the filter"
//	@Success		204		"Filter applied"
//	@Security		BearerAuth
//	@Router			/filter [post]
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, err := panelContext(req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	h.session.Filter(ctx, req.Query)
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Settings())
}

// UpdateSettings handles PUT /settings. The body is the full settings
// object; partial updates read-modify-write on the client.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req state.Settings
	if !decodeBody(w, r, &req) {
		return
	}
	updated := h.session.UpdateSettings(func(s *state.Settings) { *s = req })
	writeJSON(w, http.StatusOK, updated)
}

// Reprocess handles POST /reprocess: an immediate reconcile and reindex
// pass, bypassing the debounce. Diagnostics aid.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	h.session.RunOrganizerNow()
	h.session.IndexActiveNoteNow()
	w.WriteHeader(http.StatusNoContent)
}

// RebuildIndex handles POST /index/rebuild: drop the search index and
// reindex from the active note.
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	h.session.RebuildIndex()
	w.WriteHeader(http.StatusNoContent)
}
