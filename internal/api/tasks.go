package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/arbor/internal/tasks"
)

// ListTasks handles GET /tasks.
//
//	@Summary		List tasks and sections
//	@Tags			tasks
//	@Produce		json
//	@Success		200	{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	list := h.session.Tasks()
	if list == nil {
		list = []tasks.Task{}
	}
	sections := h.session.Sections()
	if sections == nil {
		sections = []tasks.Section{}
	}
	now := time.Now()
	var overdue []string
	for _, t := range list {
		if t.Overdue(now) {
			overdue = append(overdue, t.ID)
		}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: list, Sections: sections, Overdue: overdue})
}

// CreateTask handles POST /tasks.
//
//	@Summary		Create a task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TaskRequest	true	"Task to create"
//	@Success		201		{object}	tasks.Task
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.session.AddTask(req.Text, req.SectionID, req.SourceNote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// EditTask handles PATCH /tasks/{id}. Only fields present in the body
// change.
func (h *Handler) EditTask(w http.ResponseWriter, r *http.Request) {
	var upd tasks.Update
	if !decodeBody(w, r, &upd) {
		return
	}
	t, err := h.session.EditTask(chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ToggleTask handles POST /tasks/{id}/toggle.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	done, err := h.session.ToggleTask(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"done": done})
}

// CycleTaskPriority handles POST /tasks/{id}/priority.
func (h *Handler) CycleTaskPriority(w http.ResponseWriter, r *http.Request) {
	prio, err := h.session.CycleTaskPriority(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"priority": prio})
}

// MoveTask handles POST /tasks/{id}/move.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.MoveTask(chi.URLParam(r, "id"), req.Delta); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FocusTaskSource handles POST /tasks/{id}/focus-source: filter the
// studio panel to the note the task was captured from.
func (h *Handler) FocusTaskSource(w http.ResponseWriter, r *http.Request) {
	if err := h.session.FocusTaskSource(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteTask(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SortTasks handles POST /tasks/sort.
func (h *Handler) SortTasks(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.By {
	case "priority":
		h.session.SortTasksByPriority()
	case "date":
		h.session.SortTasksByDate()
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("sort must be 'priority' or 'date'"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCompletedTasks handles POST /tasks/clear-completed.
func (h *Handler) ClearCompletedTasks(w http.ResponseWriter, r *http.Request) {
	n := h.session.ClearCompletedTasks()
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// CreateSection handles POST /sections.
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req SectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sec, err := h.session.AddSection(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

// RenameSection handles PUT /sections/{id}.
func (h *Handler) RenameSection(w http.ResponseWriter, r *http.Request) {
	var req SectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.RenameSection(chi.URLParam(r, "id"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveSection handles POST /sections/{id}/move.
func (h *Handler) MoveSection(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.MoveSection(chi.URLParam(r, "id"), req.Delta); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CycleSectionColor handles POST /sections/{id}/color.
func (h *Handler) CycleSectionColor(w http.ResponseWriter, r *http.Request) {
	color, err := h.session.CycleSectionColor(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"color": color})
}

// ToggleSection handles POST /sections/{id}/toggle.
func (h *Handler) ToggleSection(w http.ResponseWriter, r *http.Request) {
	open, err := h.session.ToggleSection(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

// DeleteSection handles DELETE /sections/{id}. Tasks in the section are
// kept and move to the unsectioned list.
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteSection(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
