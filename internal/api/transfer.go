package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/verdantlabs/arbor/internal/engine"
	"github.com/verdantlabs/arbor/internal/hostcdp"
)

// Search handles GET /search.
//
//	@Summary		Full-text search over the indexed notes
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results := h.session.Search(q)
	if results == nil {
		results = []engine.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Export handles GET /export: the workspace backup document as a JSON
// download.
//
//	@Summary		Export the workspace as a backup document
//	@Tags			transfer
//	@Produce		json
//	@Success		200	{object}	export.Document
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", h.session.ExportFilename()))
	writeJSON(w, http.StatusOK, h.session.ExportWorkspace())
}

// Import handles POST /import. The body is a backup document; it replaces
// the workspace's folders, mappings, pins, settings and tasks. Validation
// failure leaves existing state untouched.
//
//	@Summary		Import a backup document, replacing workspace state
//	@Tags			transfer
//	@Accept			json
//	@Success		204	"Backup applied"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.session.ImportWorkspace(raw); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Popout handles GET /popout: the currently open note rendered as a
// standalone HTML page, themed after the host.
func (h *Handler) Popout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.session.PopoutActiveNote(w); err != nil {
		writeError(w, err)
	}
}

// PopoutPDF handles GET /popout.pdf: the popout page printed to PDF
// through headless Chrome.
func (h *Handler) PopoutPDF(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	if err := h.session.PopoutActiveNote(&page); err != nil {
		writeError(w, err)
		return
	}
	pdf, err := hostcdp.RenderPDF(r.Context(), page.String())
	if err != nil {
		slog.Error("popout pdf render failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("pdf rendering unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="note.pdf"`)
	_, _ = w.Write(pdf)
}
