package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/permission-journal/internal/service"
)

// TagHandler serves the emotional tag endpoints.
type TagHandler struct {
	journal *service.Journal
	logger  *slog.Logger
}

// NewTagHandler creates a TagHandler.
func NewTagHandler(journal *service.Journal, logger *slog.Logger) *TagHandler {
	return &TagHandler{journal: journal, logger: logger}
}

type tagRequest struct {
	Name     string  `json:"name"`
	ColorHex *string `json:"colorHex"`
	IconName *string `json:"iconName"`
}

// HandleList returns tags ordered by name.
//
// HTTP: GET /api/tags
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ts, err := h.journal.ListTags(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ts))
}

// HTTP: GET /api/tags/{id}
func (h *TagHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.journal.Tag(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HTTP: POST /api/tags
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.journal.CreateTag(r.Context(), req.Name, req.ColorHex, req.IconName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleRename renames a tag on the tag record and on every permission
// carrying it.
//
// HTTP: PUT /api/tags/{id}
func (h *TagHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.journal.RenameTag(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HTTP: DELETE /api/tags/{id}
func (h *TagHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
