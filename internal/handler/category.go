package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/permission-journal/internal/service"
)

// CategoryHandler serves the category endpoints.
type CategoryHandler struct {
	journal *service.Journal
	logger  *slog.Logger
}

// NewCategoryHandler creates a CategoryHandler.
func NewCategoryHandler(journal *service.Journal, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{journal: journal, logger: logger}
}

type categoryRequest struct {
	Name     string  `json:"name"`
	IconName *string `json:"iconName"`
	ColorHex *string `json:"colorHex"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// HandleList returns categories in display order.
//
// HTTP: GET /api/categories
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cs, err := h.journal.ListCategories(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cs))
}

// HandleGet returns one category.
//
// HTTP: GET /api/categories/{id}
func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.journal.Category(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleCreate adds a category at the end of the display order.
//
// HTTP: POST /api/categories
// REQUEST BODY: {"name": "Rest", "iconName": "bed", "colorHex": "#88AAFF"}
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.journal.CreateCategory(r.Context(), req.Name, req.IconName, req.ColorHex)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleRename renames a category. Permissions filed under the old name
// move with it.
//
// HTTP: PUT /api/categories/{id}
// REQUEST BODY: {"name": "Leisure"}
func (h *CategoryHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	c, err := h.journal.RenameCategory(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a category. Permissions keep the deleted name.
//
// HTTP: DELETE /api/categories/{id}
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
