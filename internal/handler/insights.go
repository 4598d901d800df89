package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/service"
)

// InsightsHandler serves the read-only views computed from the whole journal.
type InsightsHandler struct {
	journal *service.Journal
	logger  *slog.Logger
}

// NewInsightsHandler creates an InsightsHandler.
func NewInsightsHandler(journal *service.Journal, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{journal: journal, logger: logger}
}

// HandleInsights returns the dashboard summary.
//
// HTTP: GET /api/insights
func (h *InsightsHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	in, err := h.journal.Insights(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	in.CategoryAverages = orEmpty(in.CategoryAverages)
	in.Recent = orEmpty(in.Recent)
	writeJSON(w, http.StatusOK, in)
}

// HandleGallery returns high-impact permissions, strongest first.
//
// HTTP: GET /api/gallery
func (h *InsightsHandler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	ps, err := h.journal.Gallery(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}

// HandleTimeline returns one calendar month of permissions.
//
// HTTP: GET /api/timeline?month=2024-06&tag=Joy
//
// month defaults to the current month in the journal's time zone.
func (h *InsightsHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	loc := h.journal.Location()
	month := time.Now().In(loc)
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.ParseInLocation(monthLayout, m, loc)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("month", fmt.Sprintf("month %q must be YYYY-MM", m)))
			return
		}
		month = parsed
	}

	ps, err := h.journal.Timeline(r.Context(), month, r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}
