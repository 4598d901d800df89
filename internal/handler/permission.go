package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/model"
	"github.com/sakif/permission-journal/internal/service"
)

// dayLayout is the date-only form accepted for permission dates and month
// filters. Full RFC 3339 timestamps are accepted too.
const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// PermissionHandler serves the permission endpoints.
type PermissionHandler struct {
	journal *service.Journal
	logger  *slog.Logger
}

// NewPermissionHandler creates a PermissionHandler.
func NewPermissionHandler(journal *service.Journal, logger *slog.Logger) *PermissionHandler {
	return &PermissionHandler{journal: journal, logger: logger}
}

// permissionRequest is the body of create and update requests.
type permissionRequest struct {
	Statement       string   `json:"statement"`
	Date            string   `json:"date"`
	Category        *string  `json:"category"`
	EmotionalTags   []string `json:"emotionalTags"`
	ExpectedImpact  *string  `json:"expectedImpact"`
	ActualOutcome   *string  `json:"actualOutcome"`
	EmotionalImpact int      `json:"emotionalImpact"`
}

func (req permissionRequest) input(loc *time.Location) (service.PermissionInput, error) {
	var date time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date, loc)
		if err != nil {
			return service.PermissionInput{}, err
		}
		date = d
	}
	return service.PermissionInput{
		Statement:       req.Statement,
		Date:            date,
		Category:        req.Category,
		EmotionalTags:   req.EmotionalTags,
		ExpectedImpact:  req.ExpectedImpact,
		ActualOutcome:   req.ActualOutcome,
		EmotionalImpact: req.EmotionalImpact,
	}, nil
}

// parseDate accepts "2024-06-01" (midnight in loc) or an RFC 3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("date",
			fmt.Sprintf("date %q must be YYYY-MM-DD or RFC 3339", s))
	}
	return t, nil
}

// HandleList returns permissions, newest date first.
//
// HTTP: GET /api/permissions
//
// QUERY PARAMETERS (all optional, combined with AND):
//
//	category=Work      entries filed under the named category
//	tag=Joy            entries carrying the emotional tag
//	month=2024-06      entries dated inside the calendar month
//	outcome=true       entries with a recorded outcome
//	minImpact=8        entries rated at least this high
func (h *PermissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ps, err := h.journal.FindPermissions(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}

func (h *PermissionHandler) parseFilter(r *http.Request) (model.PermissionFilter, error) {
	q := r.URL.Query()
	var f model.PermissionFilter

	if c := q.Get("category"); c != "" {
		f.Category = &c
	}
	f.Tag = q.Get("tag")

	if m := q.Get("month"); m != "" {
		month, err := time.ParseInLocation(monthLayout, m, h.journal.Location())
		if err != nil {
			return f, apperror.ValidationFailed("month", fmt.Sprintf("month %q must be YYYY-MM", m))
		}
		f.From, f.To = model.MonthRange(month, h.journal.Location())
	}

	if o := q.Get("outcome"); o != "" {
		withOutcome, err := strconv.ParseBool(o)
		if err != nil {
			return f, apperror.ValidationFailed("outcome", "outcome must be true or false")
		}
		f.WithOutcome = withOutcome
	}

	if mi := q.Get("minImpact"); mi != "" {
		n, err := strconv.Atoi(mi)
		if err != nil || n < model.MinEmotionalImpact || n > model.MaxEmotionalImpact {
			return f, apperror.ValidationFailed("minImpact",
				fmt.Sprintf("minImpact must be between %d and %d", model.MinEmotionalImpact, model.MaxEmotionalImpact))
		}
		f.MinImpact = n
	}
	return f, nil
}

// HandleGet returns one permission.
//
// HTTP: GET /api/permissions/{id}
func (h *PermissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.journal.Permission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCreate journals a new permission.
//
// HTTP: POST /api/permissions
// REQUEST BODY: {"statement": "I may rest", "date": "2024-06-01", "emotionalTags": ["Calm"]}
func (h *PermissionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input(h.journal.Location())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.journal.CreatePermission(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate replaces the editable fields of a permission.
//
// HTTP: PUT /api/permissions/{id}
func (h *PermissionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input(h.journal.Location())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.journal.UpdatePermission(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type outcomeRequest struct {
	ActualOutcome   string `json:"actualOutcome"`
	EmotionalImpact int    `json:"emotionalImpact"`
}

// HandleRecordOutcome records what actually happened after a permission.
//
// HTTP: POST /api/permissions/{id}/outcome
// REQUEST BODY: {"actualOutcome": "slept well", "emotionalImpact": 7}
func (h *PermissionHandler) HandleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.journal.RecordOutcome(r.Context(), chi.URLParam(r, "id"), req.ActualOutcome, req.EmotionalImpact)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type reflectionRequest struct {
	Reflection string `json:"reflection"`
}

// HandleAddReflection adds a reflection to a permission's outcome without
// replacing what was written before.
//
// HTTP: POST /api/permissions/{id}/reflection
// REQUEST BODY: {"reflection": "still glad I did"}
func (h *PermissionHandler) HandleAddReflection(w http.ResponseWriter, r *http.Request) {
	var req reflectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p, err := h.journal.AddReflection(r.Context(), chi.URLParam(r, "id"), req.Reflection)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a permission.
//
// HTTP: DELETE /api/permissions/{id}
func (h *PermissionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.DeletePermission(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
