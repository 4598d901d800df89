package handler

import (
	"net/http"
)

// StoreStatus reports on the journal store without touching its records.
type StoreStatus interface {
	IsReady() bool
	Recovered() bool
	WriteCount() int64
}

// RefreshSource supplies the current refresh token.
type RefreshSource interface {
	RefreshToken() string
}

// HealthHandler reports whether the journal can be used.
type HealthHandler struct {
	store   StoreStatus
	refresh RefreshSource
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store StoreStatus, refresh RefreshSource) *HealthHandler {
	return &HealthHandler{store: store, refresh: refresh}
}

// HealthResponse is the body of GET /api/health.
//
// Recovered is true when the store file was unreadable at startup and was
// replaced by an empty journal. The refresh token changes after every
// successful write, so a client can poll it cheaply.
type HealthResponse struct {
	Status       string `json:"status"`
	Ready        bool   `json:"ready"`
	Recovered    bool   `json:"recovered"`
	Writes       int64  `json:"writes"`
	RefreshToken string `json:"refreshToken"`
}

// HandleHealth answers 200 when the store is ready and 503 otherwise.
//
// HTTP: GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "ok",
		Ready:        h.store.IsReady(),
		Recovered:    h.store.Recovered(),
		Writes:       h.store.WriteCount(),
		RefreshToken: h.refresh.RefreshToken(),
	}
	status := http.StatusOK
	if !resp.Ready {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
