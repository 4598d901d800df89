package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/permission-journal/internal/remoteconfig"
)

// RemoteConfigRetriever fetches the remote redirect config.
type RemoteConfigRetriever interface {
	Enabled() bool
	Retrieve(ctx context.Context) remoteconfig.Result
}

// RemoteConfigHandler proxies the remote config fetch for clients that
// cannot reach the endpoint themselves.
type RemoteConfigHandler struct {
	remote RemoteConfigRetriever
	logger *slog.Logger
}

// NewRemoteConfigHandler creates a RemoteConfigHandler.
func NewRemoteConfigHandler(remote RemoteConfigRetriever, logger *slog.Logger) *RemoteConfigHandler {
	return &RemoteConfigHandler{remote: remote, logger: logger}
}

// RemoteConfigResponse is the outcome of one fetch. A failed or rate
// limited fetch is still a 200: the journal itself is fine, only the
// optional redirect is missing.
type RemoteConfigResponse struct {
	State   remoteconfig.State `json:"state"`
	URL     string             `json:"url"`
	Message string             `json:"message,omitempty"`
}

// HandleGet performs one fetch.
//
// HTTP: GET /api/remote-config
func (h *RemoteConfigHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.remote == nil || !h.remote.Enabled() {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_configured",
			Message: "no remote config endpoint is configured",
		})
		return
	}

	res := h.remote.Retrieve(r.Context())
	writeJSON(w, http.StatusOK, RemoteConfigResponse{
		State:   res.State,
		URL:     res.URL,
		Message: res.Message(),
	})
}
