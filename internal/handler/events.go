package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/permission-journal/internal/notify"
)

// DefaultHeartbeat is how often an idle event stream sends a comment line,
// so proxies and clients can tell a quiet stream from a dead one.
const DefaultHeartbeat = 25 * time.Second

// Subscriber is the part of notify.Broadcaster the event stream needs.
type Subscriber interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// EventsHandler streams journal change events as server-sent events.
type EventsHandler struct {
	events    Subscriber
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewEventsHandler creates an EventsHandler. A zero heartbeat means
// DefaultHeartbeat.
func NewEventsHandler(events Subscriber, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventsHandler{events: events, logger: logger, heartbeat: heartbeat}
}

// HandleStream keeps the response open and writes one SSE message per
// change:
//
//	id: 7
//	event: journal.changed
//	data: {"name":"journal.changed","sequence":7,"at":"..."}
//
// HTTP: GET /api/events
//
// Events carry no records. A client reacts by re-reading what it shows.
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server's WriteTimeout would cut long-lived streams.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("event stream: clearing write deadline", slog.String("error", err.Error()))
	}

	events, cancel := h.events.Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream: flushing not supported", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("event stream: encoding event", slog.String("error", err.Error()))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Name, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
