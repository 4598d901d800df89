package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/permission-journal/internal/handler"
	"github.com/sakif/permission-journal/internal/notify"
	"github.com/sakif/permission-journal/internal/remoteconfig"
	"github.com/sakif/permission-journal/internal/repository/sqlite"
	"github.com/sakif/permission-journal/internal/service"
)

// =========================================================================
// TEST FIXTURE
// =========================================================================
//
// Handlers are mounted through Handlers.Mount, the route table the server
// uses, over a real in-memory store, so chi.URLParam and the full
// service path are exercised.

type fixture struct {
	router  chi.Router
	journal *service.Journal
	store   *sqlite.Store
	events  *notify.Broadcaster
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := sqlite.New(sqlite.Config{InMemory: true}, discardLogger())
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return newFixtureWith(t, store, remoteconfig.New("", 0, discardLogger()))
}

// newUnreadyFixture wires the handlers over a store that was never opened.
func newUnreadyFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, sqlite.New(sqlite.Config{InMemory: true}, discardLogger()),
		remoteconfig.New("", 0, discardLogger()))
}

func newFixtureWith(t *testing.T, store *sqlite.Store, remote handler.RemoteConfigRetriever) *fixture {
	t.Helper()
	logger := discardLogger()
	events := notify.New()
	t.Cleanup(events.Close)
	journal := service.NewJournal(store, events, logger, service.WithLocation(time.UTC))

	health := handler.NewHealthHandler(store, journal)
	api := handler.Handlers{
		Permissions:  handler.NewPermissionHandler(journal, logger),
		Categories:   handler.NewCategoryHandler(journal, logger),
		Tags:         handler.NewTagHandler(journal, logger),
		Insights:     handler.NewInsightsHandler(journal, logger),
		Backups:      handler.NewBackupHandler(journal, logger),
		Events:       handler.NewEventsHandler(events, time.Hour, logger),
		RemoteConfig: handler.NewRemoteConfigHandler(remote, logger),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HandleHealth)
		api.Mount(r)
	})

	return &fixture{router: r, journal: journal, store: store, events: events}
}

// do sends a request with an optional JSON body and returns the recorder.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = bytes.NewBufferString(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, errorType string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	got := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, errorType, got.Error)
	assert.NotEmpty(t, got.Message)
}

// =========================================================================
// HEALTH
// =========================================================================

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[handler.HealthResponse](t, rr)
	assert.Equal(t, "ok", got.Status)
	assert.True(t, got.Ready)
	assert.False(t, got.Recovered)
	assert.Zero(t, got.Writes)
	assert.NotEmpty(t, got.RefreshToken)

	before := got.RefreshToken
	f.do(t, http.MethodPost, "/api/tags", map[string]any{"name": "Calm"})

	got = decode[handler.HealthResponse](t, f.do(t, http.MethodGet, "/api/health", nil))
	assert.EqualValues(t, 1, got.Writes)
	assert.NotEqual(t, before, got.RefreshToken, "a write rotates the refresh token")
}

func TestHealth_UnreadyStore(t *testing.T) {
	f := newUnreadyFixture(t)

	rr := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	got := decode[handler.HealthResponse](t, rr)
	assert.Equal(t, "unavailable", got.Status)
	assert.False(t, got.Ready)
}

// =========================================================================
// REMOTE CONFIG
// =========================================================================

func TestRemoteConfig_NotConfigured(t *testing.T) {
	f := newFixture(t)
	assertError(t, f.do(t, http.MethodGet, "/api/remote-config", nil), http.StatusNotFound, "not_configured")
}

func TestRemoteConfig_ProxiesResult(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantState remoteconfig.State
		wantURL   string
	}{
		{"redirect", http.StatusOK, `{"url":"https://example.com/welcome"}`, remoteconfig.StateCompleted, "https://example.com/welcome"},
		{"no redirect", http.StatusOK, `{}`, remoteconfig.StateCompleted, ""},
		{"rate limited", http.StatusTooManyRequests, ``, remoteconfig.StateRateLimited, ""},
		{"server error", http.StatusInternalServerError, ``, remoteconfig.StateFailed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer upstream.Close()

			store := sqlite.New(sqlite.Config{InMemory: true}, discardLogger())
			f := newFixtureWith(t, store, remoteconfig.New(upstream.URL, time.Second, discardLogger()))

			rr := f.do(t, http.MethodGet, "/api/remote-config", nil)
			require.Equal(t, http.StatusOK, rr.Code)
			got := decode[handler.RemoteConfigResponse](t, rr)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantURL, got.URL)
		})
	}
}
