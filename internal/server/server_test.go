package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/permission-journal/internal/auth"
	"github.com/sakif/permission-journal/internal/notify"
	"github.com/sakif/permission-journal/internal/remoteconfig"
	"github.com/sakif/permission-journal/internal/repository/sqlite"
	"github.com/sakif/permission-journal/internal/service"
)

func newTestServer(t *testing.T, tokens *auth.TokenService) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := sqlite.New(sqlite.Config{InMemory: true}, logger)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	events := notify.New()
	t.Cleanup(events.Close)

	srv, err := New(Config{}, Deps{
		Journal: service.NewJournal(store, events, logger),
		Store:   store,
		Events:  events,
		Remote:  remoteconfig.New("", 0, logger),
		Tokens:  tokens,
	}, logger)
	require.NoError(t, err)
	return srv
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRoutes_OpenAPI(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/permissions", "application/json",
		strings.NewReader(`{"statement":"I may rest","date":"2024-06-01"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/api/permissions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "I may rest", list[0]["statement"])
}

func TestRoutes_AuthProtectsAllButHealth(t *testing.T) {
	tokens, err := auth.NewTokenService("server-test-secret-0123456789")
	require.NoError(t, err)
	ts := httptest.NewServer(newTestServer(t, tokens).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/api/permissions", "/api/categories", "/api/tags", "/api/insights", "/api/backup"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	token, err := tokens.Generate("test", time.Hour)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/permissions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_AddReflectionRequiresToken(t *testing.T) {
	tokens, err := auth.NewTokenService("server-test-secret-0123456789")
	require.NoError(t, err)
	ts := httptest.NewServer(newTestServer(t, tokens).Handler())
	defer ts.Close()

	token, err := tokens.Generate("test", time.Hour)
	require.NoError(t, err)
	send := func(method, path, body, bearer string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := send(http.MethodPost, "/api/permissions", `{"statement":"I may rest","date":"2024-06-01"}`, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	path := "/api/permissions/" + created["id"].(string) + "/reflection"

	resp = send(http.MethodPost, path, `{"reflection":"slept well"}`, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = send(http.MethodPost, path, `{"reflection":"slept well"}`, token)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "slept well", got["actualOutcome"])
}

func TestRoutes_UnknownPath(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer(t, nil).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snippets", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
