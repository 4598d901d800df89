package remoteconfig

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRetrieve(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    State
		wantURL string
	}{
		{"redirect url", http.StatusOK, `{"url":"https://example.com/journal"}`, StateCompleted, "https://example.com/journal"},
		{"empty url", http.StatusOK, `{"url":""}`, StateCompleted, ""},
		{"missing url", http.StatusOK, `{}`, StateCompleted, ""},
		{"rate limited", http.StatusTooManyRequests, ``, StateRateLimited, ""},
		{"server error", http.StatusInternalServerError, `oops`, StateFailed, ""},
		{"bad json", http.StatusOK, `{"url":`, StateFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			res := New(srv.URL, time.Second, discard).Retrieve(context.Background())
			assert.Equal(t, tt.want, res.State)
			assert.Equal(t, tt.wantURL, res.URL)
			if tt.want == StateFailed {
				assert.Error(t, res.Err)
			} else {
				assert.NoError(t, res.Err)
			}
		})
	}
}

func TestRetrieve_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res := New(srv.URL, 50*time.Millisecond, discard).Retrieve(context.Background())
	assert.Equal(t, StateFailed, res.State)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetrieve_NotConfigured(t *testing.T) {
	c := New("", 0, discard)
	assert.False(t, c.Enabled())
	res := c.Retrieve(context.Background())
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrNotConfigured)
}

func TestRetrieve_ConcurrentCallsShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		io.WriteString(w, `{"url":"https://example.com"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, discard)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Retrieve(context.Background())
		}()
	}

	// Let the callers pile up behind the first request, then answer it.
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, StateCompleted, res.State)
		assert.Equal(t, "https://example.com", res.URL)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetrieve_CanceledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		io.WriteString(w, `{"url":"https://example.com"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, discard)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- c.Retrieve(ctx) }()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan Result, 1)
	go func() { second <- c.Retrieve(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	// The caller that started the request goes away before it completes.
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	res := <-second
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "https://example.com", res.URL)
	assert.Equal(t, StateCompleted, (<-first).State)
	assert.Equal(t, int32(1), hits.Load())
}
