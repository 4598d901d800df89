// Package remoteconfig fetches the journal's optional redirect URL from a
// remote endpoint. It is independent of persistence: a failed or slow fetch
// never affects the store.
//
// One GET with a fixed timeout, no retry. The endpoint answers
// {"url": "https://..."}; a missing or empty url is a successful answer
// meaning "no redirect".
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single retrieval.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 64 << 10

// State is the outcome of a retrieval.
type State string

const (
	StatePending     State = "pending"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateRateLimited State = "rate_limited"
)

// ErrNotConfigured is reported when no endpoint URL was given.
var ErrNotConfigured = errors.New("remoteconfig: no endpoint configured")

// Result is what Retrieve found. URL is empty unless State is
// StateCompleted and the endpoint named one.
type Result struct {
	URL   string `json:"url,omitempty"`
	State State  `json:"state"`
	Err   error  `json:"-"`
}

// Message returns the failure message, or "" when there is none.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type response struct {
	URL *string `json:"url"`
}

// Client retrieves the remote config. Concurrent Retrieve calls share one
// request.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
	group    singleflight.Group
}

// New returns a Client for endpoint. A zero timeout means DefaultTimeout.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// Retrieve performs the fetch. It never returns StatePending; that state
// belongs to callers that have not asked yet.
func (c *Client) Retrieve(ctx context.Context) Result {
	if !c.Enabled() {
		return Result{State: StateFailed, Err: ErrNotConfigured}
	}
	// The request is shared by every caller that joins it, so one caller
	// going away must not fail the rest. The client timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do(c.endpoint, func() (any, error) {
		return c.fetch(shared), nil
	})
	res := v.(Result)

	switch res.State {
	case StateFailed:
		c.logger.Warn("remote config fetch failed", slog.String("error", res.Message()))
	case StateRateLimited:
		c.logger.Warn("remote config fetch rate limited")
	default:
		c.logger.Debug("remote config fetched", slog.Bool("redirect", res.URL != ""))
	}
	return res
}

func (c *Client) fetch(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("remoteconfig: invalid endpoint: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("remoteconfig: request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{State: StateRateLimited}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{State: StateFailed, Err: fmt.Errorf("remoteconfig: HTTP error: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("remoteconfig: reading body: %w", err)}
	}
	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("remoteconfig: failed to decode JSON: %w", err)}
	}

	res := Result{State: StateCompleted}
	if decoded.URL != nil {
		res.URL = *decoded.URL
	}
	return res
}
