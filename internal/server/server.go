// Package server wires handlers, middleware and routes into the journal's
// HTTP API and runs it.
//
// COMPOSITION ROOT:
// The caller (the serve command) builds the long-lived pieces: store,
// journal, broadcaster, remote config client and token service. New only
// connects them to routes, so tests can build a Server around an
// in-memory store without touching the network.
//
// ROUTE STRUCTURE:
//
//	GET    /api/health                  → store readiness (never behind auth)
//	GET    /api/permissions             → list / filter permissions
//	POST   /api/permissions             → create permission
//	GET    /api/permissions/{id}        → get permission
//	PUT    /api/permissions/{id}        → update permission
//	DELETE /api/permissions/{id}        → delete permission
//	POST   /api/permissions/{id}/outcome → record actual outcome
//	POST   /api/permissions/{id}/reflection → append a reflection
//	GET    /api/categories              → list categories
//	POST   /api/categories              → create category
//	GET    /api/categories/{id}         → get category
//	PUT    /api/categories/{id}         → rename category
//	DELETE /api/categories/{id}         → delete category
//	...    /api/tags                    → same shape as categories
//	GET    /api/insights                → dashboard statistics
//	GET    /api/gallery                 → high-impact permissions
//	GET    /api/timeline                → one month of permissions
//	GET    /api/backup                  → download backup document
//	POST   /api/backup                  → restore backup document
//	DELETE /api/journal                 → delete everything
//	GET    /api/events                  → server-sent change events
//	GET    /api/remote-config           → fetch remote redirect config
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique id to each request (logged by Logger)
//  2. RealIP: extracts the client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: turns panics into 500s instead of crashing
//  5. RequireAuth: only on the protected group
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/permission-journal/internal/auth"
	"github.com/sakif/permission-journal/internal/handler"
	"github.com/sakif/permission-journal/internal/middleware"
	"github.com/sakif/permission-journal/internal/service"
)

// ShutdownTimeout is how long in-flight requests get to finish.
const ShutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port int
	// Heartbeat is the idle interval of event streams. Zero means
	// handler.DefaultHeartbeat.
	Heartbeat time.Duration
}

// Deps are the collaborators the routes are served from.
//
// Tokens may be nil, which leaves the API open. Remote must not be nil;
// pass a client with no endpoint to disable the remote config route.
type Deps struct {
	Journal *service.Journal
	Store   handler.StoreStatus
	Events  handler.Subscriber
	Remote  handler.RemoteConfigRetriever
	Tokens  *auth.TokenService
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New creates a Server with every route mounted.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Journal == nil || deps.Store == nil || deps.Events == nil || deps.Remote == nil {
		return nil, errors.New("server: journal, store, events and remote are required")
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s, nil
}

func (s *Server) setupRoutes(deps Deps) {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	health := handler.NewHealthHandler(deps.Store, deps.Journal)
	api := handler.Handlers{
		Permissions:  handler.NewPermissionHandler(deps.Journal, s.logger),
		Categories:   handler.NewCategoryHandler(deps.Journal, s.logger),
		Tags:         handler.NewTagHandler(deps.Journal, s.logger),
		Insights:     handler.NewInsightsHandler(deps.Journal, s.logger),
		Backups:      handler.NewBackupHandler(deps.Journal, s.logger),
		Events:       handler.NewEventsHandler(deps.Events, s.config.Heartbeat, s.logger),
		RemoteConfig: handler.NewRemoteConfigHandler(deps.Remote, s.logger),
	}

	s.router.Route("/api", func(r chi.Router) {
		// Health stays reachable without a token so supervisors can check it.
		r.Get("/health", health.HandleHealth)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(deps.Tokens))
			api.Mount(r)
		})
	})
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to ShutdownTimeout for in-flight requests
//
// Request contexts derive from ctx, so open event streams end as soon as
// ctx is cancelled and do not hold up the shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("server: listening on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("url", fmt.Sprintf("http://%s", ln.Addr().String())),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
