// Package sqlite is the journal's Store Controller: it owns the one on-device
// SQLite database and the one long-lived read/write context over it.
//
// LIFECYCLE:
//
//	store := sqlite.New(cfg, logger)   // nothing opened yet
//	err := store.Init(ctx)             // open, migrate, maybe recover; bounded by cfg.OpenTimeout
//	store.IsReady()                    // true only if the open (or recovery) succeeded
//
// A failed Init does not leave callers with a nil store. The store stays
// usable in a not-ready state where reads return nothing and saves are
// skipped, and callers decide how to present that.
//
// RECOVERY:
// If a file-backed store cannot be opened (corrupt file, incompatible
// schema), the database file is deleted and recreated exactly once. Prior
// data is lost and Recovered() reports true.
//
// CONCURRENCY:
// Every method takes the same mutex, and the connection pool is capped at
// one connection, so all access to the shared context is serialized.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DefaultOpenTimeout bounds how long Init waits for the store to open.
const DefaultOpenTimeout = 10 * time.Second

// ErrOpenTimeout is recorded when the store does not finish opening in time.
var ErrOpenTimeout = errors.New("sqlite: store loading timed out")

// Config selects where the journal lives.
type Config struct {
	// Path is the database file. Ignored when InMemory is set.
	Path string
	// InMemory opens a volatile store that disappears with the process.
	InMemory bool
	// OpenTimeout bounds Init. Zero means DefaultOpenTimeout.
	OpenTimeout time.Duration
}

// Store implements repository.Store on top of SQLite.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	db          *sqlx.DB
	initialized bool
	ready       bool
	recovered   bool
	initErr     error
	pending     *changeSet

	writes atomic.Int64

	// openFn replaces open in tests that need to control timing or failure.
	openFn func(ctx context.Context) (*sqlx.DB, bool, error)
}

// New creates a Store that is not yet opened. Call Init before use.
func New(cfg Config, logger *slog.Logger) *Store {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	s := &Store{
		cfg:     cfg,
		logger:  logger,
		pending: newChangeSet(),
	}
	s.openFn = s.open
	return s
}

// Init opens the store and waits until it is queryable, the context is
// canceled, or cfg.OpenTimeout elapses, whichever comes first.
//
// The returned error is also kept and reported by Err. A store that failed
// to initialize stays not-ready for the rest of its life.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return errors.New("sqlite: store already initialized")
	}
	s.initialized = true
	s.mu.Unlock()

	openCtx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	defer cancel()

	type result struct {
		db        *sqlx.DB
		recovered bool
		err       error
	}
	done := make(chan result, 1)
	go func() {
		db, recovered, err := s.openFn(openCtx)
		done <- result{db: db, recovered: recovered, err: err}
	}()

	select {
	case r := <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.err != nil {
			s.initErr = r.err
			s.logger.Error("journal store unavailable", slog.String("error", r.err.Error()))
			return r.err
		}
		s.db = r.db
		s.ready = true
		s.recovered = r.recovered
		s.logger.Info("journal store ready",
			slog.String("path", s.location()),
			slog.Bool("recovered", r.recovered),
		)
		return nil

	case <-openCtx.Done():
		err := ErrOpenTimeout
		if ctx.Err() != nil {
			err = fmt.Errorf("sqlite: opening store: %w", ctx.Err())
		}
		s.mu.Lock()
		s.initErr = err
		s.mu.Unlock()
		s.logger.Error("journal store unavailable", slog.String("error", err.Error()))

		// The open may still finish later. Its connection is never used.
		go func() {
			if r := <-done; r.db != nil {
				r.db.Close()
			}
		}()
		return err
	}
}

// IsReady reports whether the store opened (or recovered) successfully and
// is safe to read and write.
func (s *Store) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}

func (s *Store) readyLocked() bool {
	return s.ready && s.db != nil && s.initErr == nil
}

// Err returns the terminal initialization error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initErr
}

// Recovered reports whether Init had to delete and recreate the database.
func (s *Store) Recovered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}

// WriteCount returns how many transactions Save and DeleteAll have committed.
func (s *Store) WriteCount() int64 {
	return s.writes.Load()
}

// Close releases the database. The store is not ready afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) location() string {
	if s.cfg.InMemory {
		return ":memory:"
	}
	return s.cfg.Path
}

// open connects and migrates, falling back to one destructive recovery pass
// for file-backed stores.
func (s *Store) open(ctx context.Context) (*sqlx.DB, bool, error) {
	db, err := s.connect(ctx)
	if err == nil {
		return db, false, nil
	}

	s.logger.Error("journal store failed to load",
		slog.String("path", s.location()),
		slog.String("error", err.Error()),
	)
	if s.cfg.InMemory || ctx.Err() != nil {
		return nil, false, err
	}

	s.logger.Warn("attempting to recover journal store by recreating it", slog.String("path", s.cfg.Path))
	db, rerr := s.recreate(ctx)
	if rerr != nil {
		return nil, false, fmt.Errorf("sqlite: recovering store (load error: %v): %w", err, rerr)
	}
	s.logger.Warn("journal store recreated; previous data was discarded", slog.String("path", s.cfg.Path))
	return db, true, nil
}

// recreate deletes the database file and its sidecar files, then connects again.
func (s *Store) recreate(ctx context.Context) (*sqlx.DB, error) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(s.cfg.Path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sqlite: removing %s: %w", s.cfg.Path+suffix, err)
		}
	}
	return s.connect(ctx)
}

// connect opens the database, applies PRAGMAs and runs migrations.
func (s *Store) connect(ctx context.Context) (*sqlx.DB, error) {
	dsn := ":memory:"
	if !s.cfg.InMemory {
		if s.cfg.Path == "" {
			return nil, errors.New("sqlite: no database path configured")
		}
		if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
		dsn = s.cfg.Path
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// A single connection serializes access and keeps an in-memory database
	// alive for the lifetime of the pool.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if !s.cfg.InMemory {
		pragmas = append([]string{"PRAGMA journal_mode=WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if err := migrateSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return sqlx.NewDb(conn, "sqlite"), nil
}

// withTx runs fn inside a transaction, rolling back unless fn and Commit succeed.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
