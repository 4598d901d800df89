// Package cli implements the journal command line.
//
//	journal serve                 run the HTTP API
//	journal export [-o file]      write a backup document
//	journal import <file>         restore a backup document
//	journal stats [--json]        print journal insights
//	journal token [--subject s]   mint an API bearer token
//	journal reset --yes           delete every record
//
// Every command reads the same configuration (see internal/config); the
// persistent --config flag names an explicit file.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/permission-journal/internal/config"
	"github.com/sakif/permission-journal/internal/notify"
	"github.com/sakif/permission-journal/internal/repository/sqlite"
	"github.com/sakif/permission-journal/internal/service"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "Money Permission Journal",
		Long: `journal keeps a private record of the permissions you give yourself
around money: what you allowed, what you expected, and what actually happened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default: ./journal.yaml or ~/.journal/journal.yaml)")

	root.AddCommand(
		newServeCmd(),
		newExportCmd(),
		newImportCmd(),
		newStatsCmd(),
		newTokenCmd(),
		newResetCmd(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// app holds what every command that touches the journal needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Store
	events  *notify.Broadcaster
	journal *service.Journal
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to w at the configured level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Log.Level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openApp loads configuration and opens the store. With requireReady set a
// store that fails to open is an error; otherwise the app runs degraded.
func openApp(cmd *cobra.Command, requireReady bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store := sqlite.New(sqlite.Config{
		Path:        cfg.Store.Path,
		InMemory:    cfg.Store.InMemory,
		OpenTimeout: cfg.Store.OpenTimeout,
	}, logger)
	if err := store.Init(cmd.Context()); err != nil && requireReady {
		store.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	events := notify.New()
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		events:  events,
		journal: service.NewJournal(store, events, logger, service.WithLocation(loc)),
	}, nil
}

func (a *app) Close() {
	a.events.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close journal store", slog.String("error", err.Error()))
	}
}
