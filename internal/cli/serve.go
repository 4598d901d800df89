package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/permission-journal/internal/auth"
	"github.com/sakif/permission-journal/internal/remoteconfig"
	"github.com/sakif/permission-journal/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the journal HTTP API",
		Long: `Run the journal HTTP API until interrupted.

A store that cannot be opened does not stop the server: reads return an
empty journal, writes answer 503 and /api/health reports the problem.

Examples:
  journal serve
  JOURNAL_SERVER_PORT=9090 journal serve
  journal serve --port 9090
`,
		RunE: runServe,
	}
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		a.cfg.Server.Port = port
	}

	var tokens *auth.TokenService
	if a.cfg.Server.APISecret != "" {
		tokens, err = auth.NewTokenService(a.cfg.Server.APISecret)
		if err != nil {
			return err
		}
	} else {
		a.logger.Warn("server.api_secret not set: the API is open to anyone who can reach it")
	}

	remote := remoteconfig.New(a.cfg.Remote.URL, a.cfg.Remote.Timeout, a.logger)

	srv, err := server.New(server.Config{Port: a.cfg.Server.Port}, server.Deps{
		Journal: a.journal,
		Store:   a.store,
		Events:  a.events,
		Remote:  remote,
		Tokens:  tokens,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// The root context is cancelled on SIGINT/SIGTERM by main.
	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return srv.Run(ctx)
	})

	// One warm-up fetch so a misconfigured endpoint shows up in the log at
	// startup rather than on first use.
	if remote.Enabled() {
		g.Go(func() error {
			res := remote.Retrieve(ctx)
			a.logger.Info("remote config checked", slog.String("state", string(res.State)))
			return nil
		})
	}

	// Ending the broadcaster closes open event streams before Shutdown
	// waits on them.
	g.Go(func() error {
		<-ctx.Done()
		a.events.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
