// Package main is the entry point for the journal command.
//
// main stays minimal: it owns the process signals and the exit code, and
// everything else lives in internal/cli.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/permission-journal/internal/cli"
)

func main() {
	// Ctrl+C or SIGTERM cancels ctx; `journal serve` then shuts down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
