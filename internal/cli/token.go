package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/permission-journal/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Long: `Print a signed bearer token for clients of "journal serve". Requires
server.api_secret (JOURNAL_SERVER_API_SECRET).

Examples:
  journal token --subject phone
  journal token --subject laptop --ttl 24h
`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}
	cmd.Flags().String("subject", "cli", "client name recorded in the token")
	cmd.Flags().Duration("ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.APISecret == "" {
		return errors.New("server.api_secret is not set; the API runs without authentication")
	}

	tokens, err := auth.NewTokenService(cfg.Server.APISecret)
	if err != nil {
		return err
	}

	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	token, err := tokens.Generate(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
