package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/permission-journal/internal/backup"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of the whole journal",
		Long: `Write every permission, category and tag as a version 1.0 JSON backup.

Examples:
  journal export > backup.json
  journal export -o backup.json
`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := backup.Export(cmd.Context(), a.journal, time.Now())
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		out = f
	}

	if err := backup.Write(out, doc); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d permissions, %d categories, %d tags to %s\n",
			len(doc.Permissions), len(doc.Categories), len(doc.Tags), output)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup into the journal",
		Long: `Restore a version 1.0 JSON backup. Records keep their ids and timestamps;
records with an id already in the journal are overwritten, everything else is
left alone. A document with any invalid record imports nothing.

Examples:
  journal import backup.json
`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	doc, err := backup.Read(f)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := backup.Restore(cmd.Context(), a.journal, doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d permissions, %d categories, %d tags\n",
		len(doc.Permissions), len(doc.Categories), len(doc.Tags))
	return nil
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every permission, category and tag",
		Long: `Delete every record in the journal. This cannot be undone; export first
if you may want the data back.

Examples:
  journal export -o before-reset.json && journal reset --yes
`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}
	cmd.Flags().Bool("yes", false, "confirm deleting everything")
	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to reset without --yes")
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.journal.ResetAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "journal reset")
	return nil
}
