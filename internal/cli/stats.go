package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/permission-journal/internal/service"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print journal insights",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	cmd.Flags().Bool("json", false, "output in JSON format")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := a.journal.Insights(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	}
	return printInsights(cmd.OutOrStdout(), in)
}

func printInsights(out io.Writer, in *service.Insights) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Permissions:\t%d\n", in.TotalPermissions)
	fmt.Fprintf(w, "With outcome:\t%d\n", in.WithOutcome)
	fmt.Fprintf(w, "High impact:\t%d\n", in.HighImpact)
	fmt.Fprintf(w, "Current streak:\t%d days\n", in.Streak)
	fmt.Fprintf(w, "Most common tag:\t%s\n", orNone(in.MostCommonTag))
	if c := in.MostLiberatingCategory; c != nil {
		fmt.Fprintf(w, "Most liberating:\t%s (%.1f)\n", c.Category, c.Average)
	} else {
		fmt.Fprintf(w, "Most liberating:\t-\n")
	}
	if b := in.BiggestBoundary; b != nil {
		fmt.Fprintf(w, "Biggest boundary:\t%s (%d this year)\n", b.Category, b.Count)
	} else {
		fmt.Fprintf(w, "Biggest boundary:\t-\n")
	}

	if len(in.CategoryAverages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CATEGORY\tENTRIES\tRATED\tAVERAGE")
		for _, c := range in.CategoryAverages {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", c.Category, c.Count, c.Rated, c.Average)
		}
	}
	return w.Flush()
}

func orNone(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
