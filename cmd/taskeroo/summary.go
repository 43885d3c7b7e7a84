package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show categorization and review statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := reviewService().Summary(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, s)
		}

		out := cmd.OutOrStdout()
		display.Header(out, "Taskeroo Summary")
		fmt.Fprintln(out)

		fmt.Fprintf(out, "  Emails      %5d\n", s.Total)
		fmt.Fprintf(out, "  Unreviewed  %5d\n", s.Unreviewed)
		fmt.Fprintf(out, "  Manual      %5d\n", s.Manual)
		fmt.Fprintf(out, "  Reviewed    %5.1f%%  %s\n", s.ReviewedPercent, display.Bar(s.Total-s.Unreviewed, s.Total, 20))
		fmt.Fprintln(out)

		if len(s.TopCategories) > 0 {
			fmt.Fprintln(out, "  Top categories")
			for _, c := range s.TopCategories {
				fmt.Fprintf(out, "    %-24s %4d  %s\n", display.Truncate(c.Category, 24), c.Count, display.Bar(c.Count, s.Total, 20))
			}
			fmt.Fprintln(out)
		}

		if len(s.RecentManual) > 0 {
			fmt.Fprintln(out, "  Recent manual categorizations")
			for _, e := range s.RecentManual {
				fmt.Fprintf(out, "    %s  %s\n", display.CategoryBadge(e), display.Truncate(e.Subject, 60))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
