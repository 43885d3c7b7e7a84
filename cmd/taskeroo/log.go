package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/types"
)

var (
	logEmail string
	logLimit int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the reviewer interaction log",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := store.Interactions(cmd.Context(), logEmail, logLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			if entries == nil {
				entries = []types.Interaction{}
			}
			return writeJSON(cmd, entries)
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			display.SubHeader(out, "No interactions logged.")
			return nil
		}
		for _, it := range entries {
			fmt.Fprintf(out, "  %s  %s  %s\n",
				display.Dim.Render(fmt.Sprintf("%-9s", display.TimeAgo(it.Timestamp))),
				display.Muted.Render(fmt.Sprintf("%-16s", display.Truncate(it.EmailID, 16))),
				it.Interaction,
			)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().StringVar(&logEmail, "email", "", "Only show entries for this email id")
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 50, "Maximum entries (0 for all)")
	rootCmd.AddCommand(logCmd)
}
