package main

import (
	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored email to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			n   int
			err error
		)
		if exportOutput == "-" {
			n, err = export.CSV(cmd.Context(), store.Underlying(), cmd.OutOrStdout())
			return err
		}
		n, err = export.ToFile(cmd.Context(), store.Underlying(), exportOutput)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]any{"path": exportOutput, "rows": n})
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Exported %d emails to %s", n, exportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "emails.csv", "Output file ('-' for stdout)")
	rootCmd.AddCommand(exportCmd)
}
