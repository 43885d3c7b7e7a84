package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/db"
	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/types"
)

var (
	deleteCategory string
	deleteDryRun   bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete unimportant emails from the local database",
	Long: `Delete every stored email whose effective category (the manual override
when present) matches --category. Remote mail is not touched.

Examples:
  taskeroo delete --dry-run
  taskeroo delete --category Social`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deleteCategory = strings.TrimSpace(deleteCategory)
		if deleteCategory == "" {
			return errors.New("--category must not be empty")
		}
		matches, err := store.ListEmails(ctx, db.ListFilter{Category: deleteCategory})
		if err != nil {
			return err
		}

		if deleteDryRun {
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"category": deleteCategory, "would_delete": len(matches), "emails": matches})
			}
			out := cmd.OutOrStdout()
			display.Header(out, fmt.Sprintf("Would delete %d %s emails", len(matches), deleteCategory))
			for _, e := range matches {
				display.EmailRow(out, e)
			}
			return nil
		}

		n, err := store.DeleteByCategory(ctx, deleteCategory)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]any{"category": deleteCategory, "deleted": n})
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Deleted %d %s emails", n, deleteCategory)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&deleteCategory, "category", types.CategoryPromotions, "Effective category to delete")
	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "List matching emails without deleting")
	rootCmd.AddCommand(deleteCmd)
}
