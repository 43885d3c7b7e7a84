package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/db"
	"github.com/taskeroo/taskeroo/internal/display"
)

var (
	dbReadLimit    int
	dbReadCategory string

	dbUpdateCategory string
	dbUpdateRevert   bool
	dbUpdateTags     string
	dbUpdateReviewed bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database operations",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the database and schema if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := store.Tables(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]any{"path": store.Path(), "tables": tables})
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Database ready at %s (tables: %s)", store.Path(), strings.Join(tables, ", "))
		}
		return nil
	},
}

var dbReadCmd = &cobra.Command{
	Use:   "read [EMAIL_ID]",
	Short: "Show one stored email, or list stored emails",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			e, err := store.GetEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, e)
			}
			display.EmailDetail(out, e)
			return nil
		}

		emails, err := store.ListEmails(ctx, db.ListFilter{Category: dbReadCategory, Limit: dbReadLimit})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, emails)
		}
		if len(emails) == 0 {
			display.SubHeader(out, "No emails stored.")
			return nil
		}
		for _, e := range emails {
			display.EmailRow(out, e)
		}
		return nil
	},
}

var dbUpdateCmd = &cobra.Command{
	Use:   "update EMAIL_ID",
	Short: "Change the reviewer fields of a stored email",
	Long: `Change the human-owned fields of one email. Derived category fields are
only written by fetch and categorize-all.

Examples:
  taskeroo db update 18c0ffee --category Finance
  taskeroo db update 18c0ffee --revert
  taskeroo db update 18c0ffee --tags work,urgent --reviewed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]
		svc := reviewService()

		if dbUpdateCategory != "" && dbUpdateRevert {
			return fmt.Errorf("--category and --revert are mutually exclusive")
		}

		var changed []string
		if dbUpdateCategory != "" {
			if err := svc.Override(ctx, id, dbUpdateCategory); err != nil {
				return err
			}
			changed = append(changed, "category")
		}
		if dbUpdateRevert {
			if err := svc.Revert(ctx, id); err != nil {
				return err
			}
			changed = append(changed, "category")
		}
		if cmd.Flags().Changed("tags") {
			if err := svc.Tag(ctx, id, strings.Split(dbUpdateTags, ",")); err != nil {
				return err
			}
			changed = append(changed, "tags")
		}
		if dbUpdateReviewed {
			if err := svc.Accept(ctx, id); err != nil {
				return err
			}
			changed = append(changed, "reviewed")
		}
		if len(changed) == 0 {
			return fmt.Errorf("nothing to update: pass --category, --revert, --tags or --reviewed")
		}

		if jsonOutput {
			e, err := svc.Get(ctx, id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, e)
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Updated %s (%s)", id, strings.Join(changed, ", "))
		return nil
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete EMAIL_ID",
	Short: "Delete one stored email and its interaction history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.DeleteEmail(cmd.Context(), args[0]); err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, map[string]string{"deleted": args[0]})
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Deleted %s", args[0])
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Add any missing columns to an older database",
	RunE: func(cmd *cobra.Command, args []string) error {
		added := store.AddedColumns()
		if jsonOutput {
			if added == nil {
				added = []string{}
			}
			return writeJSON(cmd, map[string]any{"added_columns": added})
		}
		if len(added) == 0 {
			display.SubHeader(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Added columns: %s", strings.Join(added, ", "))
		return nil
	},
}

func init() {
	dbReadCmd.Flags().IntVarP(&dbReadLimit, "limit", "n", 20, "Maximum emails to list (0 for all)")
	dbReadCmd.Flags().StringVar(&dbReadCategory, "category", "", "Only list this effective category")

	dbUpdateCmd.Flags().StringVar(&dbUpdateCategory, "category", "", "Set a manual category")
	dbUpdateCmd.Flags().BoolVar(&dbUpdateRevert, "revert", false, "Drop the manual category")
	dbUpdateCmd.Flags().StringVar(&dbUpdateTags, "tags", "", "Comma-separated reviewer tags (empty clears)")
	dbUpdateCmd.Flags().BoolVar(&dbUpdateReviewed, "reviewed", false, "Mark as reviewed")

	dbCmd.AddCommand(dbCreateCmd, dbReadCmd, dbUpdateCmd, dbDeleteCmd, dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
