package main

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
)

var feedbackNote string

var feedbackCmd = &cobra.Command{
	Use:   "feedback EMAIL_ID CATEGORY",
	Short: "Correct the category of a stored email",
	Long: `Record a manual category for an email. The override survives later
fetches and re-categorization, and is logged in the interaction log.

Examples:
  taskeroo feedback 18c0ffee Finance
  taskeroo feedback 18c0ffee Updates --note "weekly digest, not promo"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, category := args[0], args[1]
		svc := reviewService()

		if !slices.Contains(svc.Categories(), category) {
			logger.Warn().Str("category", category).Msg("category is not in the keyword table or built-ins")
		}
		if err := svc.Feedback(cmd.Context(), id, category, feedbackNote); err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd, map[string]string{"id": id, "category": category})
		}
		display.SuccessMsg(cmd.OutOrStdout(), "%s categorized as %s", id, category)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackNote, "note", "", "Free-text feedback stored with the email")
	rootCmd.AddCommand(feedbackCmd)
}
