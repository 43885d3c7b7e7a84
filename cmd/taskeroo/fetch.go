package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/gmail"
	"github.com/taskeroo/taskeroo/internal/normalize"
	msync "github.com/taskeroo/taskeroo/internal/sync"
	"github.com/taskeroo/taskeroo/internal/types"
)

var (
	fetchDate      string
	fetchMax       int
	categorizeDate string
)

type fetchOutput struct {
	Summary *types.FetchSummary `json:"summary"`
	Emails  []*types.Email      `json:"emails"`
	Total   int                 `json:"total_in_db"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch, categorize and store Gmail messages for a day",
	Long: `Fetch messages from the inbox and trash for one day, categorize each one
and upsert it into the local database. Manual overrides already in the
database are kept.

Examples:
  taskeroo fetch
  taskeroo fetch --date 2024-03-01 -n 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date := fetchDate
		if date == "" {
			date = time.Now().Format(msync.DateLayout)
		}
		if !quietFlag && !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "Fetching emails for %s...\n", date)
		}

		out := cmd.OutOrStdout()
		emails, summary, err := runFetch(cmd, date, func(e *types.Email, created, stored bool) {
			if quietFlag || jsonOutput {
				return
			}
			if !stored {
				display.ErrorMsg(out, "%s  %s", e.ID, display.Truncate(e.Subject, 60))
				return
			}
			display.EmailRow(out, e)
		})
		if err != nil && len(emails) == 0 {
			return err
		}

		total, cerr := store.EmailCount(cmd.Context())
		if cerr != nil {
			return cerr
		}

		if jsonOutput {
			if jerr := writeJSON(cmd, fetchOutput{Summary: summary, Emails: emails, Total: total}); jerr != nil {
				return jerr
			}
			return err
		}
		if !quietFlag {
			fmt.Fprintln(out)
			display.SuccessMsg(out, "Done! %d new, %d updated, %d failed. Total in DB: %d",
				summary.New, summary.Updated, summary.Failed, total)
		}
		return err
	},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Fetch messages and print the category chosen for each",
	Long: `Fetch and store messages like 'fetch', then list every message with its
labels and category. Without --date no date filter is applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		emails, summary, err := runFetch(cmd, categorizeDate, nil)
		if err != nil && len(emails) == 0 {
			return err
		}

		if jsonOutput {
			if jerr := writeJSON(cmd, fetchOutput{Summary: summary, Emails: emails}); jerr != nil {
				return jerr
			}
			return err
		}

		printCategorized(cmd.OutOrStdout(), emails)
		return err
	},
}

var categorizeAllCmd = &cobra.Command{
	Use:   "categorize-all",
	Short: "Re-score every stored message with the current keyword table",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := &msync.Recategorizer{Store: store, Keywords: loadKeywords(), Log: logger}
		res, err := r.RecategorizeAll(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd, res)
		}
		display.SuccessMsg(cmd.OutOrStdout(), "Re-categorized %d emails: %d changed, %d failed", res.Total, res.Changed, res.Failed)
		return nil
	},
}

func runFetch(cmd *cobra.Command, date string, onStored func(*types.Email, bool, bool)) ([]*types.Email, *types.FetchSummary, error) {
	ctx := cmd.Context()
	mb, err := openMailbox(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	f := &msync.Fetcher{
		Mailbox: mb,
		Store:   store,
		Normalizer: normalize.New(normalize.Options{
			MaxBodyLength:       cfg.BodyTruncateLength,
			TruncationIndicator: cfg.TruncationIndicator,
		}, logger),
		Keywords: loadKeywords(),
		Log:      logger,
		OnStored: onStored,
	}

	limit := int64(cfg.MaxFetchEmails)
	if fetchMax > 0 {
		limit = int64(fetchMax)
	}
	return f.FetchAndStore(ctx, date, limit)
}

func openMailbox(ctx context.Context, cmd *cobra.Command) (msync.Mailbox, error) {
	p, err := newProvider(cmd)
	if err != nil {
		return nil, err
	}
	cred, err := p.Authenticate(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		// No client secret on disk: the fetcher logs it and returns nothing.
		logger.Warn().Err(err).Str("path", cfg.CredentialsPath).Msg("no credentials configured")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	client, err := gmail.NewFromHTTPClient(ctx, cred.HTTPClient(ctx))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func printCategorized(w io.Writer, emails []*types.Email) {
	if len(emails) == 0 {
		display.SubHeader(w, "No emails found.")
		return
	}
	for _, e := range emails {
		fmt.Fprintf(w, "%s %s  %s %s\n",
			display.ConfidenceDot(e.ConfidenceScore),
			display.CategoryBadge(e),
			display.Truncate(e.Subject, 60),
			display.Dim.Render("["+strings.Join(e.LabelIDs, " ")+"]"),
		)
		if len(e.SecondaryCategories) > 0 {
			fmt.Fprintf(w, "    %s %s\n", display.Muted.Render("also:"), strings.Join(e.SecondaryCategories, ", "))
		}
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "Day to fetch (YYYY-MM-DD, default: today)")
	fetchCmd.Flags().IntVarP(&fetchMax, "max", "n", 0, "Maximum messages per listing (default: max_fetch_emails)")
	categorizeCmd.Flags().StringVar(&categorizeDate, "date", "", "Day to fetch and categorize (YYYY-MM-DD)")
	rootCmd.AddCommand(fetchCmd, categorizeCmd, categorizeAllCmd)
}
