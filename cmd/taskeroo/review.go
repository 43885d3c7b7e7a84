package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskeroo/taskeroo/internal/display"
	"github.com/taskeroo/taskeroo/internal/review"
)

var reviewBatch int

const (
	choiceAccept = "__accept"
	choiceSkip   = "__skip"
	choiceRevert = "__revert"
	choiceQuit   = "__quit"
)

type reviewTally struct {
	Accepted   int `json:"accepted"`
	Overridden int `json:"overridden"`
	Reverted   int `json:"reverted"`
	Skipped    int `json:"skipped"`
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively confirm or correct unreviewed categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		svc := reviewService()

		batch, err := svc.Next(ctx, reviewBatch)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			display.SuccessMsg(out, "Nothing to review.")
			return nil
		}

		var tally reviewTally
	loop:
		for i, e := range batch {
			fmt.Fprintln(out)
			display.SubHeader(out, fmt.Sprintf("[%d/%d] %s", i+1, len(batch), e.ID))
			display.EmailDetail(out, e)
			fmt.Fprintln(out)

			choice, err := promptCategory(svc, e.EffectiveCategory(), e.IsManual)
			if errors.Is(err, huh.ErrUserAborted) {
				break
			}
			if err != nil {
				return err
			}

			switch choice {
			case choiceQuit:
				break loop
			case choiceSkip:
				tally.Skipped++
			case choiceAccept:
				if err := svc.Accept(ctx, e.ID); err != nil {
					return err
				}
				tally.Accepted++
			case choiceRevert:
				if err := svc.Revert(ctx, e.ID); err != nil {
					return err
				}
				tally.Reverted++
			default:
				if err := svc.Override(ctx, e.ID, choice); err != nil {
					return err
				}
				tally.Overridden++
			}
		}

		if jsonOutput {
			return writeJSON(cmd, tally)
		}
		fmt.Fprintln(out)
		display.SuccessMsg(out, "%d accepted, %d overridden, %d reverted, %d skipped",
			tally.Accepted, tally.Overridden, tally.Reverted, tally.Skipped)
		return nil
	},
}

func promptCategory(svc *review.Service, current string, manual bool) (string, error) {
	opts := []huh.Option[string]{
		huh.NewOption(fmt.Sprintf("Accept %q", current), choiceAccept),
	}
	for _, c := range svc.Categories() {
		if c == current {
			continue
		}
		opts = append(opts, huh.NewOption(c, c))
	}
	if manual {
		opts = append(opts, huh.NewOption("Revert to computed category", choiceRevert))
	}
	opts = append(opts,
		huh.NewOption("Skip", choiceSkip),
		huh.NewOption("Quit", choiceQuit),
	)

	var choice string
	err := huh.NewSelect[string]().
		Title("Category").
		Options(opts...).
		Value(&choice).
		Run()
	return choice, err
}

func init() {
	reviewCmd.Flags().IntVarP(&reviewBatch, "limit", "n", review.DefaultPageSize, "Emails to review in this session")
	rootCmd.AddCommand(reviewCmd)
}
