package sync

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/taskeroo/taskeroo/internal/categorize"
	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/types"
)

// Rescorer reads stored rows and rewrites their derived category fields.
type Rescorer interface {
	AllEmails(ctx context.Context) ([]*types.Email, error)
	UpdateDerived(ctx context.Context, e *types.Email) error
}

// RecategorizeResult counts the outcome of a full re-score.
type RecategorizeResult struct {
	Total   int `json:"total"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// Recategorizer re-scores stored messages with the current keyword table.
type Recategorizer struct {
	Store    Rescorer
	Keywords keywords.Table
	Log      zerolog.Logger
}

// RecategorizeAll re-scores every stored row. Override fields are never
// touched; a failed update is logged and counted.
func (r *Recategorizer) RecategorizeAll(ctx context.Context) (*RecategorizeResult, error) {
	emails, err := r.Store.AllEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored emails: %w", err)
	}

	res := &RecategorizeResult{Total: len(emails)}
	for _, e := range emails {
		before := e.Category
		beforeSecondary := slices.Clone(e.SecondaryCategories)

		categorize.Categorize(&e.NormalizedMessage, r.Keywords).Apply(e)

		if err := r.Store.UpdateDerived(ctx, e); err != nil {
			res.Failed++
			r.Log.Error().Err(err).Str("id", e.ID).Msg("failed to update category")
			continue
		}
		if e.Category != before || !slices.Equal(e.SecondaryCategories, beforeSecondary) {
			res.Changed++
			r.Log.Debug().Str("id", e.ID).Str("from", before).Str("to", e.Category).Msg("category changed")
		}
	}
	return res, nil
}
