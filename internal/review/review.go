// Package review is the human correction surface: it lists messages needing
// review, records category overrides and feedback, and logs every action.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/types"
)

// DefaultPageSize is the batch size for review listings.
const DefaultPageSize = 10

// Store is the slice of the local store the review surface needs.
type Store interface {
	GetEmail(ctx context.Context, id string) (*types.Email, error)
	UnreviewedEmails(ctx context.Context, limit int) ([]*types.Email, error)
	ReviewedEmails(ctx context.Context, limit, offset int) ([]*types.Email, error)
	SetManualCategory(ctx context.Context, id, category string) error
	ClearManualCategory(ctx context.Context, id string) error
	MarkReviewed(ctx context.Context, ids ...string) (int64, error)
	MarkAllReviewed(ctx context.Context) ([]string, error)
	SetFeedback(ctx context.Context, id, feedback string) error
	SetUserTags(ctx context.Context, id, tags string) error
	LogInteraction(ctx context.Context, emailID, interaction string) error
	Summary(ctx context.Context) (*types.Summary, error)
}

// Service applies reviewer actions. Overrides are the only writes to the
// human-owned columns.
type Service struct {
	store    Store
	keywords keywords.Table
	log      zerolog.Logger
}

// New returns a review service.
func New(store Store, table keywords.Table, log zerolog.Logger) *Service {
	return &Service{store: store, keywords: table, log: log}
}

// Categories lists the categories a reviewer can pick: the built-ins then
// the keyword table categories.
func (s *Service) Categories() []string {
	out := append([]string(nil), types.BuiltinCategories...)
	for _, c := range s.keywords.Categories() {
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Next returns the next batch of unreviewed messages.
func (s *Service) Next(ctx context.Context, n int) ([]*types.Email, error) {
	if n <= 0 {
		n = DefaultPageSize
	}
	return s.store.UnreviewedEmails(ctx, n)
}

// Reviewed returns page (0-based) of reviewed messages.
func (s *Service) Reviewed(ctx context.Context, page, pageSize int) ([]*types.Email, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	return s.store.ReviewedEmails(ctx, pageSize, page*pageSize)
}

// Override sets a manual category on id.
func (s *Service) Override(ctx context.Context, id, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return errors.New("category must not be empty")
	}
	if err := s.store.SetManualCategory(ctx, id, category); err != nil {
		return err
	}
	s.record(ctx, id, types.InteractionOverride, category)
	return nil
}

// Revert drops the manual category on id.
func (s *Service) Revert(ctx context.Context, id string) error {
	if err := s.store.ClearManualCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, id, types.InteractionRevert, "")
	return nil
}

// Accept marks id reviewed without changing its category.
func (s *Service) Accept(ctx context.Context, id string) error {
	n, err := s.store.MarkReviewed(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("email %s not found", id)
	}
	s.record(ctx, id, types.InteractionReviewed, "")
	return nil
}

// MarkReviewed marks each id reviewed and returns how many changed.
func (s *Service) MarkReviewed(ctx context.Context, ids ...string) (int64, error) {
	n, err := s.store.MarkReviewed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.record(ctx, id, types.InteractionReviewed, "")
	}
	return n, nil
}

// MarkAll marks every pending message reviewed and logs each one.
func (s *Service) MarkAll(ctx context.Context) (int64, error) {
	ids, err := s.store.MarkAllReviewed(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.record(ctx, id, types.InteractionReviewed, "")
	}
	return int64(len(ids)), nil
}

// Feedback overrides the category of id and stores an optional note.
func (s *Service) Feedback(ctx context.Context, id, category, note string) error {
	if err := s.Override(ctx, id, category); err != nil {
		return err
	}
	if note = strings.TrimSpace(note); note != "" {
		if err := s.store.SetFeedback(ctx, id, note); err != nil {
			return err
		}
	}
	s.record(ctx, id, types.InteractionFeedback, category)
	return nil
}

// Tag replaces the reviewer tags of id.
func (s *Service) Tag(ctx context.Context, id string, tags []string) error {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	joined := strings.Join(clean, ",")
	if err := s.store.SetUserTags(ctx, id, joined); err != nil {
		return err
	}
	s.record(ctx, id, types.InteractionTagged, joined)
	return nil
}

// Summary returns the review statistics.
func (s *Service) Summary(ctx context.Context) (*types.Summary, error) {
	return s.store.Summary(ctx)
}

// Get returns one message.
func (s *Service) Get(ctx context.Context, id string) (*types.Email, error) {
	return s.store.GetEmail(ctx, id)
}

// record appends to the interaction log. A logging failure does not undo the
// action it describes.
func (s *Service) record(ctx context.Context, id, kind, detail string) {
	entry := kind
	if detail != "" {
		entry = kind + ":" + detail
	}
	if err := s.store.LogInteraction(ctx, id, entry); err != nil {
		s.log.Warn().Err(err).Str("id", id).Str("interaction", entry).Msg("could not log interaction")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
