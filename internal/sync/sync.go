// Package sync runs the fetch-and-persist pipeline: list messages from the
// remote mailbox, normalize and categorize each one, and upsert it into the
// local store.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskeroo/taskeroo/internal/categorize"
	"github.com/taskeroo/taskeroo/internal/keywords"
	"github.com/taskeroo/taskeroo/internal/normalize"
	"github.com/taskeroo/taskeroo/internal/types"
)

// DateLayout is the accepted --date format.
const DateLayout = "2006-01-02"

// Mailbox is the remote mailbox the pipeline reads from.
type Mailbox interface {
	ListMessages(ctx context.Context, query string, labelIDs []string, max int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*normalize.RawMessage, error)
}

// Store persists processed messages.
type Store interface {
	UpsertEmail(ctx context.Context, e *types.Email) (created bool, err error)
}

// Fetcher wires the pipeline stages together. A nil Mailbox means no
// credentials are available.
type Fetcher struct {
	Mailbox    Mailbox
	Store      Store
	Normalizer *normalize.Normalizer
	Keywords   keywords.Table
	Log        zerolog.Logger

	// OnStored, when set, is called after each message is processed.
	// stored is false when the upsert failed.
	OnStored func(e *types.Email, created, stored bool)
}

// BuildQuery turns an optional YYYY-MM-DD date into a Gmail search query
// covering that whole day. An empty date gives an empty (unfiltered) query.
func BuildQuery(date string) (string, error) {
	if date == "" {
		return "", nil
	}
	start, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	end := start.AddDate(0, 0, 1)
	return fmt.Sprintf("after:%s before:%s", start.Format("2006/01/02"), end.Format("2006/01/02")), nil
}

// FetchAndStore lists up to max messages for date from the inbox query and
// again from trash, then processes each distinct id in first-seen order.
//
// A failed upsert is logged and counted; the batch continues. A failed list
// or get call stops the run and returns what was processed so far together
// with the error.
func (f *Fetcher) FetchAndStore(ctx context.Context, date string, max int64) ([]*types.Email, *types.FetchSummary, error) {
	summary := &types.FetchSummary{}

	query, err := BuildQuery(date)
	if err != nil {
		return nil, summary, err
	}
	summary.Query = query

	if f.Mailbox == nil {
		f.Log.Warn().Msg("no valid credentials provided, nothing fetched")
		return nil, summary, nil
	}

	inbox, err := f.Mailbox.ListMessages(ctx, query, nil, max)
	if err != nil {
		return nil, summary, fmt.Errorf("list inbox: %w", err)
	}
	f.Log.Info().Int("count", len(inbox)).Str("query", query).Msg("listed inbox messages")

	trash, err := f.Mailbox.ListMessages(ctx, query, []string{types.LabelTrash}, max)
	if err != nil {
		return nil, summary, fmt.Errorf("list trash: %w", err)
	}
	f.Log.Info().Int("count", len(trash)).Str("query", query).Msg("listed trash messages")

	summary.Listed = len(inbox) + len(trash)
	ids := dedupe(inbox, trash)
	summary.Duplicates = summary.Listed - len(ids)

	if len(ids) == 0 {
		f.Log.Info().Msg("no messages found")
		return nil, summary, nil
	}

	emails := make([]*types.Email, 0, len(ids))
	for _, id := range ids {
		raw, err := f.Mailbox.GetMessage(ctx, id)
		if err != nil {
			return emails, summary, fmt.Errorf("fetch message %s: %w", id, err)
		}

		e := f.process(raw)
		emails = append(emails, e)
		summary.Processed++

		created, err := f.Store.UpsertEmail(ctx, e)
		if err != nil {
			summary.Failed++
			f.Log.Error().Err(err).Str("id", e.ID).Msg("failed to store email")
			f.notify(e, false, false)
			continue
		}
		if created {
			summary.New++
		} else {
			summary.Updated++
		}
		f.Log.Debug().Str("id", e.ID).Str("category", e.Category).Bool("new", created).Msg("stored email")
		f.notify(e, created, true)
	}

	return emails, summary, nil
}

func (f *Fetcher) process(raw *normalize.RawMessage) *types.Email {
	msg := f.Normalizer.Normalize(raw)
	e := &types.Email{NormalizedMessage: msg}
	categorize.Categorize(&e.NormalizedMessage, f.Keywords).Apply(e)
	return e
}

func (f *Fetcher) notify(e *types.Email, created, stored bool) {
	if f.OnStored != nil {
		f.OnStored(e, created, stored)
	}
}

// dedupe concatenates the id lists, keeping the first occurrence of each id.
func dedupe(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
