package db

import (
	"context"
	"fmt"

	"github.com/taskeroo/taskeroo/internal/types"
)

const (
	summaryTopCategories = 5
	summaryRecentManual  = 5
)

// Summary computes the review statistics: totals, share reviewed, the most
// common effective categories and the latest manual overrides.
func (d *DB) Summary(ctx context.Context) (*types.Summary, error) {
	s := &types.Summary{}

	var counts struct {
		Total      int `db:"total"`
		Unreviewed int `db:"unreviewed"`
		Manual     int `db:"manual"`
	}
	err := d.conn.GetContext(ctx, &counts, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN COALESCE(reviewed, 0) = 0 THEN 1 ELSE 0 END), 0) AS unreviewed,
			COALESCE(SUM(CASE WHEN is_manual = 1 THEN 1 ELSE 0 END), 0) AS manual
		FROM emails`)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}
	s.Total = counts.Total
	s.Unreviewed = counts.Unreviewed
	s.Manual = counts.Manual
	if s.Total > 0 {
		s.ReviewedPercent = float64(s.Total-s.Unreviewed) / float64(s.Total) * 100
	}

	cats, err := d.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if len(cats) > summaryTopCategories {
		cats = cats[:summaryTopCategories]
	}
	s.TopCategories = cats

	recent, err := d.selectEmails(ctx, "SELECT "+selectColumns+` FROM emails
		WHERE is_manual = 1
		ORDER BY (SELECT MAX(i.timestamp) FROM interactions i WHERE i.email_id = emails.id) DESC,
			received_time DESC, id ASC
		LIMIT ?`, summaryRecentManual)
	if err != nil {
		return nil, err
	}
	s.RecentManual = recent
	return s, nil
}
