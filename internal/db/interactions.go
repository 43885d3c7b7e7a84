package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskeroo/taskeroo/internal/types"
)

// LogInteraction appends one entry to the interaction log.
func (d *DB) LogInteraction(ctx context.Context, emailID, interaction string) error {
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO interactions (email_id, interaction, timestamp) VALUES (?, ?, ?)",
		emailID, interaction, Now())
	if err != nil {
		return fmt.Errorf("log interaction for %s: %w", emailID, err)
	}
	return nil
}

// Interactions returns logged interactions, newest first. An empty emailID
// returns entries for every email; limit <= 0 means no limit.
func (d *DB) Interactions(ctx context.Context, emailID string, limit int) ([]types.Interaction, error) {
	query := "SELECT email_id, interaction, timestamp FROM interactions"

	var conditions []string
	var args []any
	if emailID != "" {
		conditions = append(conditions, "email_id = ?")
		args = append(args, emailID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var out []types.Interaction
	if err := d.conn.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	return out, nil
}
