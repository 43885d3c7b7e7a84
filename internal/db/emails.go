package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/taskeroo/taskeroo/internal/types"
)

// emailRow is the storage shape of types.Email.
type emailRow struct {
	ID                      string          `db:"id"`
	Subject                 sql.NullString  `db:"subject"`
	Snippet                 sql.NullString  `db:"snippet"`
	Date                    sql.NullString  `db:"date"`
	LabelIDs                sql.NullString  `db:"label_ids"`
	SenderEmail             sql.NullString  `db:"sender_email"`
	EmailBody               sql.NullString  `db:"email_body"`
	AttachmentInfo          sql.NullString  `db:"attachment_info"`
	ReceivedTime            sql.NullString  `db:"received_time"`
	Category                sql.NullString  `db:"category"`
	UserTags                sql.NullString  `db:"user_tags"`
	ManuallyUpdatedCategory sql.NullString  `db:"manually_updated_category"`
	IsManual                bool            `db:"is_manual"`
	Reviewed                bool            `db:"reviewed"`
	MLCategory              sql.NullString  `db:"ml_category"`
	ConfidenceScore         sql.NullFloat64 `db:"confidence_score"`
	IsRead                  bool            `db:"is_read"`
	IsImportant             bool            `db:"is_important"`
	UserFeedback            sql.NullString  `db:"user_feedback"`
	SecondaryCategories     sql.NullString  `db:"secondary_categories"`
	AllCategories           sql.NullString  `db:"all_categories"`
	ThreadID                sql.NullString  `db:"thread_id"`
}

func toRow(e *types.Email) emailRow {
	secondary := "[]"
	if len(e.SecondaryCategories) > 0 {
		if data, err := json.Marshal(e.SecondaryCategories); err == nil {
			secondary = string(data)
		}
	}
	return emailRow{
		ID:                      e.ID,
		Subject:                 nullStr(e.Subject),
		Snippet:                 nullStr(e.Snippet),
		Date:                    nullStr(e.Date),
		LabelIDs:                nullStr(strings.Join(e.LabelIDs, ",")),
		SenderEmail:             nullStr(e.SenderEmail),
		EmailBody:               nullStr(e.EmailBody),
		AttachmentInfo:          nullStr(e.AttachmentInfo),
		ReceivedTime:            nullStr(e.ReceivedTime),
		Category:                nullStr(e.Category),
		UserTags:                nullStr(e.UserTags),
		ManuallyUpdatedCategory: nullStr(e.ManuallyUpdatedCategory),
		IsManual:                e.IsManual,
		Reviewed:                e.Reviewed,
		MLCategory:              nullStr(e.MLCategory),
		ConfidenceScore:         sql.NullFloat64{Float64: e.ConfidenceScore, Valid: true},
		IsRead:                  e.IsRead,
		IsImportant:             e.IsImportant,
		UserFeedback:            nullStr(e.UserFeedback),
		SecondaryCategories:     nullStr(secondary),
		AllCategories:           nullStr(e.AllCategories),
		ThreadID:                nullStr(e.ThreadID),
	}
}

func (r *emailRow) email() *types.Email {
	e := &types.Email{
		NormalizedMessage: types.NormalizedMessage{
			ID:             r.ID,
			ThreadID:       r.ThreadID.String,
			Subject:        r.Subject.String,
			SenderEmail:    r.SenderEmail.String,
			Snippet:        r.Snippet.String,
			EmailBody:      r.EmailBody.String,
			LabelIDs:       splitLabels(r.LabelIDs.String),
			Date:           r.Date.String,
			ReceivedTime:   r.ReceivedTime.String,
			AttachmentInfo: r.AttachmentInfo.String,
			IsRead:         r.IsRead,
			IsImportant:    r.IsImportant,
		},
		Category:                r.Category.String,
		SecondaryCategories:     parseSecondary(r.SecondaryCategories.String),
		ConfidenceScore:         r.ConfidenceScore.Float64,
		AllCategories:           r.AllCategories.String,
		MLCategory:              r.MLCategory.String,
		ManuallyUpdatedCategory: r.ManuallyUpdatedCategory.String,
		IsManual:                r.IsManual,
		Reviewed:                r.Reviewed,
		UserTags:                r.UserTags.String,
		UserFeedback:            r.UserFeedback.String,
	}
	return e
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseSecondary reads the JSON list form and falls back to comma-separated
// values written by hand.
func parseSecondary(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		if len(out) == 0 {
			return nil
		}
		return out
	}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// The conflict clause refreshes derived fields only. Override fields
// (manually_updated_category, is_manual, reviewed, user_tags, user_feedback)
// keep whatever a reviewer wrote.
const upsertSQL = `
	INSERT INTO emails (
		id, subject, snippet, date, label_ids, sender_email, email_body,
		attachment_info, received_time, category, ml_category, confidence_score,
		is_read, is_important, secondary_categories, all_categories, thread_id,
		is_manual, reviewed
	) VALUES (
		:id, :subject, :snippet, :date, :label_ids, :sender_email, :email_body,
		:attachment_info, :received_time, :category, :ml_category, :confidence_score,
		:is_read, :is_important, :secondary_categories, :all_categories, :thread_id,
		0, 0
	)
	ON CONFLICT(id) DO UPDATE SET
		subject              = excluded.subject,
		snippet              = excluded.snippet,
		date                 = excluded.date,
		label_ids            = excluded.label_ids,
		sender_email         = excluded.sender_email,
		email_body           = excluded.email_body,
		attachment_info      = excluded.attachment_info,
		received_time        = excluded.received_time,
		category             = excluded.category,
		ml_category          = excluded.ml_category,
		confidence_score     = excluded.confidence_score,
		is_read              = excluded.is_read,
		is_important         = excluded.is_important,
		secondary_categories = excluded.secondary_categories,
		all_categories       = excluded.all_categories,
		thread_id            = excluded.thread_id`

// UpsertEmail inserts e or refreshes the derived fields of an existing row.
// It reports whether a new row was created.
func (d *DB) UpsertEmail(ctx context.Context, e *types.Email) (created bool, err error) {
	if e.ID == "" {
		return false, errors.New("upsert email: empty id")
	}
	exists, err := d.EmailExists(ctx, e.ID)
	if err != nil {
		return false, err
	}
	if _, err := d.conn.NamedExecContext(ctx, upsertSQL, toRow(e)); err != nil {
		return false, fmt.Errorf("upsert email %s: %w", e.ID, err)
	}
	return !exists, nil
}

// UpdateDerived rewrites the engine-owned category fields of an existing row.
func (d *DB) UpdateDerived(ctx context.Context, e *types.Email) error {
	r := toRow(e)
	res, err := d.conn.NamedExecContext(ctx, `
		UPDATE emails SET
			category = :category,
			confidence_score = :confidence_score,
			secondary_categories = :secondary_categories,
			all_categories = :all_categories
		WHERE id = :id`, r)
	if err != nil {
		return fmt.Errorf("update email %s: %w", e.ID, err)
	}
	return expectRow(res, e.ID)
}

// EmailExists checks if an email ID already exists.
func (d *DB) EmailExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := d.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM emails WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("check email %s: %w", id, err)
	}
	return n > 0, nil
}

// GetEmail returns one email by id, or ErrNotFound.
func (d *DB) GetEmail(ctx context.Context, id string) (*types.Email, error) {
	var r emailRow
	err := d.conn.GetContext(ctx, &r, "SELECT "+selectColumns+" FROM emails WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get email %s: %w", id, err)
	}
	return r.email(), nil
}

// ListFilter narrows ListEmails. Zero values mean no filter.
type ListFilter struct {
	Category string // matched against the effective category
	Reviewed *bool
	Limit    int
	Offset   int
}

// ListEmails returns emails matching f, newest first.
func (d *DB) ListEmails(ctx context.Context, f ListFilter) ([]*types.Email, error) {
	query := "SELECT " + selectColumns + " FROM emails"

	var conditions []string
	var args []any
	if f.Category != "" {
		conditions = append(conditions, "("+effectiveCategory+") = ?")
		args = append(args, f.Category)
	}
	if f.Reviewed != nil {
		conditions = append(conditions, "COALESCE(reviewed, 0) = ?")
		args = append(args, boolInt(*f.Reviewed))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_time DESC, id ASC"

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	return d.selectEmails(ctx, query, args...)
}

// AllEmails returns every stored email.
func (d *DB) AllEmails(ctx context.Context) ([]*types.Email, error) {
	return d.ListEmails(ctx, ListFilter{})
}

// UnreviewedEmails returns up to limit emails no human has looked at yet.
func (d *DB) UnreviewedEmails(ctx context.Context, limit int) ([]*types.Email, error) {
	reviewed := false
	return d.ListEmails(ctx, ListFilter{Reviewed: &reviewed, Limit: limit})
}

// ReviewedEmails returns one page of reviewed emails.
func (d *DB) ReviewedEmails(ctx context.Context, limit, offset int) ([]*types.Email, error) {
	reviewed := true
	return d.ListEmails(ctx, ListFilter{Reviewed: &reviewed, Limit: limit, Offset: offset})
}

func (d *DB) selectEmails(ctx context.Context, query string, args ...any) ([]*types.Email, error) {
	var rows []emailRow
	if err := d.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	out := make([]*types.Email, len(rows))
	for i := range rows {
		out[i] = rows[i].email()
	}
	return out, nil
}

// EmailCount returns the total number of emails.
func (d *DB) EmailCount(ctx context.Context) (int, error) {
	var n int
	if err := d.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM emails"); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return n, nil
}

// Categories returns effective category counts, most common first.
func (d *DB) Categories(ctx context.Context) ([]types.CategoryCount, error) {
	var counts []types.CategoryCount
	err := d.conn.SelectContext(ctx, &counts, `
		SELECT COALESCE(`+effectiveCategory+`, '') AS category, COUNT(*) AS count
		FROM emails
		GROUP BY 1
		ORDER BY count DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	return counts, nil
}

// --- Override operations ---

// SetManualCategory records a human category override and marks the row
// reviewed.
func (d *DB) SetManualCategory(ctx context.Context, id, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return errors.New("manual category must not be empty")
	}
	res, err := d.conn.ExecContext(ctx, `
		UPDATE emails
		SET manually_updated_category = ?, is_manual = 1, reviewed = 1
		WHERE id = ?`, category, id)
	if err != nil {
		return fmt.Errorf("set category for %s: %w", id, err)
	}
	return expectRow(res, id)
}

// ClearManualCategory removes an override so the engine category applies
// again. The row stays reviewed.
func (d *DB) ClearManualCategory(ctx context.Context, id string) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE emails
		SET manually_updated_category = NULL, is_manual = 0, reviewed = 1
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear category for %s: %w", id, err)
	}
	return expectRow(res, id)
}

// MarkReviewed sets reviewed on the given ids and returns how many rows
// changed.
func (d *DB) MarkReviewed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("UPDATE emails SET reviewed = 1 WHERE id IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("build mark reviewed: %w", err)
	}
	res, err := d.conn.ExecContext(ctx, d.conn.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark reviewed: %w", err)
	}
	return res.RowsAffected()
}

// MarkAllReviewed sets reviewed on every unreviewed row and returns the ids
// it changed.
func (d *DB) MarkAllReviewed(ctx context.Context) ([]string, error) {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mark all reviewed: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	if err := tx.SelectContext(ctx, &ids,
		"SELECT id FROM emails WHERE COALESCE(reviewed, 0) = 0 ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list unreviewed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE emails SET reviewed = 1 WHERE COALESCE(reviewed, 0) = 0"); err != nil {
		return nil, fmt.Errorf("mark all reviewed: %w", err)
	}
	return ids, tx.Commit()
}

// SetFeedback stores free-text reviewer feedback.
func (d *DB) SetFeedback(ctx context.Context, id, feedback string) error {
	res, err := d.conn.ExecContext(ctx,
		"UPDATE emails SET user_feedback = ?, reviewed = 1 WHERE id = ?", nullStr(feedback), id)
	if err != nil {
		return fmt.Errorf("set feedback for %s: %w", id, err)
	}
	return expectRow(res, id)
}

// SetUserTags stores reviewer tags (comma separated).
func (d *DB) SetUserTags(ctx context.Context, id, tags string) error {
	res, err := d.conn.ExecContext(ctx,
		"UPDATE emails SET user_tags = ?, reviewed = 1 WHERE id = ?", nullStr(tags), id)
	if err != nil {
		return fmt.Errorf("set tags for %s: %w", id, err)
	}
	return expectRow(res, id)
}

// --- Deletion ---

// DeleteEmail removes an email and its interaction history.
func (d *DB) DeleteEmail(ctx context.Context, id string) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM interactions WHERE email_id = ?", id); err != nil {
		return fmt.Errorf("delete interactions for %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM emails WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete email %s: %w", id, err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteByCategory removes every email whose effective category is category
// and returns how many were deleted.
func (d *DB) DeleteByCategory(ctx context.Context, category string) (int64, error) {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	match := "SELECT id FROM emails WHERE (" + effectiveCategory + ") = ?"
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM interactions WHERE email_id IN ("+match+")", category); err != nil {
		return 0, fmt.Errorf("delete interactions for %s: %w", category, err)
	}
	res, err := tx.ExecContext(ctx,
		"DELETE FROM emails WHERE ("+effectiveCategory+") = ?", category)
	if err != nil {
		return 0, fmt.Errorf("delete category %s: %w", category, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
