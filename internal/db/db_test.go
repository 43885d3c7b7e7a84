package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskeroo/taskeroo/internal/types"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})
	return d
}

func sampleEmail(id, category string) *types.Email {
	return &types.Email{
		NormalizedMessage: types.NormalizedMessage{
			ID:             id,
			ThreadID:       "t-" + id,
			Subject:        "Subject " + id,
			SenderEmail:    "sender@example.com",
			Snippet:        "snippet",
			EmailBody:      "body",
			LabelIDs:       []string{"INBOX", "UNREAD"},
			Date:           "Mon, 1 Jan 2024 10:00:00 +0000",
			ReceivedTime:   "2024-01-01T10:00:00Z",
			AttachmentInfo: "[]",
			IsRead:         false,
			IsImportant:    true,
		},
		Category:            category,
		SecondaryCategories: []string{types.CategoryImportantSoft},
		ConfidenceScore:     0.5,
		AllCategories:       `{"` + category + `":1}`,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	tables, err := d.Tables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "emails")
	assert.Contains(t, tables, "interactions")

	cols, err := d.Columns(ctx)
	require.NoError(t, err)
	want := []string{"id"}
	for _, c := range emailColumns {
		want = append(want, c.name)
	}
	assert.Equal(t, want, cols)

	added, err := d.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE emails (
		id TEXT PRIMARY KEY, subject TEXT, snippet TEXT, date TEXT, label_ids TEXT,
		sender_email TEXT, email_body TEXT, attachment_info TEXT, received_time TEXT,
		category TEXT, user_tags TEXT)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO emails (id, subject, category) VALUES ('old1', 'legacy', 'neutral')`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	d, err := Open(ctx, path)
	require.NoError(t, err)
	defer d.Close()

	cols, err := d.Columns(ctx)
	require.NoError(t, err)
	assert.Contains(t, cols, "manually_updated_category")
	assert.Contains(t, cols, "thread_id")
	assert.Contains(t, d.AddedColumns(), "is_manual")
	assert.NotContains(t, d.AddedColumns(), "subject")

	e, err := d.GetEmail(ctx, "old1")
	require.NoError(t, err)
	assert.Equal(t, "legacy", e.Subject)
	assert.Equal(t, "neutral", e.Category)
	assert.False(t, e.IsManual)
	assert.False(t, e.Reviewed)

	added, err := d.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	created, err := d.UpsertEmail(ctx, sampleEmail("m1", "Finance"))
	require.NoError(t, err)
	assert.True(t, created)

	e := sampleEmail("m1", "Promotions")
	e.Subject = "changed"
	created, err = d.UpsertEmail(ctx, e)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := d.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Subject)
	assert.Equal(t, "Promotions", got.Category)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, got.LabelIDs)
	assert.Equal(t, []string{types.CategoryImportantSoft}, got.SecondaryCategories)
	assert.Equal(t, 0.5, got.ConfidenceScore)
	assert.Equal(t, "t-m1", got.ThreadID)
	assert.True(t, got.IsImportant)
	assert.False(t, got.IsRead)
	assert.Empty(t, got.MLCategory)

	n, err := d.EmailCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertPreservesOverrides(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	_, err := d.UpsertEmail(ctx, sampleEmail("m1", "Finance"))
	require.NoError(t, err)
	require.NoError(t, d.SetManualCategory(ctx, "m1", "Travel"))
	require.NoError(t, d.SetUserTags(ctx, "m1", "trip,2024"))
	require.NoError(t, d.SetFeedback(ctx, "m1", "wrong bucket"))

	_, err = d.UpsertEmail(ctx, sampleEmail("m1", "Finance"))
	require.NoError(t, err)

	got, err := d.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.IsManual)
	assert.True(t, got.Reviewed)
	assert.Equal(t, "Travel", got.ManuallyUpdatedCategory)
	assert.Equal(t, "trip,2024", got.UserTags)
	assert.Equal(t, "wrong bucket", got.UserFeedback)
	assert.Equal(t, "Travel", got.EffectiveCategory())
	assert.Equal(t, "Finance", got.Category)
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	d := newTestDB(t)
	_, err := d.UpsertEmail(context.Background(), &types.Email{})
	assert.Error(t, err)
}

func TestManualCategory(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	_, err := d.UpsertEmail(ctx, sampleEmail("m1", "Finance"))
	require.NoError(t, err)

	assert.Error(t, d.SetManualCategory(ctx, "m1", "  "))
	assert.ErrorIs(t, d.SetManualCategory(ctx, "missing", "Travel"), ErrNotFound)

	require.NoError(t, d.SetManualCategory(ctx, "m1", "Travel"))
	require.NoError(t, d.ClearManualCategory(ctx, "m1"))

	got, err := d.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, got.IsManual)
	assert.Empty(t, got.ManuallyUpdatedCategory)
	assert.True(t, got.Reviewed)
	assert.Equal(t, "Finance", got.EffectiveCategory())
}

func TestGetEmailNotFound(t *testing.T) {
	d := newTestDB(t)
	_, err := d.GetEmail(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndReviewFlow(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	for _, e := range []*types.Email{
		sampleEmail("a", "Finance"),
		sampleEmail("b", "Promotions"),
		sampleEmail("c", "Promotions"),
	} {
		_, err := d.UpsertEmail(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, d.SetManualCategory(ctx, "b", "Finance"))

	finance, err := d.ListEmails(ctx, ListFilter{Category: "Finance"})
	require.NoError(t, err)
	assert.Len(t, finance, 2)

	unreviewed, err := d.UnreviewedEmails(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unreviewed, 2)

	n, err := d.MarkReviewed(ctx, "a", "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	page, err := d.ReviewedEmails(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	page2, err := d.ReviewedEmails(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.NotEqual(t, page[0].ID, page2[0].ID)

	marked, err := d.MarkAllReviewed(ctx)
	require.NoError(t, err)
	assert.Len(t, marked, 1)

	marked, err = d.MarkAllReviewed(ctx)
	require.NoError(t, err)
	assert.Empty(t, marked)

	all, err := d.AllEmails(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCategoriesUseEffectiveCategory(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, e := range []*types.Email{
		sampleEmail("a", "Finance"),
		sampleEmail("b", "Promotions"),
		sampleEmail("c", "Promotions"),
	} {
		_, err := d.UpsertEmail(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, d.SetManualCategory(ctx, "c", "Finance"))

	cats, err := d.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.CategoryCount{
		{Category: "Finance", Count: 2},
		{Category: "Promotions", Count: 1},
	}, cats)
}

func TestUpdateDerived(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	_, err := d.UpsertEmail(ctx, sampleEmail("a", "Finance"))
	require.NoError(t, err)
	require.NoError(t, d.SetManualCategory(ctx, "a", "Travel"))

	e := sampleEmail("a", "Updates")
	e.SecondaryCategories = nil
	e.ConfidenceScore = 1
	require.NoError(t, d.UpdateDerived(ctx, e))

	got, err := d.GetEmail(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Updates", got.Category)
	assert.Nil(t, got.SecondaryCategories)
	assert.Equal(t, 1.0, got.ConfidenceScore)
	assert.Equal(t, "Travel", got.EffectiveCategory())

	assert.ErrorIs(t, d.UpdateDerived(ctx, sampleEmail("zzz", "x")), ErrNotFound)
}

func TestInteractionsAndDelete(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	_, err := d.UpsertEmail(ctx, sampleEmail("a", "Finance"))
	require.NoError(t, err)
	_, err = d.UpsertEmail(ctx, sampleEmail("b", "Finance"))
	require.NoError(t, err)

	require.NoError(t, d.LogInteraction(ctx, "a", types.InteractionOverride))
	require.NoError(t, d.LogInteraction(ctx, "a", types.InteractionReviewed))
	require.NoError(t, d.LogInteraction(ctx, "b", types.InteractionFeedback))

	got, err := d.Interactions(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.InteractionReviewed, got[0].Interaction)
	assert.NotEmpty(t, got[0].Timestamp)

	limited, err := d.Interactions(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, d.DeleteEmail(ctx, "a"))
	assert.ErrorIs(t, d.DeleteEmail(ctx, "a"), ErrNotFound)

	left, err := d.Interactions(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestDeleteByCategory(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, e := range []*types.Email{
		sampleEmail("a", "Promotions"),
		sampleEmail("b", "Promotions"),
		sampleEmail("c", "Finance"),
	} {
		_, err := d.UpsertEmail(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, d.SetManualCategory(ctx, "b", "Keep"))
	require.NoError(t, d.LogInteraction(ctx, "a", types.InteractionReviewed))

	n, err := d.DeleteByCategory(ctx, "Promotions")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := d.EmailCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSummary(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	empty, err := d.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.ReviewedPercent)

	for _, e := range []*types.Email{
		sampleEmail("a", "Finance"),
		sampleEmail("b", "Promotions"),
		sampleEmail("c", "Promotions"),
		sampleEmail("d", "Updates"),
	} {
		_, err := d.UpsertEmail(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, d.SetManualCategory(ctx, "d", "Finance"))
	_, err = d.MarkReviewed(ctx, "a")
	require.NoError(t, err)

	s, err := d.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Unreviewed)
	assert.Equal(t, 1, s.Manual)
	assert.InDelta(t, 50.0, s.ReviewedPercent, 0.001)
	require.Len(t, s.TopCategories, 2)
	assert.Equal(t, 2, s.TopCategories[0].Count)
	require.Len(t, s.RecentManual, 1)
	assert.Equal(t, "d", s.RecentManual[0].ID)
}

func TestUpsertExecErrorIsWrapped(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	d := New(conn, "sqlite")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM emails WHERE id = ?")).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO emails").
		WillReturnError(errors.New("disk I/O error"))

	created, err := d.UpsertEmail(context.Background(), sampleEmail("m1", "Finance"))
	assert.False(t, created)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert email m1")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
