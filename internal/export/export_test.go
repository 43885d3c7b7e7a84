package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskeroo/taskeroo/internal/db"
	"github.com/taskeroo/taskeroo/internal/types"
)

func TestCSVWritesAllColumns(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.UpsertEmail(ctx, &types.Email{
		NormalizedMessage: types.NormalizedMessage{
			ID:       "m1",
			Subject:  "Hello, \"world\"",
			LabelIDs: []string{"INBOX", "UNREAD"},
		},
		Category:        "Finance",
		ConfidenceScore: 0.75,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := CSV(ctx, store.Underlying(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	cols, err := store.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, cols, records[0])

	row := map[string]string{}
	for i, c := range records[0] {
		row[c] = records[1][i]
	}
	assert.Equal(t, "m1", row["id"])
	assert.Equal(t, `Hello, "world"`, row["subject"])
	assert.Equal(t, "INBOX,UNREAD", row["label_ids"])
	assert.Equal(t, "Finance", row["category"])
	assert.Equal(t, "0.75", row["confidence_score"])
	assert.Equal(t, "0", row["is_manual"])
	assert.Empty(t, row["manually_updated_category"])
}

func TestToFileEmptyTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := db.Open(ctx, filepath.Join(dir, "export.db"))
	require.NoError(t, err)
	defer store.Close()

	path := filepath.Join(dir, "emails.csv")
	n, err := ToFile(ctx, store.Underlying(), path)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "thread_id", records[0][len(records[0])-1])
}
