package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskeroo/taskeroo/internal/types"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is long", 8, "this ..."},
		{"abcdef", 3, "abc"},
		{"café au lait", 6, "caf..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max), tt.in)
	}
}

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Ann Lee", SenderName(`"Ann Lee" <ann@example.com>`))
	assert.Equal(t, "Bob", SenderName("Bob <bob@example.com>"))
	assert.Equal(t, "carl@example.com", SenderName("<carl@example.com>"))
	assert.Equal(t, "dee@example.com", SenderName("dee@example.com"))
	assert.Equal(t, "", SenderName(""))
	assert.Equal(t, "Lee, Ann", SenderName(`"Lee, Ann" <ann@example.com>`))
	assert.Equal(t, "José", SenderName("=?UTF-8?q?Jos=C3=A9?= <jose@example.com>"))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "", TimeAgo(""))
	assert.Equal(t, "just now", TimeAgo(time.Now().UTC().Format(time.RFC3339)))
	assert.Equal(t, "2h ago", TimeAgo(time.Now().Add(-2*time.Hour-time.Minute).UTC().Format(time.RFC3339)))
	assert.Equal(t, "not-a-date", TimeAgo("not-a-date"))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, " 67%", Confidence(2.0/3.0))
	assert.Equal(t, "100%", Confidence(1))
	assert.Equal(t, "  0%", Confidence(0))
}

func TestCategoryBadgeMarksOverride(t *testing.T) {
	e := &types.Email{Category: "Promotions"}
	assert.Contains(t, CategoryBadge(e), "Promotions")
	assert.NotContains(t, CategoryBadge(e), "*")

	e.IsManual = true
	e.ManuallyUpdatedCategory = "Finance"
	assert.Contains(t, CategoryBadge(e), "Finance*")
}

func TestEmailRowAndDetail(t *testing.T) {
	e := &types.Email{
		NormalizedMessage: types.NormalizedMessage{
			ID:          "18c0ffee",
			Subject:     "Invoice #42",
			SenderEmail: "Billing <billing@example.com>",
			EmailBody:   "line one\nline two",
			LabelIDs:    []string{"INBOX"},
		},
		Category:            "Finance",
		SecondaryCategories: []string{"Updates"},
		ConfidenceScore:     0.5,
	}

	var buf bytes.Buffer
	EmailRow(&buf, e)
	row := buf.String()
	assert.Contains(t, row, "18c0ffee")
	assert.Contains(t, row, "Invoice #42")
	assert.Contains(t, row, "Billing")
	assert.Equal(t, 1, strings.Count(row, "\n"))

	buf.Reset()
	EmailDetail(&buf, e)
	detail := buf.String()
	assert.Contains(t, detail, "Updates")
	assert.Contains(t, detail, "line two")
	assert.Contains(t, detail, "50%")
}

func TestBar(t *testing.T) {
	assert.Empty(t, Bar(1, 0, 10))
	assert.Equal(t, 10, strings.Count(Bar(3, 10, 10), "█")+strings.Count(Bar(3, 10, 10), "░"))
	assert.Equal(t, 1, strings.Count(Bar(1, 1000, 10), "█"))
}
