package normalize

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskeroo/taskeroo/internal/types"
)

func enc(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func newTestNormalizer(max int) *Normalizer {
	return New(Options{MaxBodyLength: max, TruncationIndicator: "..."}, zerolog.Nop())
}

func TestNormalizeFlatMessage(t *testing.T) {
	raw := &RawMessage{
		ID:           "m1",
		ThreadID:     "t1",
		Snippet:      "hello",
		LabelIDs:     []string{"INBOX", "UNREAD", "IMPORTANT"},
		InternalDate: 1700000000000,
		Headers: []Header{
			{Name: "subject", Value: "Your invoice"},
			{Name: "FROM", Value: "Billing <billing@example.com>"},
			{Name: "Date", Value: "Tue, 14 Nov 2023 22:13:20 +0000"},
		},
		Payload: &Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: enc("Please pay")},
	}

	msg := newTestNormalizer(100).Normalize(raw)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "Your invoice", msg.Subject)
	assert.Equal(t, "Billing <billing@example.com>", msg.SenderEmail)
	assert.Equal(t, "Tue, 14 Nov 2023 22:13:20 +0000", msg.Date)
	assert.Equal(t, "2023-11-14T22:13:20Z", msg.ReceivedTime)
	assert.Equal(t, "Please pay", msg.EmailBody)
	assert.Equal(t, "[]", msg.AttachmentInfo)
	assert.False(t, msg.IsRead)
	assert.True(t, msg.IsImportant)
}

func TestNormalizeMissingHeaders(t *testing.T) {
	msg := newTestNormalizer(100).Normalize(&RawMessage{ID: "m2", LabelIDs: []string{"INBOX"}})

	assert.Empty(t, msg.Subject)
	assert.Empty(t, msg.SenderEmail)
	assert.Empty(t, msg.Date)
	assert.Empty(t, msg.ReceivedTime)
	assert.Empty(t, msg.EmailBody)
	assert.True(t, msg.IsRead)
	assert.False(t, msg.IsImportant)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := &RawMessage{
		ID:      "m3",
		Headers: []Header{{Name: "Subject", Value: "x"}},
		Payload: &Container{
			PartInfo: PartInfo{MediaType: "multipart/mixed"},
			Parts: []Part{
				&Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: enc("body")},
				&Leaf{PartInfo: PartInfo{MediaType: "application/pdf", Filename: "a.pdf", Size: 10}},
			},
		},
	}
	n := newTestNormalizer(100)
	assert.Equal(t, n.Normalize(raw), n.Normalize(raw))
}

func TestNormalizeDepthFirstText(t *testing.T) {
	raw := &RawMessage{
		ID: "m4",
		Payload: &Container{
			PartInfo: PartInfo{MediaType: "multipart/mixed"},
			Parts: []Part{
				&Leaf{PartInfo: PartInfo{MediaType: "image/png", Filename: "logo.png", Size: 42}, Data: enc("\x89PNG")},
				&Container{
					PartInfo: PartInfo{MediaType: "multipart/alternative"},
					Parts: []Part{
						&Leaf{PartInfo: PartInfo{MediaType: "text/html; charset=utf-8"}, Data: enc("<p>nested html</p>")},
						&Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: enc("later plain")},
					},
				},
				&Leaf{PartInfo: PartInfo{MediaType: "application/pdf", Filename: "inv.pdf", Size: 2048}},
			},
		},
	}

	msg := newTestNormalizer(100).Normalize(raw)

	assert.Equal(t, "<p>nested html</p>", msg.EmailBody)
	assert.JSONEq(t, `[
	  {"filename":"logo.png","mime_type":"image/png","size":42},
	  {"filename":"inv.pdf","mime_type":"application/pdf","size":2048}
	]`, msg.AttachmentInfo)
}

func TestNormalizeSkipsBadPart(t *testing.T) {
	var buf bytes.Buffer
	n := New(Options{MaxBodyLength: 100}, zerolog.New(&buf))

	raw := &RawMessage{
		ID: "m5",
		Payload: &Container{
			PartInfo: PartInfo{MediaType: "multipart/alternative"},
			Parts: []Part{
				&Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: "!!!not base64!!!"},
				&Leaf{PartInfo: PartInfo{MediaType: "text/html"}, Data: enc("fallback")},
			},
		},
	}

	msg := n.Normalize(raw)
	assert.Equal(t, "fallback", msg.EmailBody)
	assert.Contains(t, buf.String(), "skipping undecodable part")
}

func TestNormalizeAcceptsPaddedBase64(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("ab"))
	require.True(t, strings.HasSuffix(padded, "="))

	msg := newTestNormalizer(100).Normalize(&RawMessage{
		ID:      "m6",
		Payload: &Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: padded},
	})
	assert.Equal(t, "ab", msg.EmailBody)
}

func TestNormalizeEmbeddedMIME(t *testing.T) {
	inner := "MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=E9 menu\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<b>html</b>\r\n" +
		"--XYZ--\r\n"

	msg := newTestNormalizer(100).Normalize(&RawMessage{
		ID:      "m7",
		Payload: &Leaf{PartInfo: PartInfo{MediaType: "message/rfc822"}, Data: enc(inner)},
	})
	assert.Equal(t, "café menu", msg.EmailBody)
}

func TestNormalizeReplacesInvalidUTF8(t *testing.T) {
	msg := newTestNormalizer(100).Normalize(&RawMessage{
		ID:      "m8",
		Payload: &Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: enc("ok \xff\xfe end")},
	})
	assert.True(t, utf8.ValidString(msg.EmailBody))
	assert.Equal(t, "ok � end", msg.EmailBody)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"runes", "ééééé", 3, "ééé..."},
		{"disabled", "hello", 0, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max, "..."))
		})
	}
}

func TestNormalizeTruncationBound(t *testing.T) {
	body := strings.Repeat("x", 500)
	msg := newTestNormalizer(50).Normalize(&RawMessage{
		ID:      "m9",
		Payload: &Leaf{PartInfo: PartInfo{MediaType: "text/plain"}, Data: enc(body)},
	})
	assert.LessOrEqual(t, utf8.RuneCountInString(msg.EmailBody), 50+len("..."))
	assert.True(t, strings.HasSuffix(msg.EmailBody, "..."))
}

func TestNormalizeDoesNotAliasLabels(t *testing.T) {
	labels := []string{types.LabelUnread}
	msg := newTestNormalizer(10).Normalize(&RawMessage{ID: "m10", LabelIDs: labels})
	labels[0] = "CHANGED"
	assert.Equal(t, []string{types.LabelUnread}, msg.LabelIDs)
}

func TestNewDefaults(t *testing.T) {
	n := New(Options{}, zerolog.Nop())
	assert.Equal(t, DefaultMaxBodyLength, n.opts.MaxBodyLength)
	assert.Equal(t, DefaultTruncationIndicator, n.opts.TruncationIndicator)
}
