// Package normalize turns raw provider messages into canonical
// types.NormalizedMessage records.
package normalize

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/rs/zerolog"

	"github.com/taskeroo/taskeroo/internal/types"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultMaxBodyLength       = 1000
	DefaultTruncationIndicator = "... [truncated]"
)

// Options controls body truncation.
type Options struct {
	MaxBodyLength       int
	TruncationIndicator string
}

// Normalizer extracts canonical message records. It is safe to reuse.
type Normalizer struct {
	opts Options
	log  zerolog.Logger
}

// New returns a Normalizer. Zero option values fall back to the defaults.
func New(opts Options, log zerolog.Logger) *Normalizer {
	if opts.MaxBodyLength <= 0 {
		opts.MaxBodyLength = DefaultMaxBodyLength
	}
	if opts.TruncationIndicator == "" {
		opts.TruncationIndicator = DefaultTruncationIndicator
	}
	return &Normalizer{opts: opts, log: log}
}

// Normalize builds the canonical record for raw. It never fails: missing
// headers become empty strings and undecodable bodies become an empty body.
func (n *Normalizer) Normalize(raw *RawMessage) types.NormalizedMessage {
	if raw == nil {
		return types.NormalizedMessage{AttachmentInfo: "[]"}
	}

	labels := make([]string, len(raw.LabelIDs))
	copy(labels, raw.LabelIDs)

	body := n.extractBody(raw.ID, raw.Payload)

	return types.NormalizedMessage{
		ID:             raw.ID,
		ThreadID:       raw.ThreadID,
		Subject:        HeaderValue(raw.Headers, "Subject"),
		SenderEmail:    HeaderValue(raw.Headers, "From"),
		Snippet:        raw.Snippet,
		EmailBody:      Truncate(body, n.opts.MaxBodyLength, n.opts.TruncationIndicator),
		LabelIDs:       labels,
		Date:           HeaderValue(raw.Headers, "Date"),
		ReceivedTime:   receivedTime(raw.InternalDate),
		AttachmentInfo: n.attachmentInfo(raw.ID, raw.Payload),
		IsRead:         !hasLabel(labels, types.LabelUnread),
		IsImportant:    hasLabel(labels, types.LabelImportant),
	}
}

// HeaderValue returns the first header value whose name matches name
// case-insensitively, or "".
func HeaderValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Truncate cuts s to max characters and appends indicator when s is longer.
// The result is therefore up to len(indicator) characters longer than max.
func Truncate(s string, max int, indicator string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + indicator
}

// extractBody prefers inline data on the top-level payload, then searches the
// part tree depth-first for the first text/plain or text/html leaf that decodes.
func (n *Normalizer) extractBody(id string, payload Part) string {
	if payload == nil {
		n.log.Debug().Str("id", id).Msg("message has no payload")
		return ""
	}

	if leaf, ok := payload.(*Leaf); ok && leaf.Data != "" {
		body, err := decodeBody(leaf.Data)
		if err != nil {
			n.log.Warn().Err(err).Str("id", id).Str("mime_type", leaf.MediaType).Msg("could not decode message body")
			return ""
		}
		return body
	}

	body, ok := n.searchText(id, payload)
	if !ok {
		n.log.Debug().Str("id", id).Msg("no decodable body found")
		return ""
	}
	return body
}

func (n *Normalizer) searchText(id string, p Part) (string, bool) {
	switch p := p.(type) {
	case *Leaf:
		if p.Data == "" || !isText(p.MediaType) {
			return "", false
		}
		body, err := decodeBody(p.Data)
		if err != nil {
			n.log.Warn().Err(err).Str("id", id).Str("mime_type", p.MediaType).Msg("skipping undecodable part")
			return "", false
		}
		return body, true
	case *Container:
		for _, child := range p.Parts {
			if body, ok := n.searchText(id, child); ok {
				return body, true
			}
		}
	}
	return "", false
}

// attachmentInfo lists top-level parts that carry a filename, as JSON.
func (n *Normalizer) attachmentInfo(id string, payload Part) string {
	atts := []types.Attachment{}
	if c, ok := payload.(*Container); ok {
		for _, p := range c.Parts {
			info := p.Info()
			if info.Filename == "" {
				continue
			}
			atts = append(atts, types.Attachment{
				Filename: info.Filename,
				MimeType: info.MediaType,
				Size:     info.Size,
			})
		}
	}

	data, err := json.Marshal(atts)
	if err != nil {
		n.log.Warn().Err(err).Str("id", id).Msg("could not encode attachment info")
		return "[]"
	}
	return string(data)
}

// decodeBody decodes provider body data: base64url, then any MIME structure
// left inside it, then UTF-8 with invalid sequences replaced.
func decodeBody(data string) (string, error) {
	raw, err := decodeBase64URL(data)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	content := stripMIME(raw)
	return strings.ToValidUTF8(string(content), "\uFFFD"), nil
}

// decodeBase64URL decodes Gmail's base64url-encoded content with or
// without padding.
func decodeBase64URL(data string) ([]byte, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	return base64.RawURLEncoding.DecodeString(data)
}

// stripMIME returns the first text part of raw when raw is itself a MIME
// entity (headers plus body), decoding transfer encodings and charsets.
// Anything else is returned unchanged.
func stripMIME(raw []byte) []byte {
	if !looksLikeMIME(raw) {
		return raw
	}
	ent, err := message.Read(bytes.NewReader(raw))
	if ent == nil || (err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err)) {
		return raw
	}
	body, ok := firstText(ent)
	if !ok {
		return raw
	}
	return body
}

func firstText(ent *message.Entity) ([]byte, bool) {
	if mr := ent.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF || part == nil {
				return nil, false
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return nil, false
			}
			if body, ok := firstText(part); ok {
				return body, true
			}
		}
	}

	t, _, _ := ent.Header.ContentType()
	if t != "" && !isText(t) {
		return nil, false
	}
	body, err := io.ReadAll(ent.Body)
	if err != nil {
		return nil, false
	}
	return body, true
}

// looksLikeMIME reports whether raw starts with a header block that declares
// MIME content.
func looksLikeMIME(raw []byte) bool {
	end := headerEnd(raw)
	if end < 0 {
		return false
	}
	for _, line := range bytes.Split(raw[:end], []byte("\n")) {
		l := bytes.ToLower(bytes.TrimSpace(line))
		if bytes.HasPrefix(l, []byte("content-type:")) || bytes.HasPrefix(l, []byte("mime-version:")) {
			return true
		}
	}
	return false
}

func headerEnd(raw []byte) int {
	lf := bytes.Index(raw, []byte("\n\n"))
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	switch {
	case lf < 0:
		return crlf
	case crlf < 0:
		return lf
	default:
		return min(lf, crlf)
	}
}

func isText(mediaType string) bool {
	t, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		t = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return t == "text/plain" || t == "text/html"
}

func receivedTime(internalDate int64) string {
	if internalDate <= 0 {
		return ""
	}
	return time.UnixMilli(internalDate).UTC().Format(time.RFC3339)
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
