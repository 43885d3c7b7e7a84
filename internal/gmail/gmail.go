// Package gmail is the remote mailbox client. It lists message ids and
// fetches full messages through google.golang.org/api/gmail/v1, converting
// them to normalize.RawMessage.
package gmail

import (
	"context"
	"fmt"
	"net/http"

	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/taskeroo/taskeroo/internal/normalize"
)

const userID = "me"

// Client wraps a Gmail API service for one authenticated user.
type Client struct {
	svc *gm.Service
}

// New returns a client over an existing service.
func New(svc *gm.Service) *Client {
	return &Client{svc: svc}
}

// NewFromHTTPClient builds a Gmail service over an authenticated HTTP client.
// Extra options are applied after the client, e.g. option.WithEndpoint.
func NewFromHTTPClient(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return New(svc), nil
}

// ListMessages returns the ids of up to max messages matching query. With
// labelIDs set, only messages carrying all of those labels are listed.
func (c *Client) ListMessages(ctx context.Context, query string, labelIDs []string, max int64) ([]string, error) {
	call := c.svc.Users.Messages.List(userID).Q(query).Context(ctx)
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	if max > 0 {
		call = call.MaxResults(max)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches one full message.
func (c *Client) GetMessage(ctx context.Context, id string) (*normalize.RawMessage, error) {
	msg, err := c.svc.Users.Messages.Get(userID, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return ToRaw(msg), nil
}

// ToRaw converts an API message into the normalizer's input shape.
func ToRaw(msg *gm.Message) *normalize.RawMessage {
	raw := &normalize.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
		InternalDate: msg.InternalDate,
	}
	if msg.Payload != nil {
		raw.Headers = headers(msg.Payload.Headers)
		raw.Payload = toPart(msg.Payload)
	}
	return raw
}

// toPart maps a payload node to the typed variant: nodes with children become
// containers, everything else is a leaf.
func toPart(p *gm.MessagePart) normalize.Part {
	info := normalize.PartInfo{
		MediaType: p.MimeType,
		Filename:  p.Filename,
	}
	if p.Body != nil {
		info.Size = p.Body.Size
	}

	if len(p.Parts) > 0 {
		children := make([]normalize.Part, 0, len(p.Parts))
		for _, child := range p.Parts {
			if child != nil {
				children = append(children, toPart(child))
			}
		}
		return &normalize.Container{PartInfo: info, Parts: children}
	}

	leaf := &normalize.Leaf{PartInfo: info}
	if p.Body != nil {
		leaf.Data = p.Body.Data
	}
	return leaf
}

func headers(in []*gm.MessagePartHeader) []normalize.Header {
	out := make([]normalize.Header, 0, len(in))
	for _, h := range in {
		if h == nil {
			continue
		}
		out = append(out, normalize.Header{Name: h.Name, Value: h.Value})
	}
	return out
}
