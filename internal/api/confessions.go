package api

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Confession is a server-owned anonymous submission awaiting moderation.
type Confession struct {
	ID        string     `json:"id"`
	Message   string     `json:"message"`
	IP        string     `json:"ip,omitempty"`
	Reply     string     `json:"reply,omitempty"`
	Replied   bool       `json:"replied"`
	CreatedAt time.Time  `json:"created_at"`
	RepliedAt *time.Time `json:"replied_at,omitempty"`
}

// ConfessionStats is the /confessions/stats/summary response.
type ConfessionStats struct {
	Total   int `json:"total"`
	Replied int `json:"replied"`
	Pending int `json:"pending"`
}

// ListConfessions fetches confessions. replied filters by reply status;
// nil means all.
func (c *Client) ListConfessions(ctx context.Context, replied *bool) ([]Confession, error) {
	var q url.Values
	if replied != nil {
		q = url.Values{"replied": {strconv.FormatBool(*replied)}}
	}
	var out []Confession
	if err := c.get(ctx, "/confessions", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConfession fetches one confession by id.
func (c *Client) GetConfession(ctx context.Context, id string) (*Confession, error) {
	if id == "" {
		return nil, errors.New("get confession: id is required")
	}
	var out Confession
	if err := c.get(ctx, "/confessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplyConfession posts a moderator reply. The backend marks the
// confession replied; callers refetch to observe the change.
func (c *Client) ReplyConfession(ctx context.Context, id, reply string) (*Confession, error) {
	if id == "" {
		return nil, errors.New("reply confession: id is required")
	}
	if strings.TrimSpace(reply) == "" {
		return nil, errors.New("reply confession: reply text is required")
	}
	body := map[string]string{"reply": reply}
	var out Confession
	if err := c.postJSON(ctx, "/confessions/"+url.PathEscape(id)+"/reply", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConfession removes a confession.
func (c *Client) DeleteConfession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete confession: id is required")
	}
	return c.delete(ctx, "/confessions/"+url.PathEscape(id), nil)
}

// ConfessionStats fetches the moderation summary counters.
func (c *Client) ConfessionStats(ctx context.Context) (*ConfessionStats, error) {
	var out ConfessionStats
	if err := c.get(ctx, "/confessions/stats/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
