package api

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// HistoryTurn is one half of a prior conversation turn in a /chat payload.
// Exactly one of User or Assistant is set.
type HistoryTurn struct {
	User      string `json:"user,omitempty"`
	Assistant string `json:"assistant,omitempty"`
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message string        `json:"message"`
	History []HistoryTurn `json:"history"`
}

// Source is a read-only citation attached to an assistant response.
type Source struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	FileID     string  `json:"file_id,omitempty"`
}

// ChatResponse is the POST /chat success body.
type ChatResponse struct {
	Response           string   `json:"response"`
	Sources            []Source `json:"sources"`
	Model              string   `json:"model"`
	Provider           string   `json:"provider"`
	DurationSeconds    float64  `json:"duration_seconds"`
	APIDurationSeconds float64  `json:"api_duration_seconds"`
}

// Chat posts one message with bounded history and returns the assistant
// response with cited sources and server-reported timings.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("chat: message is required")
	}
	if req.History == nil {
		req.History = []HistoryTurn{}
	}
	var resp ChatResponse
	if err := c.postJSON(ctx, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetrievalHit is one matched document from a test-retrieval call.
type RetrievalHit struct {
	Title          string  `json:"title"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

// RetrievalConfig echoes the retrieval parameters the backend applied.
type RetrievalConfig struct {
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
}

// RetrievalResult is the GET /chat/test-retrieval response.
type RetrievalResult struct {
	ResultsCount    int             `json:"results_count"`
	Results         []RetrievalHit  `json:"results"`
	DurationSeconds float64         `json:"duration_seconds"`
	Config          RetrievalConfig `json:"config"`
}

// TestRetrieval runs one retrieval-only query against the backend.
func (c *Client) TestRetrieval(ctx context.Context, query string) (*RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("test retrieval: query is required")
	}
	q := url.Values{"query": {query}}
	var resp RetrievalResult
	if err := c.get(ctx, "/chat/test-retrieval", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
