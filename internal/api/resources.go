package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// KnowledgeEntry is one record in the knowledge base.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListKnowledge fetches knowledge entries, optionally filtered by a search
// query. An empty query lists everything.
func (c *Client) ListKnowledge(ctx context.Context, query string) ([]KnowledgeEntry, error) {
	var q url.Values
	if strings.TrimSpace(query) != "" {
		q = url.Values{"query": {query}}
	}
	var out []KnowledgeEntry
	if err := c.get(ctx, "/knowledge", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateKnowledge creates a new knowledge entry.
func (c *Client) CreateKnowledge(ctx context.Context, entry KnowledgeEntry) (*KnowledgeEntry, error) {
	if strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Content) == "" {
		return nil, errors.New("create knowledge: title and content are required")
	}
	var out KnowledgeEntry
	if err := c.postJSON(ctx, "/knowledge", entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateKnowledge replaces an existing knowledge entry.
func (c *Client) UpdateKnowledge(ctx context.Context, entry KnowledgeEntry) (*KnowledgeEntry, error) {
	if entry.ID == "" {
		return nil, errors.New("update knowledge: id is required")
	}
	var out KnowledgeEntry
	if err := c.putJSON(ctx, "/knowledge/"+url.PathEscape(entry.ID), entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteKnowledge removes a knowledge entry.
func (c *Client) DeleteKnowledge(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete knowledge: id is required")
	}
	return c.delete(ctx, "/knowledge/"+url.PathEscape(id), nil)
}

// File is an uploaded document tracked by the backend.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFiles fetches the uploaded files.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var out []File
	if err := c.get(ctx, "/files", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile streams one file to the backend as multipart form data.
// Chunking and embedding happen server-side; the returned record reports
// the backend's processing status.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("upload file: name is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("upload file: read content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("upload file: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiErrorFrom(resp.StatusCode, data)
	}
	if apiErr := envelopeIn(data); apiErr != nil {
		return nil, apiErr
	}

	var out File
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("upload file: decode response: %w", err)
	}
	return &out, nil
}

// DeleteFile removes an uploaded file and its derived chunks.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete file: id is required")
	}
	return c.delete(ctx, "/files/"+url.PathEscape(id), nil)
}

// User is an account on the backend.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsers fetches all user accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.get(ctx, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser creates an account. password travels only in this request.
func (c *Client) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, errors.New("create user: username and password are required")
	}
	body := map[string]string{"username": username, "password": password, "role": role}
	var out User
	if err := c.postJSON(ctx, "/users", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser updates mutable account fields.
func (c *Client) UpdateUser(ctx context.Context, user User) (*User, error) {
	if user.ID == "" {
		return nil, errors.New("update user: id is required")
	}
	var out User
	if err := c.putJSON(ctx, "/users/"+url.PathEscape(user.ID), user, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete user: id is required")
	}
	return c.delete(ctx, "/users/"+url.PathEscape(id), nil)
}

// SystemPrompt is a stored prompt template; at most one is active.
type SystemPrompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListPrompts fetches all system prompts.
func (c *Client) ListPrompts(ctx context.Context) ([]SystemPrompt, error) {
	var out []SystemPrompt
	if err := c.get(ctx, "/prompts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePrompt stores a new system prompt.
func (c *Client) CreatePrompt(ctx context.Context, name, content string) (*SystemPrompt, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return nil, errors.New("create prompt: name and content are required")
	}
	body := map[string]string{"name": name, "content": content}
	var out SystemPrompt
	if err := c.postJSON(ctx, "/prompts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrompt replaces a stored prompt's name/content.
func (c *Client) UpdatePrompt(ctx context.Context, prompt SystemPrompt) (*SystemPrompt, error) {
	if prompt.ID == "" {
		return nil, errors.New("update prompt: id is required")
	}
	var out SystemPrompt
	if err := c.putJSON(ctx, "/prompts/"+url.PathEscape(prompt.ID), prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivatePrompt makes the given prompt the active one.
func (c *Client) ActivatePrompt(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("activate prompt: id is required")
	}
	return c.postJSON(ctx, "/prompts/"+url.PathEscape(id)+"/activate", nil, nil)
}

// DeletePrompt removes a stored prompt.
func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete prompt: id is required")
	}
	return c.delete(ctx, "/prompts/"+url.PathEscape(id), nil)
}
