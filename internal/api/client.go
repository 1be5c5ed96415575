// Package api is the typed HTTP client for the RAG backend's REST API.
//
// The backend reports failures two ways: a non-2xx status with a JSON
// error envelope, or (for some chat paths) an envelope inside a 2xx
// body. Both surface as *APIError so callers branch on ErrorType and
// Step rather than parsing response bodies themselves.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koopa0/ragctl/internal/log"
)

const (
	// maxResponseSize bounds how much of any response body is read.
	maxResponseSize = 5 << 20

	// maxRedirects caps redirect chains; the backend never redirects,
	// so anything longer is a misconfiguration.
	maxRedirects = 3
)

// Client talks to one backend instance. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a client for the backend at baseURL. token may be empty
// for unauthenticated deployments.
func New(baseURL, token string, timeout time.Duration, logger log.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("api.New: base URL is required")
	}
	if logger == nil {
		return nil, errors.New("api.New: logger is required")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}, nil
}

// APIError is a structured failure reported by the backend. Status is 0
// when the envelope arrived inside a 2xx body.
type APIError struct {
	Status    int
	ErrorType string
	Message   string
	Step      string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("api error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.ErrorType != "" {
		fmt.Fprintf(&b, " [%s]", e.ErrorType)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " (step: %s)", e.Step)
	}
	return b.String()
}

// errorEnvelope is the backend's JSON error shape.
type errorEnvelope struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Details   struct {
		Step string `json:"step"`
	} `json:"details"`
}

// apiErrorFrom shapes a non-2xx response into an *APIError. Non-JSON
// bodies still yield a usable error carrying the status code.
func apiErrorFrom(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.ErrorType = env.ErrorType
	apiErr.Message = env.Message
	if apiErr.Message == "" {
		apiErr.Message = env.Error
	}
	apiErr.Step = env.Details.Step
	return apiErr
}

// envelopeIn detects an error envelope hidden inside a 2xx body.
// Returns nil when the body is a normal payload.
func envelopeIn(data []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Error == "" && env.ErrorType == "" {
		return nil
	}
	apiErr := &APIError{
		ErrorType: env.ErrorType,
		Message:   env.Message,
		Step:      env.Details.Step,
	}
	if apiErr.Message == "" {
		apiErr.Message = env.Error
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) putJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

// do performs one round trip. out may be nil for responses whose body
// the caller ignores.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp.StatusCode, data)
	}
	if apiErr := envelopeIn(data); apiErr != nil {
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
