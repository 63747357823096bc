// Package jobclient calls the remote training block generation function.
package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/claude/hybridathlete/internal/generation"
	"github.com/google/uuid"
)

// Client implements generation.Job over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: Client satisfies generation.Job.
var _ generation.Job = (*Client)(nil)

// New creates a Client posting to endpoint. Generation can take minutes, so
// the HTTP client has no timeout; callers bound it with their context if needed.
func New(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// Generate runs the job for userID. A non-2xx response that carries a JSON
// body is reported as a failed Result; anything else that prevents reading a
// result is returned as an error.
func (c *Client) Generate(ctx context.Context, userID uuid.UUID) (generation.Result, error) {
	payload, err := json.Marshal(generateRequest{UserID: userID})
	if err != nil {
		return generation.Result{}, fmt.Errorf("jobclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return generation.Result{}, fmt.Errorf("jobclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generation.Result{}, fmt.Errorf("jobclient: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return generation.Result{}, fmt.Errorf("jobclient: read body: %w", err)
	}

	var res generation.Result
	decodeErr := json.Unmarshal(body, &res)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr != nil {
			return generation.Result{}, fmt.Errorf("jobclient: returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		res.Success = false
		return res, nil
	}
	if decodeErr != nil {
		return generation.Result{}, fmt.Errorf("jobclient: decode response: %w", decodeErr)
	}
	return res, nil
}
