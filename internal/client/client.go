// Package client talks to the completion endpoint on behalf of the chat widget.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// DefaultEndpoint is where the backend in cmd/api serves completions.
const DefaultEndpoint = "http://localhost:8080/api/chat"

const maxReplyBytes = 1 << 20

// ErrMalformedReply is returned when the endpoint answers without a usable text field.
var ErrMalformedReply = errors.New("malformed completion reply")

// StatusError reports a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion endpoint returned %d", e.Code)
	}
	return fmt.Sprintf("completion endpoint returned %d: %s", e.Code, e.Body)
}

// Client posts outbound tails to a completion endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each completion round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for endpoint, falling back to DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// Complete sends req and returns the raw, untrimmed reply text.
func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	body, err := utils.JSON.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read completion reply: %w", err)
	}

	log.Debug().
		Str("component", "client").
		Int("status", resp.StatusCode).
		Int("messages", len(req.Messages)).
		Dur("elapsed", time.Since(started)).
		Msg("completion round trip")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: errorBody(data)}
	}

	var reply chat.CompletionResponse
	if err := utils.JSON.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Text == nil {
		return "", fmt.Errorf("%w: missing text field", ErrMalformedReply)
	}
	return *reply.Text, nil
}

// errorBody extracts {"error": "..."} bodies produced by the backend, or
// returns the raw body.
func errorBody(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := utils.JSON.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(bytes.TrimSpace(data))
}
