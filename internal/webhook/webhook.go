// Package webhook delivers job completion notifications to caller-supplied URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for webhook delivery.
var (
	// ErrURLRequired is returned when Notify is called without a URL.
	ErrURLRequired = errors.New("webhook: URL is required")
	// ErrUnexpectedStatus is returned when the receiver answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("webhook: unexpected status")
)

// Event is the JSON payload posted to a webhook receiver.
type Event struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	OutputPath      string  `json:"output_path,omitempty"`
	VideoURL        string  `json:"video_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty"`
	ErrorKind       string  `json:"error_kind,omitempty"`
}

// Notifier sends job events.
type Notifier interface {
	Notify(ctx context.Context, url string, event Event) error
}

// Compile-time check that Client implements Notifier.
var _ Notifier = (*Client)(nil)

// Client posts events over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(wc *Client) {
		wc.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(wc *Client) {
		wc.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a new webhook Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "zoomclip-webhook/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify posts event to url as JSON. It does not retry.
func (c *Client) Notify(ctx context.Context, url string, event Event) error {
	if url == "" {
		return ErrURLRequired
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}
