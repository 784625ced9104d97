// Package remote is the HTTP client for the remote event service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calstore/internal/models"
)

const (
	eventsPath     = "/api/google/events"
	authURLPath    = "/api/google/oauth/url"
	disconnectPath = "/api/google/disconnect"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks to the remote event service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type eventsResponse struct {
	Events []models.Event `json:"events"`
}

type eventResponse struct {
	Event models.Event `json:"event"`
}

type urlResponse struct {
	URL string `json:"url"`
}

// List fetches every event.
func (c *Client) List(ctx context.Context) ([]models.Event, error) {
	var out eventsResponse
	if err := c.do(ctx, http.MethodGet, eventsPath, nil, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		out.Events = []models.Event{}
	}
	return out.Events, nil
}

// Create asks the service to create an event and returns the stored copy.
func (c *Client) Create(ctx context.Context, in models.EventInput) (models.Event, error) {
	var out eventResponse
	if err := c.do(ctx, http.MethodPost, eventsPath, in, &out); err != nil {
		return models.Event{}, err
	}
	return out.Event, nil
}

// Update sends a partial update for id.
func (c *Client) Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error) {
	var out eventResponse
	if err := c.do(ctx, http.MethodPatch, eventsPath+"/"+url.PathEscape(id), patch, &out); err != nil {
		return models.Event{}, err
	}
	return out.Event, nil
}

// Delete removes id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, eventsPath+"/"+url.PathEscape(id), nil, nil)
}

// AuthURL returns the OAuth authorization URL the user should visit.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var out urlResponse
	if err := c.do(ctx, http.MethodGet, authURLPath, nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("remote returned an empty authorization url")
	}
	return out.URL, nil
}

// Disconnect revokes the remote connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, disconnectPath, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Sending remote request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func newStatusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed: %d", resp.StatusCode)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
