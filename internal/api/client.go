package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flexifi/poolwatch/internal/model"
)

// Client provides access to a watcher's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the watcher at baseURL, e.g.
// http://localhost:8080.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Health fetches /health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.get(ctx, "/health", nil, &h)
	return h, err
}

// Watches lists every configured watch.
func (c *Client) Watches(ctx context.Context) ([]Watch, error) {
	var resp WatchList
	if err := c.get(ctx, "/api/v1/watches", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Watches, nil
}

// Watch fetches one watch by name.
func (c *Client) Watch(ctx context.Context, name string) (Watch, error) {
	var w Watch
	err := c.get(ctx, "/api/v1/watches/"+url.PathEscape(name), nil, &w)
	return w, err
}

// History fetches up to limit stored readings for name, newest first.
// limit <= 0 uses the server default.
func (c *Client) History(ctx context.Context, name string, limit int) ([]model.Reading, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}

	var resp History
	if err := c.get(ctx, "/api/v1/watches/"+url.PathEscape(name)+"/history", query, &resp); err != nil {
		return nil, err
	}
	return resp.Readings, nil
}

// Resubscribe asks the watcher to replace the subscription for name.
// It is not retried.
func (c *Client) Resubscribe(ctx context.Context, name string) (Resubscribed, error) {
	var resp Resubscribed
	err := c.post(ctx, "/api/v1/watches/"+url.PathEscape(name)+"/resubscribe", &resp)
	return resp, err
}

// Portfolio fetches the configured holdings and transactions.
func (c *Client) Portfolio(ctx context.Context) (model.Portfolio, error) {
	var p model.Portfolio
	err := c.get(ctx, "/api/v1/portfolio", nil, &p)
	return p, err
}
