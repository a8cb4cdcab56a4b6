// Package httpapi is the REST implementation of the transaction gateway. It
// talks to the ledger-api server.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/log"
)

const categoriesKey = "categories"

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	categories *cache.LRUCache[[]core.Category]
	logger     *log.Logger
}

var _ gateway.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCategoryCache sets the cache used for Categories.
func WithCategoryCache(lru *cache.LRUCache[[]core.Category]) Option {
	return func(c *Client) { c.categories = lru }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url scheme %q not supported", u.Scheme)
	}
	c := &Client{
		baseURL:    u,
		httpClient: newPooledHTTPClient(timeout),
		categories: cache.NewLRUCache[[]core.Category](1, 5*time.Minute),
		logger:     log.Default(log.ComponentGateway),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CategoryCache exposes the category cache so it can be registered for cleanup.
func (c *Client) CategoryCache() *cache.LRUCache[[]core.Category] {
	return c.categories
}

// newPooledHTTPClient keeps connections to the API alive between calls.
func newPooledHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	q := url.Values{"user_id": {userID}}
	var out []core.Transaction
	if err := c.do(ctx, "list", http.MethodGet, "/api/transactions", q, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, draft core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, "create", http.MethodPost, "/api/transactions", nil, draft, http.StatusCreated, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id, userID string) error {
	q := url.Values{"user_id": {userID}}
	return c.do(ctx, "delete", http.MethodDelete, "/api/transactions/"+url.PathEscape(id), q, nil, http.StatusNoContent, nil)
}

// Categories returns the category list, served from cache while fresh.
func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	if cached, ok := c.categories.Get(categoriesKey); ok {
		return cached, nil
	}
	var out []core.Category
	if err := c.do(ctx, "categories", http.MethodGet, "/api/categories", nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.categories.Set(categoriesKey, out)
	return out, nil
}

// Ping checks the API health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/healthz", nil, nil, http.StatusOK, nil)
}

// do performs one request without retrying. Any transport failure, unexpected
// status or undecodable body becomes a *gateway.Error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, want int, out any) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &gateway.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Remote call completed",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode != want {
		return &gateway.Error{Op: op, StatusCode: resp.StatusCode, Err: readAPIError(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &gateway.Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// readAPIError extracts the {"error": "..."} message the API sends with
// failures. It returns nil when there is nothing useful to report.
func readAPIError(r io.Reader) error {
	data, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return errors.New(msg)
	}
	return nil
}
