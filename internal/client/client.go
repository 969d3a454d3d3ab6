package client

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

	"github.com/rs/zerolog/log"
)

// ObserveFunc receives one record per completed backend call
type ObserveFunc func(method, path string, status int, duration time.Duration)

// Client is a thin wrapper around net/http bound to one backend base URL.
// It never retries and never refreshes tokens.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	observe    ObserveFunc
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader adds a default header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithObserver installs a callback invoked after every call
func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// New creates a client for baseURL with JSON default headers
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSpace(baseURL),
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, token string, out interface{}) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, token, "", nil, out)
}

// SendJSON issues a request with a JSON-encoded body. A nil in sends no body.
func (c *Client) SendJSON(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}
	return c.do(ctx, method, path, token, "", body, out)
}

// SendMultipart issues a request with a pre-built multipart body. The
// contentType carries the boundary and replaces the JSON default.
func (c *Client) SendMultipart(ctx context.Context, method, path, token, contentType string, body []byte, out interface{}) error {
	if contentType == "" {
		return errors.New("multipart content type is required")
	}
	return c.do(ctx, method, path, token, contentType, bytes.NewReader(body), out)
}

// Delete issues a DELETE and decodes the response, if any, into out
func (c *Client) Delete(ctx context.Context, path, token string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, token, "", nil, out)
}

func (c *Client) resolve(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) do(ctx context.Context, method, path, token, contentType string, body io.Reader, out interface{}) error {
	target := c.resolve(path)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", target, err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if body == nil {
		req.Header.Del("Content-Type")
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(method, path, 0, start)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	c.record(method, path, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("method", method).
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("body", truncate(string(respBody), 512)).
			Msg("Backend returned error")
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) record(method, path string, status int, start time.Time) {
	if c.observe == nil {
		return
	}
	c.observe(method, routeOf(path), status, time.Since(start))
}

// routeOf strips the query and replaces id segments so metric labels stay bounded
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(segment string) bool {
	if len(segment) < 16 {
		return false
	}
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == '-':
		default:
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
