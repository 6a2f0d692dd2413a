package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecomxpert/storefront/backend/internal/metrics"
)

var (
	ErrUnauthorized = errors.New("marketplace: unauthorized")
	ErrNotFound     = errors.New("marketplace: not found")
)

// APIError is a non-2xx response from the marketplace backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("marketplace: status %d", e.Status)
	}
	return fmt.Sprintf("marketplace: status %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

type tokenKey struct{}

// WithToken attaches the viewer's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client talks to the marketplace REST API.
type Client struct {
	baseURL  string
	assetURL string
	http     *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for baseURL. assetURL prefixes relative media
// paths and defaults to baseURL. A zero timeout means no deadline.
func New(baseURL, assetURL string, timeout time.Duration, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if assetURL == "" {
		assetURL = baseURL
	}
	c := &Client{
		baseURL:  baseURL,
		assetURL: strings.TrimRight(assetURL, "/"),
		http:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssetURL resolves a backend-relative media path.
func (c *Client) AssetURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.assetURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do executes req and decodes a JSON response into out when non-nil.
func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream("marketplace", endpoint, "error", started)
		return fmt.Errorf("%s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream("marketplace", endpoint, strconv.Itoa(resp.StatusCode), started)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path, endpoint string, query url.Values, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, endpoint, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, endpoint, out)
}

// errorMessage extracts the message CodeIgniter puts in failure bodies.
func errorMessage(data []byte) string {
	var body struct {
		Message  string            `json:"message"`
		Error    json.RawMessage   `json:"error"`
		Messages map[string]string `json:"messages"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}
	if msg, ok := body.Messages["error"]; ok {
		return msg
	}
	for _, msg := range body.Messages {
		return msg
	}
	if body.Message != "" {
		return body.Message
	}
	var s string
	if json.Unmarshal(body.Error, &s) == nil {
		return s
	}
	return ""
}

// unwrapList returns the array held under the first present key, or data
// itself when the body is already an array.
func unwrapList(data json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		return trimmed
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	for _, key := range keys {
		if v, ok := envelope[key]; ok {
			return v
		}
	}
	return trimmed
}
