// Package client talks to a running degrade server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 5 * time.Second
)

// Client is an HTTP client for the degrade API.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL uses DefaultServerURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := string(data)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

type counterReply struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
}

func (c *Client) counter(ctx context.Context, method, path string, body any) (*float64, error) {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	var r counterReply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return r.Value, nil
}

func counterPath(key string) string {
	return "/api/counters/" + url.PathEscape(key)
}

// Incr increments key and returns its observable value.
func (c *Client) Incr(ctx context.Context, key string, amount, rate float64, interval string) (float64, error) {
	v, err := c.counter(ctx, http.MethodPost, counterPath(key)+"/incr", map[string]any{
		"amount":       amount,
		"degrade_rate": rate,
		"interval":     interval,
	})
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("incr %s: empty reply", key)
	}
	return *v, nil
}

// Decr decrements key. A nil value means the key does not exist.
func (c *Client) Decr(ctx context.Context, key string, amount float64) (*float64, error) {
	return c.counter(ctx, http.MethodPost, counterPath(key)+"/decr", map[string]any{"amount": amount})
}

// Peek returns the observable value of key. A nil value means the key does not exist.
func (c *Client) Peek(ctx context.Context, key string) (*float64, error) {
	return c.counter(ctx, http.MethodGet, counterPath(key), nil)
}
