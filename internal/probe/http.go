package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrStatus reports an unexpected HTTP status.
var ErrStatus = errors.New("unexpected status")

// sessionHeader carries the session id on API calls.
const sessionHeader = "X-Session-ID"

// Client talks to the dashboard API.
type Client struct {
	base    string
	client  *http.Client
	session string
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Login exchanges the passkey for a session. An empty passkey is a no-op.
func (c *Client) Login(ctx context.Context, passKey string) error {
	if passKey == "" {
		return nil
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/session", map[string]string{"passKey": passKey}, &out); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.session = out.SessionID
	return nil
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Years fetches the union of available years.
func (c *Client) Years(ctx context.Context) ([]int, error) {
	var out struct {
		All []int `json:"all"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/years", nil, &out); err != nil {
		return nil, err
	}
	return out.All, nil
}

// Package fetches one data package.
func (c *Client) Package(ctx context.Context, period, dashboard string) (Response, error) {
	q := url.Values{}
	q.Set("type", dashboard)
	q.Set("period", period)

	start := time.Now()
	var raw map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/packages?"+q.Encode(), nil, &raw); err != nil {
		return Response{}, err
	}
	res := Response{Dashboard: dashboard, Latency: time.Since(start), Sections: map[string]any{}}
	for k, v := range raw {
		if k == "metadata" {
			if err := json.Unmarshal(v, &res.Metadata); err != nil {
				return Response{}, fmt.Errorf("decode metadata: %w", err)
			}
			continue
		}
		var sec any
		if err := json.Unmarshal(v, &sec); err != nil {
			return Response{}, fmt.Errorf("decode section %s: %w", k, err)
		}
		res.Sections[k] = sec
	}
	return res, nil
}

// Join posts a join request and returns the raw response.
func (c *Client) Join(ctx context.Context, body any) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodPost, "/api/join", body, &out)
	return out, err
}

// Get fetches path and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Delete sends a DELETE to path and decodes the JSON body into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set(sessionHeader, c.session)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
