// Package client talks to a running relay over its local HTTP interface.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"markestedt/hotkeyrelay/auth"
)

// DefaultBaseURL is where a relay listens with the default configuration.
const DefaultBaseURL = "http://127.0.0.1:17976"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// Message is one decoded stream payload.
type Message struct {
	Ready bool   `json:"ready"`
	Combo string `json:"combo"`
}

// Client is a relay client. The token is fetched from /hello on first use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
}

// New creates a client for the relay at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Hello probes the relay and returns its token.
func (c *Client) Hello(ctx context.Context) (string, error) {
	var resp struct {
		OK    bool   `json:"ok"`
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodGet, "/hello", nil, false, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.Token == "" {
		return "", errors.New("relay did not return a token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// Configure replaces the relay's watched combos and returns the resulting count.
func (c *Client) Configure(ctx context.Context, combos []string) (int, error) {
	if combos == nil {
		combos = []string{}
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/config", map[string]any{"combos": combos}, true, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Trigger asks the relay to publish a fire-event for a registered combo.
func (c *Client) Trigger(ctx context.Context, combo string) error {
	return c.do(ctx, http.MethodPost, "/trigger", map[string]string{"combo": combo}, true, nil)
}

// Stream opens /events and calls fn for every data frame until ctx is done,
// the relay closes the stream, or fn returns an error.
func (c *Client) Stream(ctx context.Context, fn func(Message) error) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// Comments (keepalives) and blank separators.
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &msg); err != nil {
			return fmt.Errorf("failed to decode stream frame %q: %w", data, err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return ctx.Err()
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.Hello(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}
