// Package api is a client for the gateway's HTTP API.
package api

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

	"github.com/anonx3247/aios-chat-sub000/internal/gateway"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/threads"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// Client calls the gateway at BaseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the gateway at baseURL (http://host:port).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health pings the gateway.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ListThreads returns every thread, most recently updated first.
func (c *Client) ListThreads(ctx context.Context) ([]*threads.Thread, error) {
	var out []*threads.Thread
	err := c.do(ctx, http.MethodGet, "/api/threads", nil, &out)
	return out, err
}

// CreateThread creates a thread.
func (c *Client) CreateThread(ctx context.Context, title string) (*threads.Thread, error) {
	var out threads.Thread
	if err := c.do(ctx, http.MethodPost, "/api/threads", map[string]string{"title": title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteThread removes a thread with its messages and event log.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/threads/"+url.PathEscape(id), nil, nil)
}

// Messages returns the conversation of a thread.
func (c *Client) Messages(ctx context.Context, id string) ([]*threads.Message, error) {
	var out []*threads.Message
	err := c.do(ctx, http.MethodGet, "/api/threads/"+url.PathEscape(id)+"/messages", nil, &out)
	return out, err
}

// Session returns the current session snapshot of a thread.
func (c *Client) Session(ctx context.Context, threadID string) (*sessions.Session, error) {
	var out sessions.Session
	if err := c.do(ctx, http.MethodGet, "/api/threads/"+url.PathEscape(threadID)+"/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orchestrate starts a run on a thread.
func (c *Client) Orchestrate(ctx context.Context, threadID string, req gateway.OrchestrateRequest) (*gateway.OrchestrateResponse, error) {
	var out gateway.OrchestrateResponse
	if err := c.do(ctx, http.MethodPost, "/api/threads/"+url.PathEscape(threadID)+"/orchestrate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
