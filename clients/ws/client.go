// Package ws provides a WebSocket client for the aios gateway.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/gateway"
	wsprotocol "github.com/anonx3247/aios-chat-sub000/internal/gateway/ws"
)

// Client is a WebSocket client for the gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// URL returns the WebSocket endpoint of the gateway at baseURL
// (http://host:port), filtered to threadID when non-empty.
func URL(baseURL, threadID string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	u += "/api/ws"
	if threadID != "" {
		u += "?thread=" + url.QueryEscape(threadID)
	}
	return u
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{conn: conn, ctx: clientCtx, cancel: cancel}, nil
}

// Request sends a request frame and returns its id. The response arrives
// through ReadFrame.
func (c *Client) Request(method string, params any) (string, error) {
	id := fmt.Sprintf("req-%d", atomic.AddUint64(&c.reqSeq, 1))
	frame, err := wsprotocol.NewRequestFrame(id, method, params)
	if err != nil {
		return "", err
	}
	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return "", err
	}
	return id, nil
}

// Orchestrate starts a run on the connection's thread.
func (c *Client) Orchestrate(task string) (string, error) {
	return c.Request(wsprotocol.MethodOrchestrate, gateway.OrchestrateRequest{Task: task})
}

// RespondPrompt answers a pending ask_user prompt.
func (c *Client) RespondPrompt(token, value string, cancelled bool) (string, error) {
	return c.Request(wsprotocol.MethodPromptRespond, events.PromptResponsePayload{
		Token:     token,
		Value:     value,
		Cancelled: cancelled,
	})
}

// Snapshot asks for the session of the connection's thread.
func (c *Client) Snapshot() (string, error) {
	return c.Request(wsprotocol.MethodSessionSnapshot, nil)
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
