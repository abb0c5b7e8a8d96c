package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
)

// sendBuffer is the per-client outbound queue. Events are dropped for
// clients that fall this far behind.
const sendBuffer = 256

// SubscribeFunc matches events.Bus.SubscribeThread.
type SubscribeFunc func(threadID string, handler events.Subscriber, eventTypes ...events.EventType) func()

// RequestHandler answers request frames. threadID is the client's thread
// filter and may be empty.
type RequestHandler interface {
	HandleRequest(ctx context.Context, threadID, method string, params json.RawMessage) (any, error)
}

// Client represents a connected WebSocket client.
type Client struct {
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	threadID    string
	unsubscribe func()
	closeOnce   sync.Once
}

// Hub manages WebSocket clients. Each client receives the bus events of
// the thread it connected for, or every event without a thread filter.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	subscribe SubscribeFunc
	handler   RequestHandler
}

// NewHub creates a hub. handler may be nil, in which case every request is rejected.
func NewHub(subscribe SubscribeFunc, handler RequestHandler) *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		subscribe: subscribe,
		handler:   handler,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	c.unsubscribe = h.subscribe(c.threadID, c.push)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "thread", c.threadID, "clients", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	slog.Info("ws client disconnected", "thread", c.threadID, "clients", n)
}

// ServeWS upgrades the request and serves the client until it disconnects.
// The optional "thread" query parameter filters pushed events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local gateway, any origin
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		hub:      h,
		threadID: r.URL.Query().Get("thread"),
	}
	h.register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// push queues a bus event for the client.
func (c *Client) push(e events.Event) {
	frame, err := NewEventFrame(string(e.Type), e.ThreadID, e.SessionID, e)
	if err != nil {
		slog.Error("marshal event frame", "error", err)
		return
	}
	data, err := MarshalFrame(frame)
	if err != nil {
		slog.Error("marshal frame", "error", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	defer func() {
		// send is closed once the client is gone.
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
		slog.Debug("ws client too slow, dropping frame", "thread", c.threadID)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.send)
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Warn("ws unmarshal frame", "error", err)
			continue
		}
		if frame.Type != FrameTypeRequest {
			slog.Debug("ws unknown frame type", "type", frame.Type)
			continue
		}
		c.handleRequest(ctx, frame)
	}
}

func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	if c.hub.handler == nil {
		c.respond(frame.ID, nil, "requests are not supported")
		return
	}
	threadID := c.threadID
	if frame.ThreadID != "" {
		threadID = frame.ThreadID
	}
	payload, err := c.hub.handler.HandleRequest(ctx, threadID, frame.Method, frame.Params)
	if err != nil {
		c.respond(frame.ID, nil, err.Error())
		return
	}
	c.respond(frame.ID, payload, "")
}

func (c *Client) respond(id string, payload any, errMsg string) {
	f, err := NewResponseFrame(id, errMsg == "", payload, errMsg)
	if err != nil {
		slog.Error("marshal response", "error", err)
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
}
