// Package ws fans orchestrator events out to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	id   string
	send chan []byte
}

// Hub tracks connected clients. Each client has its own buffered send
// channel; a client that falls behind is dropped rather than blocking
// the broadcaster.
type Hub struct {
	originPatterns []string

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub accepting the given origin patterns. A "*"
// pattern disables the origin check.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		originPatterns: originPatterns,
		clients:        make(map[*client]struct{}),
	}
}

// HandleWS upgrades the request and serves the connection until the
// client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	for _, p := range h.originPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
		}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	h.add(c)
	defer h.remove(c)

	slog.Info("websocket connected", "client_id", c.id, "remote", r.RemoteAddr)

	// CloseRead discards inbound frames and cancels ctx when the peer leaves.
	ctx := conn.CloseRead(context.WithoutCancel(r.Context()))
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "client_id", c.id, "error", err)
				return
			}
		}
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
			slog.Warn("websocket client dropped", "client_id", c.id)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
		slog.Info("websocket disconnected", "client_id", c.id)
	}
}
