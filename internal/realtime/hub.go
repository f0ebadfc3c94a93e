// Package realtime pushes record change signals to connected browsers.
//
// A browser opens one websocket per tab. Whenever a record of its owner changes,
// the hub sends a small invalidation message and the page re-fetches the
// affected fragments. Nothing is ordered or acknowledged; a dropped signal only
// means the page refreshes later.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fintrack/internal/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message is the JSON frame sent to browsers.
type Message struct {
	Type string          `json:"type"`
	Kind core.RecordKind `json:"kind"`
	Op   core.ChangeOp   `json:"op"`
}

const MessageInvalidate = "invalidate"

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	ownerID string
}

// Hub keeps the open websocket connections grouped by owner.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

var _ core.Notifier = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]struct{}),
	}
}

// Run serves registrations until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.ownerID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.ownerID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Websocket client registered", "owner_id", c.ownerID)

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			h.logger.Debug("Websocket client unregistered", "owner_id", c.ownerID)

		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.ownerID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.ownerID)
	}
}

// Notify sends an invalidation to every connection of the event's owner.
// Clients whose buffer is full are disconnected instead of blocking the writer.
func (h *Hub) Notify(_ context.Context, ev core.ChangeEvent) error {
	payload, err := json.Marshal(Message{Type: MessageInvalidate, Kind: ev.Kind, Op: ev.Op})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.OwnerID] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("Dropping slow websocket client", "owner_id", c.ownerID)
			h.removeLocked(c)
		}
	}
	return nil
}

// ClientCount reports how many connections an owner has open.
func (h *Hub) ClientCount(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

// Connections reports the total number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// ServeWS upgrades an authenticated request. The owner must already be in the request context.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := core.OwnerFromContext(r.Context())
	if !ok {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		ownerID: ownerID,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames; browsers never send data on this socket.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Unexpected websocket close", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
