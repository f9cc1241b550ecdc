package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/backend"
	"github.com/muurk/espfw/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events queued per subscriber before it is dropped
	sendBuffer = 16
)

// Hub fans change-feed events out to websocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan backend.Event
	remote string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// command-line clients send no Origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

// Serve upgrades the request and streams events until the peer leaves.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn("Change feed upgrade failed",
			zap.String("remote_addr", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan backend.Event, sendBuffer), remote: c.ClientIP()}
	if !h.register(sub) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogConnection(sub.remote, "change_feed_subscribed")

	go h.writePump(sub)
	h.readPump(sub)
}

// Broadcast queues ev for every subscriber. Subscribers whose queue is
// full are disconnected.
func (h *Hub) Broadcast(ev backend.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- ev:
		default:
			logging.Warn("Dropping slow change feed subscriber", zap.String("remote_addr", sub.remote))
			delete(h.clients, sub)
			close(sub.send)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.clients {
		delete(h.clients, sub)
		close(sub.send)
	}
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[sub] = struct{}{}
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[sub]; ok {
		delete(h.clients, sub)
		close(sub.send)
	}
}

// readPump discards client messages and keeps the pong deadline fresh.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.unregister(sub)
		_ = sub.conn.Close()
		logging.LogConnection(sub.remote, "change_feed_closed")
	}()

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Change feed read error",
					zap.String("remote_addr", sub.remote),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
