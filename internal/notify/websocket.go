package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// Message is the envelope written to dashboard clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message types.
const (
	MessageConnected = "connected"
	MessageNewCall   = "new_call"
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays broker events to websocket dashboard clients. Each client has
// its own bounded queue; a full queue drops the event for that client only.
type Hub struct {
	broker       *Broker
	upgrader     websocket.Upgrader
	buffer       int
	pingInterval time.Duration
	log          *zap.Logger

	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	// OnDrop, if set, is called for each event a client misses.
	OnDrop func()
}

// NewHub creates a hub fed by broker. buffer bounds each client's queue.
func NewHub(broker *Broker, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:       buffer,
		pingInterval: 30 * time.Second,
		log:          zap.L().With(zap.String("component", "websocket")),
		register:     make(chan *wsClient),
		unregister:   make(chan *wsClient),
		done:         make(chan struct{}),
		clients:      make(map[*wsClient]struct{}),
	}
}

// Run subscribes to the broker and serves clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.broker.Subscribe("websocket")
	defer h.broker.Unsubscribe(sub)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", zap.Int("clients", n))

		case c := <-h.unregister:
			h.remove(c)

		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(Message{Type: MessageNewCall, Data: ev})
	if err != nil {
		h.log.Error("marshal event", zap.String("call_id", ev.CallID), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("client queue full, dropping event", zap.String("call_id", ev.CallID))
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()
	close(h.done)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, h.buffer)}
	welcome, _ := json.Marshal(Message{Type: MessageConnected})
	c.send <- welcome

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains client frames so control messages are processed and a
// closed connection is noticed.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
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
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
