package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// sendBuffer is how many frames may queue for one connection before it
	// is treated as stalled and dropped.
	sendBuffer = 16
)

// PushMessage is the frame written to websocket clients.
type PushMessage struct {
	Type string       `json:"type"`
	Data Notification `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks websocket connections per user and pushes new notifications to
// them. Push is best effort; clients still poll the inbox. Each connection
// has its own writer goroutine, so Publish never does network I/O.
type Hub struct {
	mu     sync.Mutex
	users  map[string]map[*websocket.Conn]*client
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{users: make(map[string]map[*websocket.Conn]*client), logger: logger}
}

func (h *Hub) Add(userID string, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*websocket.Conn]*client)
	}
	h.users[userID][conn] = c
	n := len(h.users[userID])
	h.mu.Unlock()

	h.logger.Debug("ws client connected", "user_id", userID, "connections", n)
	go h.writePump(userID, c)
}

func (h *Hub) Remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.users[userID][conn]; ok {
		h.dropLocked(userID, c)
	}
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

// Publish queues n for every connection of userID. A connection whose queue
// is full is dropped.
func (h *Hub) Publish(userID string, n Notification) {
	data, err := json.Marshal(PushMessage{Type: "notification", Data: n})
	if err != nil {
		h.logger.Warn("ws marshal", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.users[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws client not reading, dropping", "user_id", userID)
			h.dropLocked(userID, c)
		}
	}
}

// dropLocked forgets c and stops its writer. h.mu must be held.
func (h *Hub) dropLocked(userID string, c *client) {
	conns := h.users[userID]
	delete(conns, c.conn)
	if len(conns) == 0 {
		delete(h.users, userID)
	}
	close(c.send)
	// Close unblocks a writer stuck on a dead peer.
	c.conn.Close()
}

func (h *Hub) writePump(userID string, c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("ws write", "user_id", userID, "err", err)
			h.Remove(userID, c.conn)
			return
		}
	}
}
