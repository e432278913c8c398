package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"school-service/internal/models"
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks live notification connections per user.
type Hub struct {
	users     map[string]map[Conn]*client
	publisher Publisher
	mu        sync.RWMutex
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher Publisher) *Hub {
	return &Hub{
		users:     make(map[string]map[Conn]*client),
		publisher: publisher,
	}
}

// AddClient registers a connection for info.UserID.
func (h *Hub) AddClient(conn Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[info.UserID]; !ok {
		h.users[info.UserID] = make(map[Conn]*client)
	}
	h.users[info.UserID][conn] = &client{conn: conn, info: info}
}

// RemoveClient drops a connection. It reports whether the connection was registered.
func (h *Hub) RemoveClient(userID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[conn]; !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.users, userID)
	}
	return true
}

// Connections returns the number of live connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// NotifyUsers sends event to every connection of each listed user. Users
// without a live connection are skipped.
func (h *Hub) NotifyUsers(userIDs []string, event models.NotificationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	var targets []*client
	h.mu.RLock()
	for _, userID := range userIDs {
		for _, c := range h.users[userID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			log.Printf("websocket write error: user_id=%s conn_id=%s err=%v", c.info.UserID, c.info.ConnID, err)
			c.conn.Close()
			if h.RemoveClient(c.info.UserID, c.conn) {
				publishWSEvent(context.Background(), h.publisher, c.info, "ws_error", err.Error())
			}
		}
	}
}
