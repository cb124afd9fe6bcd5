package http

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"math-rush-service/internal/app"
)

// client is one long-lived participant connection. All writes to the
// socket go through send; a single writer goroutine per connection keeps
// gorilla's one-concurrent-writer rule.
type client struct {
	id       string
	username string
	send     chan app.Event
}

// Hub is the connection registry backing the coordinator's Broadcaster
// capability.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

func (h *Hub) register() *client {
	c := &client{id: uuid.NewString(), send: make(chan app.Event, 16)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) setUsername(id, username string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		c.username = username
	}
	h.mu.Unlock()
}

func (h *Hub) Send(connID string, ev app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		deliver(c, ev)
	}
}

func (h *Hub) SendUser(username string, ev app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.username == username {
			deliver(c, ev)
		}
	}
}

func (h *Hub) BroadcastAll(ev app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		deliver(c, ev)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver never blocks: a slow client loses the event rather than stalling
// a broadcast. Callers hold at least a read lock, which excludes a
// concurrent close of the channel.
func deliver(c *client, ev app.Event) {
	select {
	case c.send <- ev:
	default:
		log.Warn().Str("conn_id", c.id).Str("event", ev.Type).Msg("dropping event for slow client")
	}
}
