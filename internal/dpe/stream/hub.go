// Package stream relays dashboard events to browsers over Server-Sent Events.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"dpehub_backend/platform/events"
	"dpehub_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const clientBuffer = 32

// Message is one SSE frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	id     uuid.UUID
	events chan Message
}

// Hub fans events out to connected SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool
	log     *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		log:     log,
	}
}

// Handle implements events.Handler: every event is broadcast under its name.
func (h *Hub) Handle(_ context.Context, event events.Event) error {
	h.Broadcast(Message{Type: event.EventName(), Data: event})
	return nil
}

// Broadcast sends msg to every client. Slow clients drop the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.events <- msg:
		default:
			h.log.Warn("sse buffer full", "client", c.id, "event", msg.Type)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{id: uuid.New(), events: make(chan Message, clientBuffer)}
	h.clients[c.id] = c
	return c, true
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.events)
}

// Handler streams hub messages to one client until it disconnects.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := h.addClient()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream closed"})
			return
		}
		defer h.removeClient(cl)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"clientId": cl.id})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case msg, ok := <-cl.events:
				if !ok {
					return
				}
				data, err := json.Marshal(msg.Data)
				if err != nil {
					h.log.Error("sse encode failed", "event", msg.Type, "error", err)
					continue
				}
				c.SSEvent(msg.Type, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
	h.closed = true
}

var _ events.Handler = (*Hub)(nil)
