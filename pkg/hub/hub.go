// Package hub fans dashboard feed events out to websocket subscribers
// using the channel-based broadcast pattern.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/printworks/voicedesk/internal/log"
)

// Hub maintains the set of subscribed dashboard clients and broadcasts
// feed events to them.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// New creates a hub. Run must be called before broadcasting.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's main loop. Call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("subscriber connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("subscriber disconnected", "remaining", count)

		case data := <-h.broadcast:
			// Full lock: dropping a slow subscriber mutates the client map.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Subscriber can't keep up; drop it.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish encodes a feed event and broadcasts it to all subscribers. A
// full broadcast queue drops the event; the dashboard is best-effort.
func (h *Hub) Publish(ev FeedEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("feed event failed to encode", "kind", ev.Kind, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "kind", ev.Kind)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
