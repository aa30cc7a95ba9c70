// Package realtime streams booking events to websocket subscribers.
// Admins receive every event; students receive only their own.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/iliyamo/study-room-booking/internal/queue"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// Attach registers c until it is detached.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws client attached", slog.Uint64("user_id", c.userID), slog.Bool("admin", c.admin), slog.Int("clients", n))
}

// detach removes c and closes its send channel.  Channels are only
// closed under the write lock, so Publish never sends on a closed one.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	if ok {
		h.logger.Info("ws client detached", slog.Uint64("user_id", c.userID))
	}
}

// Len returns the number of attached clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts ev to every interested client.  A client whose
// buffer is full is dropped rather than blocking the publisher.
func (h *Hub) Publish(_ context.Context, ev queue.BookingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.admin && c.userID != ev.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("ws send buffer full", slog.Uint64("user_id", c.userID))
		h.detach(c)
	}
	return nil
}

// Close detaches every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*Client]struct{})
	return nil
}
