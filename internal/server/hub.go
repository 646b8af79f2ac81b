package server

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Hub routes messages to connected clients by identity.
// One identity maps to at most one client; a newer connection replaces the
// older one.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client and returns the client it replaced, if any.
func (h *Hub) Register(client *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.clients[client.Identity]
	h.clients[client.Identity] = client
	return old
}

// Unregister removes client if it is still the one registered for its
// identity. It reports whether anything was removed.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.Identity] != client {
		return false
	}
	delete(h.clients, client.Identity)
	return true
}

// Deliver queues data for the client registered under identity. It never
// blocks: a full queue drops the message.
func (h *Hub) Deliver(identity string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[identity]
	if !ok {
		return false
	}
	select {
	case client.outgoing <- data:
		return true
	default:
		h.logger.Warn("Client channel full, skipping", "identity", identity, "client", client.ID)
		return false
	}
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Identities returns the connected identities, sorted.
func (h *Hub) Identities() []string {
	h.mu.RLock()
	ids := lo.Keys(h.clients)
	h.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// CloseAll closes every registered client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := lo.Values(h.clients)
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
