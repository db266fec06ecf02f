package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/kazna/internal/metrics"
)

// Message is one live update. Snapshot messages carry the whole dashboard
// in Data, so a client can simply replace its view.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity,omitempty"`
	Action string `json:"action,omitempty"`
	ID     string `json:"id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// NewSnapshot builds a snapshot message triggered by the given change.
func NewSnapshot(entity, action, id string, data any) Message {
	return Message{
		Type:   "snapshot",
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetLiveClients(n)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetLiveClients(n)
}

// Broadcast sends the same message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.BroadcastScoped(msg, msg)
}

// BroadcastScoped sends admin to admin clients and public to everyone else.
func (h *Hub) BroadcastScoped(public, admin Message) {
	publicData, err := json.Marshal(public)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}
	adminData, err := json.Marshal(admin)
	if err != nil {
		h.logger.Error("marshal admin broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		data := publicData
		if c.admin {
			data = adminData
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the publisher.
			h.logger.Warn("dropping live update for slow client", "admin", c.admin)
		}
	}
}

// Send queues a message for a single client, typically the initial snapshot.
func (h *Hub) Send(c *Client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	select {
	case c.send <- data:
	default:
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
