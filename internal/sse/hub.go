// Package sse fans checkout outcomes out to operator dashboards over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType defines the SSE event name.
type EventType string

const (
	EventCheckoutAdded  EventType = "checkout.added"
	EventCheckoutFailed EventType = "checkout.failed"
)

// CheckoutEvent is the payload broadcast to dashboard clients.
type CheckoutEvent struct {
	Event               EventType `json:"event"`
	GroupID             string    `json:"groupId"`
	SessionID           string    `json:"sessionId"`
	BundleTitle         string    `json:"bundleTitle"`
	BundleQuantity      int       `json:"bundleQuantity"`
	FinalPrice          int64     `json:"finalPrice"`
	SupplementalPercent int64     `json:"supplementalPercent"`
	VoucherCode         *string   `json:"voucherCode,omitempty"`
	DiscountApplied     bool      `json:"discountApplied"`
	FailedReason        *string   `json:"failedReason,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Client represents a connected SSE client.
type Client struct {
	ID     string
	Events chan []byte
}

// Hub manages SSE client connections and broadcasts.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  64,
	}
}

// Register adds a new client and returns it for streaming.
func (h *Hub) Register(clientID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Client{
		ID:     clientID,
		Events: make(chan []byte, h.buffer),
	}
	h.clients[clientID] = c
	log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client disconnected")
	}
}

// Broadcast sends an event to all connected clients.
// Non-blocking: drops message if client buffer is full.
func (h *Hub) Broadcast(event *CheckoutEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.Events <- data:
		default:
			log.Warn().Str("client_id", c.ID).Msg("SSE client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
