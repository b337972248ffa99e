package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message pushed to dashboard clients
type WSMessage struct {
	Type       string      `json:"type"`
	ImageID    string      `json:"image_id,omitempty"`
	SenderName string      `json:"sender_name,omitempty"`
	Timestamp  int64       `json:"timestamp,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// WSHub manages dashboard WebSocket connections and fans out tracking events
type WSHub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[*websocket.Conn]struct{}),
	}
}

// Register registers a new dashboard connection
func (h *WSHub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = struct{}{}
	log.Info().Int("clients", len(h.connections)).Msg("Dashboard connection registered")
}

// Unregister removes a dashboard connection
func (h *WSHub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn]; exists {
		conn.Close()
		delete(h.connections, conn)
		log.Info().Int("clients", len(h.connections)).Msg("Dashboard connection unregistered")
	}
}

// Broadcast sends a message to every connected dashboard client. Clients
// whose connection errors are dropped. Safe to call on a nil hub.
func (h *WSHub) Broadcast(message WSMessage) {
	if h == nil {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("type", message.Type).Msg("Failed to marshal message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Msg("Failed to push message, dropping client")
			h.Unregister(conn)
		}
	}
}

// ClientCount reports the number of connected dashboard clients
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
