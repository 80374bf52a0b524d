package app

import (
	"encoding/json"
	"sync"

	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Hub tracks the live websocket connections per user and pushes event
// envelopes to them. Writes are serialized through the hub lock; a dev
// server does not need per-connection write pumps.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

// NewHub create Hub
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Register adds a connection for a user. Returns true when it is the
// user's first live connection.
func (h *Hub) Register(userID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	first := len(h.conns[userID]) == 0
	h.conns[userID][conn] = struct{}{}
	return first
}

// Unregister removes a connection. Returns true when the user has no
// live connections left.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
		return true
	}
	return false
}

// Push sends one event to every connection of a user.
func (h *Hub) Push(userID, event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("encode push payload:", err)
		return
	}
	ev := domain.Event{Name: event, Payload: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[userID] {
		if err := conn.WriteJSON(ev); err != nil {
			logger.Log.Warn("push failed, dropping connection",
				zap.String("user", userID), zap.Error(err))
			delete(h.conns[userID], conn)
			conn.Close()
		}
	}
}

// Broadcast sends one event to every connected user.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.Lock()
	userIDs := make([]string, 0, len(h.conns))
	for id := range h.conns {
		userIDs = append(userIDs, id)
	}
	h.mu.Unlock()

	for _, id := range userIDs {
		h.Push(id, event, payload)
	}
}
