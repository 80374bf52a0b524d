package app

import (
	"encoding/json"
	"time"

	"gourdtalk_client/internal/backend/repository"
	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/pkg/logger"
	"gourdtalk_client/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// WebsocketHandler owns the live connections and presence.
type WebsocketHandler struct {
	store *repository.ChatStore
	hub   *Hub
}

// NewWebsocketHandler create WebsocketHandler
func NewWebsocketHandler(store *repository.ChatStore, hub *Hub) *WebsocketHandler {
	return &WebsocketHandler{store: store, hub: hub}
}

// HandleConnection is the websocket entry point for one client.
func (h *WebsocketHandler) HandleConnection(conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	userID, ok := tokenUser.(string)
	if !ok || userID == "" {
		conn.Close()
		return
	}
	logger.Log.Info("websocket connected", zap.String("user", userID))

	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		if last := h.hub.Unregister(userID, conn); last {
			h.store.SetOnline(userID, false)
			h.hub.Broadcast(domain.EventOffline, domain.Presence{UserID: userID})
		}
		logger.Log.Info("websocket closed", zap.String("user", userID))
		conn.Close()
	}()

	if first := h.hub.Register(userID, conn); first {
		h.store.SetOnline(userID, true)
		h.hub.Broadcast(domain.EventOnline, domain.Presence{UserID: userID})
	}

	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return
			}
			logger.Log.Warn("websocket read error", zap.String("user", userID), zap.Error(err))
			return
		}
		h.handleEvent(userID, ev)
	}
}

// handleEvent relays client announcements. Clients emit a message only
// after the REST send stored it, so the relay never persists anything.
func (h *WebsocketHandler) handleEvent(userID string, ev domain.Event) {
	switch ev.Name {
	case domain.EventMessage:
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			logger.Log.Warn("drop undecodable announcement", zap.String("user", userID), zap.Error(err))
			return
		}
		if msg.SenderID != userID {
			logger.Log.Warn("drop spoofed announcement",
				zap.String("user", userID), zap.String("claimed_sender", msg.SenderID))
			return
		}
		h.hub.Push(msg.RecipientID, domain.EventMessage, msg)
	default:
		logger.Log.Debug("ignore client event", zap.String("event", ev.Name))
	}
}
