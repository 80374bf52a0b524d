package app

import (
	"gourdtalk_client/internal/backend/repository"
	"gourdtalk_client/internal/chat/domain"
	"gourdtalk_client/pkg/logger"
	"gourdtalk_client/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HTTPHandler serves the REST surface the chat client consumes.
type HTTPHandler struct {
	store *repository.ChatStore
	hub   *Hub
}

// NewHTTPHandler create HTTPHandler
func NewHTTPHandler(store *repository.ChatStore, hub *Hub) *HTTPHandler {
	return &HTTPHandler{store: store, hub: hub}
}

// Login exchanges a user id for a JWT and registers the user in the
// directory. No password, this backend exists for development only.
func (h *HTTPHandler) Login(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	if req.Name == "" {
		req.Name = req.UserID
	}

	h.store.UpsertUser(domain.User{ID: req.UserID, Name: req.Name, Avatar: req.Avatar})

	tok, err := token.GenerateJWT(req.UserID, "chatd")
	if err != nil {
		logger.Log.Errorf("generate token:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "token generation failed"})
	}

	return c.JSON(fiber.Map{"token": tok})
}

// ListUsers GET /users
func (h *HTTPHandler) ListUsers(c *fiber.Ctx) error {
	return c.JSON(h.store.Users())
}

// GetMessages GET /chat/messages/:sender/:receiver
func (h *HTTPHandler) GetMessages(c *fiber.Ctx) error {
	sender := c.Params("sender")
	receiver := c.Params("receiver")
	if sender == "" || receiver == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sender and receiver required"})
	}

	msgs := h.store.PairMessages(sender, receiver)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// PostMessage POST /chat/messages, persists the message, assigns the
// server id and pushes it to both parties' live connections.
func (h *HTTPHandler) PostMessage(c *fiber.Ctx) error {
	var payload domain.SendPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if payload.Sender == "" || payload.Recipient == "" || payload.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sender, user and message required"})
	}
	if userID, ok := c.Locals("UserID").(string); !ok || userID != payload.Sender {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "sender does not match token"})
	}

	msg := h.store.Append(domain.Message{
		SenderID:    payload.Sender,
		RecipientID: payload.Recipient,
		Body:        payload.Body,
		Timestamp:   payload.Timestamp,
	})

	h.hub.Push(msg.RecipientID, domain.EventMessage, msg)
	// other devices of the sender catch up too
	h.hub.Push(msg.SenderID, domain.EventMessage, msg)

	logger.Log.Debug("message stored",
		zap.String("id", msg.ID), zap.String("sender", msg.SenderID))
	return c.JSON(fiber.Map{"message": msg})
}

// MarkRead PUT /chat/messages/read
func (h *HTTPHandler) MarkRead(c *fiber.Ctx) error {
	var req struct {
		Messages []string `json:"messages"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	updated := h.store.MarkRead(req.Messages)
	return c.JSON(fiber.Map{"updated": updated})
}

// ListChats GET /chat/chats
func (h *HTTPHandler) ListChats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"chats": h.store.ChatRecords()})
}
