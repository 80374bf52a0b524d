package router

import (
	"gourdtalk_client/internal/backend/app"
	"gourdtalk_client/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes wires the REST surface and the websocket endpoint.
func RegisterRoutes(r *fiber.App, h *app.HTTPHandler, ws *app.WebsocketHandler) {
	r.Post("/login", h.Login)

	authed := r.Group("/", middlewares.JWTMiddleware())

	authed.Get("/users", h.ListUsers)
	authed.Get("/chat/chats", h.ListChats)
	authed.Get("/chat/messages/:sender/:receiver", h.GetMessages)
	authed.Post("/chat/messages", h.PostMessage)
	authed.Put("/chat/messages/read", h.MarkRead)

	authed.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(c)
	}))
}
