package main

import (
	"gourdtalk_client/internal/backend/app"
	"gourdtalk_client/internal/backend/repository"
	"gourdtalk_client/internal/backend/router"
	"gourdtalk_client/pkg/config"
	"gourdtalk_client/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatDaemon, config.EnvConfig.ChatDaemonLogPath)
	cfg := config.LoadConfig[config.Backend](config.EnvConfig.ChatDaemon, config.EnvConfig.ChatDaemonYAMLPath)

	store := repository.NewChatStore()
	hub := app.NewHub()

	httpHandler := app.NewHTTPHandler(store, hub)
	wsHandler := app.NewWebsocketHandler(store, hub)

	fiberApp := fiber.New()
	fiberApp.Use(fiber_log.New())
	router.RegisterRoutes(fiberApp, httpHandler, wsHandler)

	logger.Log.Infof("chatd listening on port", cfg.Port)
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		logger.Log.Fatal("chatd stopped: " + err.Error())
	}
}
