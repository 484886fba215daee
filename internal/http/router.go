package http

import (
	"time"

	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/http/handlers"
	"github.com/collab-platform/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	userHandler *handlers.UserHandler,
	negotiationHandler *handlers.NegotiationHandler,
	paymentHandler *handlers.PaymentHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Put("/me/device-token", userHandler.UpdateDeviceToken)

	// Negotiations
	protected.Post("/negotiations", negotiationHandler.Create)
	protected.Get("/negotiations", negotiationHandler.List)
	protected.Get("/negotiations/:id", negotiationHandler.Get)
	protected.Post("/negotiations/:id/actions", negotiationHandler.Act)
	protected.Get("/negotiations/:id/messages", negotiationHandler.Messages)
	protected.Get("/negotiations/:id/rounds", negotiationHandler.Rounds)
	protected.Get("/negotiations/:id/ledger", negotiationHandler.Ledger)

	// Payment gateway callback (authenticated: the payer's client posts
	// the checkout result; the signature is what proves authenticity)
	protected.Post("/payments/callback", paymentHandler.Callback)

	// Admin settlement console
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Get("/negotiations", adminHandler.Queue)
	admin.Post("/negotiations/:id/actions", adminHandler.Act)
	admin.Get("/commission", adminHandler.GetCommission)
	admin.Put("/commission", adminHandler.SetCommission)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
