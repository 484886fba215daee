package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/db"
	"github.com/collab-platform/backend/internal/events"
	apphttp "github.com/collab-platform/backend/internal/http"
	"github.com/collab-platform/backend/internal/http/handlers"
	"github.com/collab-platform/backend/internal/payments"
	"github.com/collab-platform/backend/internal/push"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/collab-platform/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	negRepo := repositories.NewNegotiationRepo(pool)
	agreementRepo := repositories.NewAgreementRepo(pool)
	messageRepo := repositories.NewMessageRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	commissionRepo := repositories.NewCommissionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	presence := events.NewRedisPresence(rdb)

	// External clients
	gateway := payments.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	var pushSender push.Sender = push.NoopSender{}
	if cfg.PushServiceURL != "" {
		pushSender = push.NewClient(cfg.PushServiceURL)
	}

	// Services
	notifier := services.NewNotifier(publisher, presence, pushSender, userRepo, log)
	commissionService := services.NewCommissionService(commissionRepo, cfg, log)
	escrowService := services.NewEscrowService(escrowRepo, ledgerRepo, log)
	negService := services.NewNegotiationService(
		pool, negRepo, agreementRepo, messageRepo, paymentRepo, escrowRepo, ledgerRepo,
		auditRepo, commissionService, escrowService, gateway, notifier, cfg, log,
	)

	// Handlers
	userHandler := handlers.NewUserHandler(userRepo, log)
	negotiationHandler := handlers.NewNegotiationHandler(negService, log)
	paymentHandler := handlers.NewPaymentHandler(negService, log)
	adminHandler := handlers.NewAdminHandler(negService, commissionService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, presence, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, userHandler, negotiationHandler, paymentHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
