package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/gateway"
	"go-pos-engine/internal/handler"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/metrics"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/internal/service"
	"go-pos-engine/internal/worker"
	"go-pos-engine/internal/ws"
	"go-pos-engine/pkg/database"
	"go-pos-engine/pkg/jwt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	if !cfg.EnvFileLoaded {
		logger.Warn("no .env file found, relying on system environment variables")
	}

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// 2. Setup Database
	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	// Auto Migrate (use a dedicated migration tool in production)
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	auditEmitter := audit.NewEmitter(audit.NewGormSink(db), logger)
	mpesa := gateway.NewMpesaClient(gateway.Options{
		BaseURL:        cfg.MpesaBaseURL(),
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		Shortcode:      cfg.Mpesa.Shortcode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		Timeout:        cfg.Mpesa.Timeout,
	}, m, logger)

	deps := service.Deps{
		DB:       db,
		Gateway:  mpesa,
		Audit:    auditEmitter,
		Notifier: wsHub,
		Metrics:  m,
	}
	checkoutService := service.NewCheckoutService(deps)
	reconcileService := service.NewReconciliationService(deps)
	reversalService := service.NewReversalService(deps)
	queryService := service.NewQueryService(deps)

	txHandler := handler.NewTransactionHandler(checkoutService, reconcileService, reversalService, queryService)
	callbackHandler := handler.NewCallbackHandler(reconcileService, cfg.Mpesa.CallbackToken)
	signer := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer)

	// 6. Background reaper
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	reaper := worker.NewReaper(reconcileService, cfg.Reaper.PendingTTL, cfg.Reaper.Interval, m, logger)
	go reaper.Run(logging.ContextWithLogger(workerCtx, logger.Named("reaper")))

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	// Middleware
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS
	app.Use(middleware.Observability(logger, m))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			return c.Status(503).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// 8. Routes
	api := app.Group("/api/v1")
	handler.RegisterTransactionRoutes(api, txHandler, callbackHandler, signer, access.DefaultPolicy())

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Add(c)
		defer wsHub.Remove(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 9. Graceful Shutdown
	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			logger.Panic("server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopWorkers()
	if err := app.Shutdown(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	wsHub.Stop()
	auditEmitter.Close()

	logger.Info("server exited")
}
