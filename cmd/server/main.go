package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/config"
	"github.com/Guiziweb/VideoAiStudio/internal/handler"
	"github.com/Guiziweb/VideoAiStudio/internal/logger"
	"github.com/Guiziweb/VideoAiStudio/internal/middleware"
	"github.com/Guiziweb/VideoAiStudio/internal/provider"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
	"github.com/Guiziweb/VideoAiStudio/internal/service"
	"github.com/Guiziweb/VideoAiStudio/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	// Connect to database
	repo, err := repository.New(cfg.Database.DSN())
	if err != nil {
		zl.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	var backend provider.Provider
	switch cfg.Video.Provider {
	case config.ProviderRunPod:
		backend = provider.NewRunPod(cfg.RunPod.BaseURL, cfg.RunPod.APIKey, cfg.RunPod.EndpointID, cfg.RunPod.RequestTimeout)
	default:
		backend = provider.NewMock()
	}
	gateway := service.NewProviderGateway(backend, zl)

	// Create services
	scheduler := service.NewStatusScheduler(repo, cfg.Video.StatusCheckDelay)
	accountSvc := service.NewAccountService(repo, repo)
	walletSvc := service.NewWalletService(repo)
	pricingSvc := service.NewPricingService(repo)
	paymentSvc := service.NewWalletPayment(walletSvc, pricingSvc)
	workflow := service.NewWorkflowManager(repo, gateway, scheduler, walletSvc, zl)
	generationSvc := service.NewGenerationService(repo, paymentSvc, pricingSvc, walletSvc, workflow, zl)
	orderSvc := service.NewOrderService(repo, walletSvc, workflow, zl)

	statusHandler := service.NewStatusCheckHandler(repo, workflow, scheduler, cfg.Video.StatusCheckMaxTries, zl)
	statusWorker := service.NewStatusWorker(repo, statusHandler, cfg.Video.QueuePollInterval, cfg.Video.QueueBatchSize, cfg.Video.QueueLease, zl)
	healthWorker := service.NewHealthWorker(gateway, cfg.Video.HealthCheckInterval, zl)

	// Create Telegram bot
	var bot *telegram.Bot
	if cfg.Telegram.BotToken != "" {
		bot, err = telegram.NewBot(cfg, accountSvc, walletSvc, generationSvc, zl)
		if err != nil {
			zl.Warn("Failed to create Telegram bot", zap.Error(err))
		} else {
			workflow.SetNotifier(bot)
			zl.Info("Telegram bot initialized", zap.String("username", bot.GetBotUsername()))
		}
	}

	h := handler.New(cfg, repo, accountSvc, walletSvc, pricingSvc, paymentSvc, generationSvc, orderSvc, gateway, healthWorker, zl)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Telegram-Init-Data, " + middleware.WebhookSecretHeader,
	}))

	h.Register(app)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if bot != nil {
		go bot.StartPolling(ctx)
		zl.Info("Telegram bot started with long polling")
	}

	go statusWorker.Start(ctx)
	go healthWorker.Start(ctx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zl.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	}()

	zl.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("provider", gateway.ProviderName()),
	)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		zl.Fatal("Failed to start server", zap.Error(err))
	}
}
