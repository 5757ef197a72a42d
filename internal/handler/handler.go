package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/config"
	"github.com/Guiziweb/VideoAiStudio/internal/middleware"
	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
	"github.com/Guiziweb/VideoAiStudio/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg           *config.Config
	db            Pinger
	accountSvc    *service.AccountService
	walletSvc     *service.WalletService
	pricingSvc    *service.PricingService
	paymentSvc    *service.WalletPayment
	generationSvc *service.GenerationService
	orderSvc      *service.OrderService
	providerName  string
	healthWorker  *service.HealthWorker
	logger        *zap.Logger
}

func New(
	cfg *config.Config,
	db Pinger,
	accountSvc *service.AccountService,
	walletSvc *service.WalletService,
	pricingSvc *service.PricingService,
	paymentSvc *service.WalletPayment,
	generationSvc *service.GenerationService,
	orderSvc *service.OrderService,
	gateway service.Gateway,
	healthWorker *service.HealthWorker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cfg:           cfg,
		db:            db,
		accountSvc:    accountSvc,
		walletSvc:     walletSvc,
		pricingSvc:    pricingSvc,
		paymentSvc:    paymentSvc,
		generationSvc: generationSvc,
		orderSvc:      orderSvc,
		providerName:  gateway.ProviderName(),
		healthWorker:  healthWorker,
		logger:        logger.Named("http"),
	}
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api", middleware.TelegramAuth(h.cfg))
	api.Get("/wallet", h.GetWallet)
	api.Get("/wallet/transactions", h.GetWalletTransactions)
	api.Get("/generations/eligibility", h.GetEligibility)
	api.Post("/generations", h.CreateGeneration)
	api.Get("/generations", h.ListGenerations)
	api.Get("/generations/:id", h.GetGeneration)

	webhook := app.Group("/webhook", middleware.WebhookSecret(h.cfg.Server.WebhookSecret))
	webhook.Post("/order/completed", h.OrderCompleted)

	internal := app.Group("/internal", middleware.WebhookSecret(h.cfg.Server.WebhookSecret))
	internal.Post("/generations/:id/submit", h.SubmitGeneration)
	internal.Post("/generations/:id/refund", h.RefundGeneration)
	internal.Post("/generations/:id/cancel", h.CancelGeneration)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	code := fiber.StatusOK
	status := "ok"
	database := "ok"
	if err := h.db.Ping(c.Context()); err != nil {
		h.logger.Error("Database ping failed", zap.Error(err))
		code = fiber.StatusServiceUnavailable
		status = "unavailable"
		database = "unavailable"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":           status,
		"database":         database,
		"provider":         h.providerName,
		"provider_healthy": h.healthWorker.Healthy(),
	})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, service.ErrNotConfigured):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, repository.ErrGenerationNotFound),
		errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, model.ErrInvalidAmount):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"error": msg,
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
