package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Guiziweb/VideoAiStudio/internal/middleware"
	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

type CreateGenerationRequest struct {
	Prompt  string `json:"prompt"`
	Channel string `json:"channel"`
}

type GenerationResponse struct {
	*model.Generation
	Status string `json:"status"`
}

func newGenerationResponse(g *model.Generation) GenerationResponse {
	return GenerationResponse{Generation: g, Status: g.CustomerStatus()}
}

func (h *Handler) channel(requested string) string {
	if requested != "" {
		return requested
	}
	return h.cfg.Video.DefaultChannel
}

// GetEligibility tells whether the caller can pay for one generation
func (h *Handler) GetEligibility(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)
	channel := h.channel(c.Query("channel"))

	cost, err := h.pricingSvc.GenerationCost(c.Context(), channel)
	if err != nil {
		return h.fail(c, err, "failed to load price")
	}

	eligible, err := h.paymentSvc.CanGenerate(c.Context(), accountID, channel)
	if err != nil {
		return h.fail(c, err, "failed to check eligibility")
	}

	return c.JSON(fiber.Map{
		"eligible":     eligible,
		"cost":         cost,
		"payment_type": h.paymentSvc.Type(),
	})
}

// CreateGeneration charges the caller and starts a generation
func (h *Handler) CreateGeneration(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)

	var req CreateGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	g, err := h.generationSvc.Create(c.Context(), accountID, req.Prompt, h.channel(req.Channel))
	if err != nil {
		return h.fail(c, err, "failed to create generation")
	}

	return c.Status(fiber.StatusCreated).JSON(newGenerationResponse(g))
}

func (h *Handler) ListGenerations(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	generations, err := h.generationSvc.List(c.Context(), accountID, limit)
	if err != nil {
		return h.fail(c, err, "failed to list generations")
	}

	items := make([]GenerationResponse, 0, len(generations))
	for i := range generations {
		items = append(items, newGenerationResponse(&generations[i]))
	}

	return c.JSON(fiber.Map{
		"generations": items,
	})
}

func (h *Handler) GetGeneration(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid generation id",
		})
	}

	g, err := h.generationSvc.Get(c.Context(), middleware.GetAccountID(c), id)
	if err != nil {
		return h.fail(c, err, "failed to load generation")
	}

	return c.JSON(newGenerationResponse(g))
}
