package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

// OrderCompleted is called by the commerce system once an order is paid
func (h *Handler) OrderCompleted(c *fiber.Ctx) error {
	var order model.Order
	if err := c.BodyParser(&order); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid order payload",
		})
	}

	result, err := h.orderSvc.Complete(c.Context(), order)
	if err != nil {
		return h.fail(c, err, "failed to complete order")
	}

	return c.JSON(result)
}

func (h *Handler) SubmitGeneration(c *fiber.Ctx) error {
	return h.applyToGeneration(c, h.generationSvc.Submit)
}

func (h *Handler) RefundGeneration(c *fiber.Ctx) error {
	return h.applyToGeneration(c, h.generationSvc.Refund)
}

func (h *Handler) CancelGeneration(c *fiber.Ctx) error {
	return h.applyToGeneration(c, h.generationSvc.Cancel)
}

func (h *Handler) applyToGeneration(c *fiber.Ctx, fn func(context.Context, uuid.UUID) (*model.Generation, bool, error)) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid generation id",
		})
	}

	g, applied, err := fn(c.Context(), id)
	if err != nil && applied {
		// The transition is saved; only its follow-up failed.
		h.logger.Warn("Generation updated with errors",
			zap.String("generation_id", id.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"applied":    true,
			"warning":    err.Error(),
			"generation": newGenerationResponse(g),
		})
	}
	if err != nil {
		return h.fail(c, err, "failed to update generation")
	}

	status := fiber.StatusOK
	if !applied {
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(fiber.Map{
		"applied":    applied,
		"generation": newGenerationResponse(g),
	})
}
