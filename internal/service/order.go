package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

var ErrInvalidOrder = errors.New("invalid order")

type OrderResult struct {
	CreditedTokens int64 `json:"credited_tokens"`
	Submitted      int   `json:"submitted"`
}

// OrderService reacts to completed commerce orders.
type OrderService struct {
	generations GenerationStore
	wallets     *WalletService
	workflow    *WorkflowManager
	logger      *zap.Logger
}

func NewOrderService(generations GenerationStore, wallets *WalletService, workflow *WorkflowManager, logger *zap.Logger) *OrderService {
	return &OrderService{
		generations: generations,
		wallets:     wallets,
		workflow:    workflow,
		logger:      logger.Named("order"),
	}
}

// Complete credits the token packs of the order, once per order number,
// records which order line funds each referenced generation and submits the
// ones still waiting for submission.
func (s *OrderService) Complete(ctx context.Context, order model.Order) (*OrderResult, error) {
	if order.Number == "" || order.AccountID == 0 {
		return nil, ErrInvalidOrder
	}

	result := &OrderResult{}

	if tokens := order.TokenTotal(); tokens > 0 {
		_, applied, err := s.wallets.CreditOnce(ctx, order.AccountID, tokens, "Order #"+order.Number, "order:"+order.Number)
		if err != nil {
			return nil, fmt.Errorf("failed to credit order %s: %w", order.Number, err)
		}
		if applied {
			result.CreditedTokens = tokens
		}
	}

	for _, item := range order.Items {
		if item.Type != model.OrderItemTypeVideoGeneration || item.GenerationID == nil {
			continue
		}

		g, err := s.generations.GetGeneration(ctx, *item.GenerationID)
		if errors.Is(err, repository.ErrGenerationNotFound) {
			s.logger.Warn("Order references unknown generation",
				zap.String("order", order.Number),
				zap.String("generation_id", item.GenerationID.String()),
			)
			continue
		}
		if err != nil {
			return result, err
		}

		if item.ID != "" {
			g, err = s.generations.LinkOrderItem(ctx, g.ID, item.ID)
			if errors.Is(err, repository.ErrOrderItemConflict) {
				s.logger.Warn("Generation is funded by another order item",
					zap.String("order", order.Number),
					zap.String("order_item_id", item.ID),
					zap.String("generation_id", item.GenerationID.String()),
				)
				continue
			}
			if err != nil {
				return result, fmt.Errorf("failed to link order item %s: %w", item.ID, err)
			}
		}

		if !g.Can(model.TransitionSubmit) {
			continue
		}

		ok, err := s.workflow.SubmitToProvider(ctx, g)
		if ok {
			result.Submitted++
		}
		if err != nil {
			s.logger.Error("Failed to submit video generation",
				zap.String("order", order.Number),
				zap.String("generation_id", g.ID.String()),
				zap.Error(err),
			)
		}
	}

	return result, nil
}
