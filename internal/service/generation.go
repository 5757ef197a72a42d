package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

var ErrEmptyPrompt = errors.New("prompt must not be empty")

const generationChargeReason = "Video generation"

type GenerationService struct {
	generations GenerationStore
	payment     *WalletPayment
	pricing     *PricingService
	wallets     *WalletService
	workflow    *WorkflowManager
	logger      *zap.Logger
}

func NewGenerationService(
	generations GenerationStore,
	payment *WalletPayment,
	pricing *PricingService,
	wallets *WalletService,
	workflow *WorkflowManager,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		generations: generations,
		payment:     payment,
		pricing:     pricing,
		wallets:     wallets,
		workflow:    workflow,
		logger:      logger.Named("generation"),
	}
}

// Create charges the account for one generation, records it as CREATED and
// submits it. Wallet payment completes the order at once, so submission
// happens in the same call; a provider that refuses the job leaves the
// generation CREATED for a later Submit.
func (s *GenerationService) Create(ctx context.Context, accountID int64, prompt, channel string) (*model.Generation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	cost, err := s.pricing.GenerationCost(ctx, channel)
	if err != nil {
		return nil, err
	}

	eligible, err := s.payment.CanGenerate(ctx, accountID, channel)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, model.ErrInsufficientFunds
	}

	g := &model.Generation{
		ID:        uuid.New(),
		AccountID: accountID,
		Prompt:    prompt,
		TokenCost: cost,
		State:     model.StateCreated,
	}

	txID, err := s.payment.Charge(ctx, accountID, cost, generationChargeReason)
	if err != nil {
		return nil, err
	}
	paymentType := s.payment.Type()
	g.PaymentTransactionID = &txID
	g.PaymentType = &paymentType

	if err := s.generations.CreateGeneration(ctx, g); err != nil {
		if _, _, refundErr := s.wallets.CreditOnce(ctx, accountID, cost, refundReference(g), refundKey(g)); refundErr != nil {
			s.logger.Error("Failed to return tokens of unsaved generation",
				zap.String("generation_id", g.ID.String()),
				zap.Int64("account_id", accountID),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}

	if _, err := s.workflow.SubmitToProvider(ctx, g); err != nil {
		s.logger.Error("Failed to submit video generation",
			zap.String("generation_id", g.ID.String()),
			zap.Error(err),
		)
	}

	return g, nil
}

// Get returns a generation owned by accountID.
func (s *GenerationService) Get(ctx context.Context, accountID int64, id uuid.UUID) (*model.Generation, error) {
	g, err := s.generations.GetGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.AccountID != accountID {
		return nil, repository.ErrGenerationNotFound
	}
	return g, nil
}

func (s *GenerationService) List(ctx context.Context, accountID int64, limit int) ([]model.Generation, error) {
	return s.generations.ListGenerationsByAccount(ctx, accountID, clampLimit(limit))
}

// Submit retries the submission of a CREATED generation. For a generation
// already at the provider it queues a new status check instead.
func (s *GenerationService) Submit(ctx context.Context, id uuid.UUID) (*model.Generation, bool, error) {
	return s.apply(ctx, id, func(ctx context.Context, g *model.Generation) (bool, error) {
		if g.IsInProgress() {
			return s.workflow.ResumePolling(ctx, g)
		}
		return s.workflow.SubmitToProvider(ctx, g)
	})
}

func (s *GenerationService) Refund(ctx context.Context, id uuid.UUID) (*model.Generation, bool, error) {
	return s.apply(ctx, id, s.workflow.Refund)
}

func (s *GenerationService) Cancel(ctx context.Context, id uuid.UUID) (*model.Generation, bool, error) {
	return s.apply(ctx, id, s.workflow.Cancel)
}

func (s *GenerationService) apply(ctx context.Context, id uuid.UUID, fn func(context.Context, *model.Generation) (bool, error)) (*model.Generation, bool, error) {
	g, err := s.generations.GetGeneration(ctx, id)
	if err != nil {
		return nil, false, err
	}
	ok, err := fn(ctx, g)
	return g, ok, err
}
