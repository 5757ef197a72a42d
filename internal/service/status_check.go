package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

const failureAttemptsExhausted = "Status check attempts exhausted"

// StatusCheckHandler runs one queued status check. A generation that is still
// in progress afterwards, or whose check failed, is always rescheduled unless
// maxAttempts is positive and reached.
type StatusCheckHandler struct {
	generations GenerationStore
	workflow    *WorkflowManager
	scheduler   Scheduler
	maxAttempts int
	logger      *zap.Logger
}

func NewStatusCheckHandler(
	generations GenerationStore,
	workflow *WorkflowManager,
	scheduler Scheduler,
	maxAttempts int,
	logger *zap.Logger,
) *StatusCheckHandler {
	return &StatusCheckHandler{
		generations: generations,
		workflow:    workflow,
		scheduler:   scheduler,
		maxAttempts: maxAttempts,
		logger:      logger.Named("status_check"),
	}
}

// Handle returns an error only when the follow-up check could not be queued;
// the caller should then keep the current check for redelivery.
func (h *StatusCheckHandler) Handle(ctx context.Context, check model.StatusCheck) (err error) {
	g, err := h.generations.GetGeneration(ctx, check.GenerationID)
	if errors.Is(err, repository.ErrGenerationNotFound) {
		return nil
	}
	if err != nil {
		h.logger.Error("Failed to load video generation",
			zap.String("generation_id", check.GenerationID.String()),
			zap.Error(err),
		)
		return h.retry(ctx, check, nil)
	}

	if !g.HasExternalJob() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Failed to check video generation status",
				zap.String("generation_id", g.ID.String()),
				zap.Any("panic", r),
			)
			err = h.retry(ctx, check, g)
		}
	}()

	if _, updateErr := h.workflow.UpdateFromProvider(ctx, g); updateErr != nil {
		h.logger.Error("Failed to check video generation status",
			zap.String("generation_id", g.ID.String()),
			zap.Error(updateErr),
		)
		return h.retry(ctx, check, g)
	}

	if g.IsInProgress() {
		return h.retry(ctx, check, g)
	}

	if g.IsFinalState() {
		h.logger.Info("Video generation reached final state",
			zap.String("generation_id", g.ID.String()),
			zap.String("final_state", string(g.State)),
		)
	}
	return nil
}

// RequeueStalled queues a check for every in-progress generation that lost
// its check, for instance when scheduling failed right after submission.
func (h *StatusCheckHandler) RequeueStalled(ctx context.Context, limit int) (int, error) {
	generations, err := h.generations.ListUnpolledGenerations(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpolled generations: %w", err)
	}

	requeued := 0
	for i := range generations {
		g := &generations[i]
		ok, err := h.workflow.ResumePolling(ctx, g)
		if err != nil {
			h.logger.Error("Failed to requeue status check",
				zap.String("generation_id", g.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			h.logger.Warn("Requeued status check of stalled video generation",
				zap.String("generation_id", g.ID.String()),
				zap.String("state", string(g.State)),
			)
			requeued++
		}
	}
	return requeued, nil
}

// retry queues the next check, or abandons the generation once the attempt
// limit is hit. g may be nil when the generation could not be loaded.
func (h *StatusCheckHandler) retry(ctx context.Context, check model.StatusCheck, g *model.Generation) error {
	if h.maxAttempts > 0 && check.Attempt >= h.maxAttempts && g != nil && g.IsInProgress() {
		h.logger.Warn("Giving up on video generation",
			zap.String("generation_id", g.ID.String()),
			zap.Int("attempts", check.Attempt),
		)
		if _, err := h.workflow.Abandon(ctx, g, failureAttemptsExhausted); err != nil {
			h.logger.Error("Failed to abandon video generation",
				zap.String("generation_id", g.ID.String()),
				zap.Error(err),
			)
			return h.reschedule(ctx, check.GenerationID, check.Attempt+1)
		}
		return nil
	}

	return h.reschedule(ctx, check.GenerationID, check.Attempt+1)
}

func (h *StatusCheckHandler) reschedule(ctx context.Context, generationID uuid.UUID, attempt int) error {
	if err := h.scheduler.ScheduleAttempt(ctx, generationID, attempt); err != nil {
		return fmt.Errorf("generation %s: %w", generationID, err)
	}
	return nil
}
