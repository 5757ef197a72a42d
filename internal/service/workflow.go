package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/provider"
)

const (
	failureProviderJobFailed = "Provider job failed"
	failureCancelled         = "Cancelled"
)

var errTransitionNotAllowed = errors.New("transition not allowed")

// Notifier is told about generations that reached COMPLETED or FAILED
// (implemented by telegram.Bot).
type Notifier interface {
	NotifyGenerationFinished(g *model.Generation) error
}

// WorkflowManager is the only writer of a generation's workflow state. Every
// transition is checked and applied under the generation's row lock.
//
// Methods report an illegal transition as false with a nil error. Errors are
// reserved for persistence failures. On success the passed generation is
// replaced by the persisted row.
type WorkflowManager struct {
	generations GenerationStore
	gateway     Gateway
	scheduler   Scheduler
	wallets     *WalletService
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewWorkflowManager(
	generations GenerationStore,
	gateway Gateway,
	scheduler Scheduler,
	wallets *WalletService,
	logger *zap.Logger,
) *WorkflowManager {
	return &WorkflowManager{
		generations: generations,
		gateway:     gateway,
		scheduler:   scheduler,
		wallets:     wallets,
		logger:      logger.Named("workflow"),
		now:         time.Now,
	}
}

// SetNotifier sets the notifier for finished generations
func (m *WorkflowManager) SetNotifier(notifier Notifier) {
	m.notifier = notifier
}

// SubmitToProvider sends a CREATED generation to the provider and schedules
// its first status check. When the provider rejects the job the generation
// stays CREATED with no external fields, so the call can simply be retried.
//
// If scheduling fails the submission still stands: true is returned together
// with the error.
func (m *WorkflowManager) SubmitToProvider(ctx context.Context, g *model.Generation) (bool, error) {
	if !g.Can(model.TransitionSubmit) {
		return false, nil
	}

	result := m.gateway.SubmitJob(ctx, g)
	if result == nil {
		return false, nil
	}

	submittedAt := m.now()
	ok, err := m.transition(ctx, g, model.TransitionSubmit, func(cur *model.Generation) {
		providerName := result.Provider
		if providerName == "" {
			providerName = m.gateway.ProviderName()
		}
		jobID := result.JobID
		cur.ExternalProvider = &providerName
		cur.ExternalJobID = &jobID
		cur.ExternalSubmittedAt = &submittedAt
		cur.ExternalMetadata = result.Metadata
	})
	if !ok || err != nil {
		m.cancelOrphan(ctx, g, result.JobID)
		return false, err
	}

	if err := m.scheduler.Schedule(ctx, g.ID); err != nil {
		m.logger.Error("Failed to schedule status check",
			zap.String("generation_id", g.ID.String()),
			zap.Error(err),
		)
		return true, err
	}

	return true, nil
}

// ResumePolling queues a status check for an in-progress generation that
// holds a provider job. It is how a generation whose check could not be
// scheduled gets polled again.
func (m *WorkflowManager) ResumePolling(ctx context.Context, g *model.Generation) (bool, error) {
	if !g.IsInProgress() || !g.HasExternalJob() {
		return false, nil
	}
	if err := m.scheduler.Schedule(ctx, g.ID); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateFromProvider asks the provider for the job status and applies the
// matching transition. A status only moves the generation along an edge
// leaving its current state, so stale or duplicated reports are no-ops.
func (m *WorkflowManager) UpdateFromProvider(ctx context.Context, g *model.Generation) (bool, error) {
	status, ok := m.gateway.GetJobStatus(ctx, g)
	if !ok {
		return false, nil
	}

	switch status {
	case model.StateProcessing:
		if g.State == model.StateSubmitted {
			return m.MarkAsProcessing(ctx, g)
		}
	case model.StateCompleted:
		if g.State == model.StateProcessing {
			return m.MarkAsCompleted(ctx, g)
		}
	case model.StateFailed:
		if g.State == model.StateSubmitted || g.State == model.StateProcessing {
			return m.MarkAsFailed(ctx, g, failureProviderJobFailed)
		}
	}

	return false, nil
}

func (m *WorkflowManager) MarkAsProcessing(ctx context.Context, g *model.Generation) (bool, error) {
	return m.transition(ctx, g, model.TransitionStartProcessing, nil)
}

// MarkAsCompleted fetches the job result, best effort, and completes the
// generation with its video URL.
func (m *WorkflowManager) MarkAsCompleted(ctx context.Context, g *model.Generation) (bool, error) {
	if !g.Can(model.TransitionComplete) {
		return false, nil
	}

	var result *provider.JobResult
	if g.HasExternalJob() {
		result = m.gateway.GetJobResult(ctx, g)
	}

	ok, err := m.transition(ctx, g, model.TransitionComplete, func(cur *model.Generation) {
		if result == nil {
			return
		}
		if result.VideoURL != "" {
			url := result.VideoURL
			cur.VideoStorageURL = &url
		}
		if result.Metadata != nil {
			cur.ExternalMetadata = cur.ExternalMetadata.Merge(model.Metadata{"result": result.Metadata})
		}
	})
	if ok {
		m.notify(g)
	}
	return ok, err
}

func (m *WorkflowManager) MarkAsFailed(ctx context.Context, g *model.Generation, reason string) (bool, error) {
	ok, err := m.transition(ctx, g, model.TransitionFail, func(cur *model.Generation) {
		msg := reason
		cur.ExternalErrorMessage = &msg
	})
	if ok {
		m.notify(g)
	}
	return ok, err
}

// Refund returns the tokens of a FAILED generation to its owner and marks it
// REFUNDED. The credit is keyed on the generation, so a retried refund never
// pays twice.
func (m *WorkflowManager) Refund(ctx context.Context, g *model.Generation) (bool, error) {
	if !g.Can(model.TransitionRefund) {
		return false, nil
	}

	if g.TokenCost > 0 {
		_, _, err := m.wallets.CreditOnce(ctx, g.AccountID, g.TokenCost, refundReference(g), refundKey(g))
		if err != nil {
			return false, fmt.Errorf("failed to credit refund: %w", err)
		}
	}

	ok, err := m.transition(ctx, g, model.TransitionRefund, nil)
	if ok {
		m.notify(g)
	}
	return ok, err
}

// Cancel stops an in-progress job at the provider and fails the generation.
// Nothing changes when the provider refuses.
func (m *WorkflowManager) Cancel(ctx context.Context, g *model.Generation) (bool, error) {
	if !g.IsInProgress() {
		return false, nil
	}
	if !m.gateway.CancelJob(ctx, g) {
		return false, nil
	}
	return m.MarkAsFailed(ctx, g, failureCancelled)
}

// Abandon gives up on an in-progress generation: the provider job is
// cancelled best effort and the generation fails with reason.
func (m *WorkflowManager) Abandon(ctx context.Context, g *model.Generation, reason string) (bool, error) {
	if !g.IsInProgress() {
		return false, nil
	}
	if g.HasExternalJob() {
		m.gateway.CancelJob(ctx, g)
	}
	return m.MarkAsFailed(ctx, g, reason)
}

// transition applies t and mutate to the locked row. mutate only runs when t
// is allowed from the persisted state.
func (m *WorkflowManager) transition(ctx context.Context, g *model.Generation, t model.Transition, mutate func(cur *model.Generation)) (bool, error) {
	updated, err := m.generations.UpdateGeneration(ctx, g.ID, func(cur *model.Generation) error {
		if !cur.Apply(t) {
			return errTransitionNotAllowed
		}
		if mutate != nil {
			mutate(cur)
		}
		return nil
	})
	if errors.Is(err, errTransitionNotAllowed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply %s to generation %s: %w", t, g.ID, err)
	}

	*g = *updated
	return true, nil
}

func (m *WorkflowManager) cancelOrphan(ctx context.Context, g *model.Generation, jobID string) {
	orphan := *g
	orphan.ExternalJobID = &jobID
	if !m.gateway.CancelJob(ctx, &orphan) {
		m.logger.Warn("Could not cancel orphaned provider job",
			zap.String("generation_id", g.ID.String()),
			zap.String("external_job_id", jobID),
		)
	}
}

func (m *WorkflowManager) notify(g *model.Generation) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyGenerationFinished(g); err != nil {
		m.logger.Warn("Failed to send generation notification",
			zap.String("generation_id", g.ID.String()),
			zap.Error(err),
		)
	}
}

func refundReference(g *model.Generation) string {
	return "Refund generation " + g.ID.String()
}

func refundKey(g *model.Generation) string {
	return "refund:" + g.ID.String()
}
