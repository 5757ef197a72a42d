package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/provider"
)

// Gateway is the workflow's view of the active provider. Failures are logged
// and reported as a missing result, never as errors.
type Gateway interface {
	ProviderName() string
	SubmitJob(ctx context.Context, g *model.Generation) *provider.SubmitResult
	// GetJobStatus returns the normalized status of the generation's job.
	GetJobStatus(ctx context.Context, g *model.Generation) (model.GenerationState, bool)
	GetJobResult(ctx context.Context, g *model.Generation) *provider.JobResult
	CancelJob(ctx context.Context, g *model.Generation) bool
	IsHealthy(ctx context.Context) bool
}

type ProviderGateway struct {
	provider provider.Provider
	logger   *zap.Logger
}

func NewProviderGateway(p provider.Provider, logger *zap.Logger) *ProviderGateway {
	return &ProviderGateway{
		provider: p,
		logger:   logger.Named("gateway"),
	}
}

func (gw *ProviderGateway) ProviderName() string {
	return gw.provider.Name()
}

func (gw *ProviderGateway) SubmitJob(ctx context.Context, g *model.Generation) *provider.SubmitResult {
	result, err := gw.provider.SubmitJob(ctx, g)
	if err != nil {
		gw.logFailure("Failed to submit video generation job", g, "", err)
		return nil
	}
	return result
}

func (gw *ProviderGateway) GetJobStatus(ctx context.Context, g *model.Generation) (model.GenerationState, bool) {
	raw, err := gw.provider.GetJobStatus(ctx, g)
	if err != nil {
		gw.logFailure("Failed to get video generation job status", g, jobIDOf(g), err)
		return "", false
	}

	status := gw.provider.NormalizeStatus(raw)
	if !status.IsNormalized() {
		gw.logger.Warn("Provider mapped status outside the normalized set",
			zap.String("generation_id", g.ID.String()),
			zap.String("provider", gw.provider.Name()),
			zap.String("raw_status", raw),
			zap.String("status", string(status)),
		)
		return model.StateSubmitted, true
	}
	return status, true
}

func (gw *ProviderGateway) GetJobResult(ctx context.Context, g *model.Generation) *provider.JobResult {
	jobID := jobIDOf(g)
	result, err := gw.provider.GetJobResult(ctx, jobID)
	if err != nil {
		gw.logFailure("Failed to get video generation job result", g, jobID, err)
		return nil
	}
	return result
}

func (gw *ProviderGateway) CancelJob(ctx context.Context, g *model.Generation) bool {
	jobID := jobIDOf(g)
	ok, err := gw.provider.CancelJob(ctx, jobID)
	if err != nil {
		gw.logFailure("Failed to cancel video generation job", g, jobID, err)
		return false
	}
	return ok
}

func (gw *ProviderGateway) IsHealthy(ctx context.Context) bool {
	return gw.provider.IsHealthy(ctx)
}

func (gw *ProviderGateway) logFailure(msg string, g *model.Generation, jobID string, err error) {
	gw.logger.Error(msg,
		zap.String("generation_id", g.ID.String()),
		zap.String("provider", gw.provider.Name()),
		zap.String("external_job_id", jobID),
		zap.Error(err),
	)
}

func jobIDOf(g *model.Generation) string {
	if g.ExternalJobID == nil {
		return ""
	}
	return *g.ExternalJobID
}
