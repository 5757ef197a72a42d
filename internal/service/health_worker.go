package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHealthCheckInterval = time.Minute
	healthCheckTimeout         = 10 * time.Second
)

// HealthWorker periodically checks the active provider and remembers the
// last answer.
type HealthWorker struct {
	gateway  Gateway
	interval time.Duration
	healthy  atomic.Bool
	logger   *zap.Logger
}

func NewHealthWorker(gateway Gateway, interval time.Duration, logger *zap.Logger) *HealthWorker {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	return &HealthWorker{
		gateway:  gateway,
		interval: interval,
		logger:   logger.Named("health_worker"),
	}
}

func (w *HealthWorker) Start(ctx context.Context) {
	w.logger.Info("Started", zap.Duration("interval", w.interval))

	// Initial check
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check pings the provider once and logs transitions between healthy and
// unhealthy.
func (w *HealthWorker) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	healthy := w.gateway.IsHealthy(checkCtx)
	previous := w.healthy.Swap(healthy)

	fields := []zap.Field{
		zap.String("provider", w.gateway.ProviderName()),
		zap.Bool("healthy", healthy),
	}
	switch {
	case !healthy:
		w.logger.Warn("Video provider is unhealthy", fields...)
	case !previous:
		w.logger.Info("Video provider is healthy", fields...)
	default:
		w.logger.Debug("Video provider is healthy", fields...)
	}

	return healthy
}

// Healthy returns the result of the last check.
func (w *HealthWorker) Healthy() bool {
	return w.healthy.Load()
}
