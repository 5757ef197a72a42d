package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultQueuePollInterval = time.Second
	DefaultQueueLease        = 2 * time.Minute
	DefaultSweepInterval     = time.Minute

	sweepBatchSize = 100
)

// StatusWorker drains due status checks from the queue. Each claimed check is
// leased, handled concurrently and completed once handled; a check whose
// handling failed stays leased and is redelivered after the lease. On start
// and then every sweep interval it requeues in-progress generations that
// have no check left.
type StatusWorker struct {
	queue     StatusCheckQueue
	handler   *StatusCheckHandler
	interval  time.Duration
	batchSize int
	lease     time.Duration
	sweep     time.Duration
	logger    *zap.Logger
}

func NewStatusWorker(
	queue StatusCheckQueue,
	handler *StatusCheckHandler,
	interval time.Duration,
	batchSize int,
	lease time.Duration,
	logger *zap.Logger,
) *StatusWorker {
	if interval <= 0 {
		interval = DefaultQueuePollInterval
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if lease <= 0 {
		lease = DefaultQueueLease
	}
	return &StatusWorker{
		queue:     queue,
		handler:   handler,
		interval:  interval,
		batchSize: batchSize,
		lease:     lease,
		sweep:     DefaultSweepInterval,
		logger:    logger.Named("status_worker"),
	}
}

// Start begins the background worker
func (w *StatusWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	sweepTicker := time.NewTicker(w.sweep)
	defer sweepTicker.Stop()

	w.logger.Info("Started", zap.Duration("interval", w.interval))

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopped")
			return
		case <-ticker.C:
			w.ProcessDue(ctx)
		case <-sweepTicker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep requeues stalled generations and returns how many got a new check.
func (w *StatusWorker) Sweep(ctx context.Context) int {
	n, err := w.handler.RequeueStalled(ctx, sweepBatchSize)
	if err != nil {
		w.logger.Error("Failed to sweep stalled generations", zap.Error(err))
	}
	return n
}

// ProcessDue handles one batch of due checks and returns how many were
// claimed.
func (w *StatusWorker) ProcessDue(ctx context.Context) int {
	checks, err := w.queue.ClaimStatusChecks(ctx, w.batchSize, w.lease)
	if err != nil {
		w.logger.Error("Failed to claim status checks", zap.Error(err))
		return 0
	}

	if len(checks) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for _, check := range checks {
		check := check
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := w.handler.Handle(ctx, check); err != nil {
				w.logger.Error("Status check will be redelivered",
					zap.String("check_id", check.ID.String()),
					zap.Error(err),
				)
				return
			}

			if err := w.queue.CompleteStatusCheck(ctx, check); err != nil {
				w.logger.Error("Failed to complete status check",
					zap.String("check_id", check.ID.String()),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()

	return len(checks)
}
