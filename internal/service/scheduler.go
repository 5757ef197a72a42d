package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Scheduler interface {
	// Schedule queues the first status check of a generation. A generation
	// has at most one pending check; scheduling again replaces it.
	Schedule(ctx context.Context, generationID uuid.UUID) error
	// ScheduleAttempt queues the attempt-th check of a generation.
	ScheduleAttempt(ctx context.Context, generationID uuid.UUID, attempt int) error
}

// StatusScheduler queues delayed status checks in the database. Checks are
// picked up by StatusWorker once due.
type StatusScheduler struct {
	queue StatusCheckQueue
	delay time.Duration
	now   func() time.Time
}

func NewStatusScheduler(queue StatusCheckQueue, delay time.Duration) *StatusScheduler {
	return &StatusScheduler{queue: queue, delay: delay, now: time.Now}
}

func (s *StatusScheduler) Schedule(ctx context.Context, generationID uuid.UUID) error {
	return s.ScheduleAttempt(ctx, generationID, 1)
}

func (s *StatusScheduler) ScheduleAttempt(ctx context.Context, generationID uuid.UUID, attempt int) error {
	if attempt < 1 {
		attempt = 1
	}
	if err := s.queue.EnqueueStatusCheck(ctx, generationID, attempt, s.now().Add(s.delay)); err != nil {
		return fmt.Errorf("failed to schedule status check: %w", err)
	}
	return nil
}
