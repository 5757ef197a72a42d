package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

// EnqueueStatusCheck queues the check of a generation. A generation has at
// most one check row: enqueueing again moves it to runAt with the given
// attempt and drops any lease on it.
func (r *Repository) EnqueueStatusCheck(ctx context.Context, generationID uuid.UUID, attempt int, runAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO video_status_checks (generation_id, attempt, run_at) VALUES ($1, $2, $3)
		ON CONFLICT (generation_id) DO UPDATE
		SET attempt = EXCLUDED.attempt, run_at = EXCLUDED.run_at, locked_until = NULL`,
		generationID, attempt, runAt,
	)
	return err
}

// ClaimStatusChecks leases up to limit due checks. A leased check is hidden
// from other workers until the lease runs out, so a worker that dies before
// CompleteStatusCheck gets its checks redelivered.
func (r *Repository) ClaimStatusChecks(ctx context.Context, limit int, lease time.Duration) ([]model.StatusCheck, error) {
	var checks []model.StatusCheck
	err := r.db.SelectContext(ctx, &checks, `
		UPDATE video_status_checks SET locked_until = $1
		WHERE id IN (
			SELECT id FROM video_status_checks
			WHERE run_at <= NOW() AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY run_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		time.Now().Add(lease).Truncate(time.Microsecond), limit)
	return checks, err
}

// CompleteStatusCheck removes a claimed check. Nothing is removed when the
// check was rescheduled or claimed again since check was leased.
func (r *Repository) CompleteStatusCheck(ctx context.Context, check model.StatusCheck) error {
	if check.LockedUntil == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM video_status_checks WHERE id = $1 AND locked_until = $2",
		check.ID, *check.LockedUntil)
	return err
}

// ListUnpolledGenerations returns in-progress generations holding a provider
// job but no queued check, oldest update first.
func (r *Repository) ListUnpolledGenerations(ctx context.Context, limit int) ([]model.Generation, error) {
	var generations []model.Generation
	err := r.db.SelectContext(ctx, &generations, `
		SELECT g.* FROM video_generations g
		WHERE g.workflow_state IN ($1, $2)
			AND g.external_job_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM video_status_checks c WHERE c.generation_id = g.id)
		ORDER BY g.updated_at ASC
		LIMIT $3`,
		model.StateSubmitted, model.StateProcessing, limit)
	return generations, err
}
