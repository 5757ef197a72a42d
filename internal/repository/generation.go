package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

var (
	ErrGenerationNotFound = errors.New("video generation not found")
	ErrOrderItemConflict  = errors.New("order item is already linked")
)

const uniqueViolation = "23505"

func (r *Repository) CreateGeneration(ctx context.Context, g *model.Generation) error {
	query := `
		INSERT INTO video_generations (id, account_id, prompt, token_cost, workflow_state,
			payment_transaction_id, payment_type, order_item_id, external_metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		g.ID,
		g.AccountID,
		g.Prompt,
		g.TokenCost,
		g.State,
		g.PaymentTransactionID,
		g.PaymentType,
		g.OrderItemID,
		g.ExternalMetadata,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
}

func (r *Repository) GetGeneration(ctx context.Context, id uuid.UUID) (*model.Generation, error) {
	var g model.Generation
	err := r.db.GetContext(ctx, &g, "SELECT * FROM video_generations WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGenerationNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *Repository) ListGenerationsByAccount(ctx context.Context, accountID int64, limit int) ([]model.Generation, error) {
	var generations []model.Generation
	err := r.db.SelectContext(ctx, &generations, `
		SELECT * FROM video_generations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	return generations, err
}

// UpdateGeneration locks the generation row, lets fn mutate it and writes
// every mutable field back in the same transaction. When fn returns an
// error nothing is written and the error is returned unchanged.
func (r *Repository) UpdateGeneration(ctx context.Context, id uuid.UUID, fn func(g *model.Generation) error) (*model.Generation, error) {
	var g model.Generation

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &g, "SELECT * FROM video_generations WHERE id = $1 FOR UPDATE", id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGenerationNotFound
			}
			return fmt.Errorf("failed to lock generation: %w", err)
		}

		if err := fn(&g); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			UPDATE video_generations SET
				workflow_state = $2,
				external_provider = $3,
				external_job_id = $4,
				external_submitted_at = $5,
				external_error_message = $6,
				external_metadata = $7,
				video_storage_url = $8,
				updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`,
			g.ID,
			g.State,
			g.ExternalProvider,
			g.ExternalJobID,
			g.ExternalSubmittedAt,
			g.ExternalErrorMessage,
			g.ExternalMetadata,
			g.VideoStorageURL,
		).Scan(&g.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	return &g, nil
}

// LinkOrderItem records the order line that funded a generation. The link is
// set once: linking the same line again is a no-op, while a generation bound
// to another line, or a line already funding another generation, yields
// ErrOrderItemConflict.
func (r *Repository) LinkOrderItem(ctx context.Context, id uuid.UUID, orderItemID string) (*model.Generation, error) {
	var g model.Generation
	err := r.db.GetContext(ctx, &g, `
		UPDATE video_generations SET order_item_id = $2, updated_at = NOW()
		WHERE id = $1 AND (order_item_id IS NULL OR order_item_id = $2)
		RETURNING *`,
		id, orderItemID)
	if err == nil {
		return &g, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, ErrOrderItemConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to link order item: %w", err)
	}

	if _, err := r.GetGeneration(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrOrderItemConflict
}
