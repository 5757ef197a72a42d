package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

// The stores below are the slices of *repository.Repository each service
// depends on.

type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	UpsertAccount(ctx context.Context, account *model.Account) (bool, error)
}

type WalletStore interface {
	EnsureWallet(ctx context.Context, accountID int64) (*model.Wallet, error)
	GetWalletByAccount(ctx context.Context, accountID int64) (*model.Wallet, error)
	UpdateWallet(ctx context.Context, accountID int64, fn repository.WalletMutation) (*model.WalletTransaction, error)
	GetWalletTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]model.WalletTransaction, error)
}

type GenerationStore interface {
	CreateGeneration(ctx context.Context, g *model.Generation) error
	GetGeneration(ctx context.Context, id uuid.UUID) (*model.Generation, error)
	ListGenerationsByAccount(ctx context.Context, accountID int64, limit int) ([]model.Generation, error)
	UpdateGeneration(ctx context.Context, id uuid.UUID, fn func(g *model.Generation) error) (*model.Generation, error)
	LinkOrderItem(ctx context.Context, id uuid.UUID, orderItemID string) (*model.Generation, error)
	ListUnpolledGenerations(ctx context.Context, limit int) ([]model.Generation, error)
}

type StatusCheckQueue interface {
	EnqueueStatusCheck(ctx context.Context, generationID uuid.UUID, attempt int, runAt time.Time) error
	ClaimStatusChecks(ctx context.Context, limit int, lease time.Duration) ([]model.StatusCheck, error)
	CompleteStatusCheck(ctx context.Context, check model.StatusCheck) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

var (
	_ AccountStore     = (*repository.Repository)(nil)
	_ WalletStore      = (*repository.Repository)(nil)
	_ GenerationStore  = (*repository.Repository)(nil)
	_ StatusCheckQueue = (*repository.Repository)(nil)
	_ SettingsStore    = (*repository.Repository)(nil)
)

// clampLimit keeps list sizes within [1, 100], defaulting to 20.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
