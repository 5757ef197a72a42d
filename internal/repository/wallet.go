package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// WalletMutation changes a locked wallet in memory and returns the ledger
// entry describing the change.
type WalletMutation func(w *model.Wallet) (*model.WalletTransaction, error)

// EnsureWallet returns the account's wallet, creating an empty one the first
// time. Concurrent callers all get the same wallet.
func (r *Repository) EnsureWallet(ctx context.Context, accountID int64) (*model.Wallet, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO wallets (account_id, balance) VALUES ($1, 0) ON CONFLICT (account_id) DO NOTHING",
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return r.GetWalletByAccount(ctx, accountID)
}

func (r *Repository) GetWalletByAccount(ctx context.Context, accountID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE account_id = $1", accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateWallet locks the account's wallet, applies fn and persists the new
// balance together with the returned entry. Nothing is written when fn
// fails. An entry carrying an idempotency key that was already recorded for
// this wallet yields ErrDuplicateTransaction.
func (r *Repository) UpdateWallet(ctx context.Context, accountID int64, fn WalletMutation) (*model.WalletTransaction, error) {
	var entry *model.WalletTransaction

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var wallet model.Wallet
		err := tx.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE account_id = $1 FOR UPDATE", accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		entry, err = fn(&wallet)
		if err != nil {
			return err
		}

		if entry.IdempotencyKey != nil {
			var exists bool
			err = tx.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM wallet_transactions WHERE wallet_id = $1 AND idempotency_key = $2)",
				wallet.ID, *entry.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("failed to check idempotency key: %w", err)
			}
			if exists {
				return ErrDuplicateTransaction
			}
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2",
			wallet.Balance, wallet.ID)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO wallet_transactions (id, wallet_id, type, amount, reference, idempotency_key, balance_after, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, wallet.ID, entry.Type, entry.Amount, entry.Reference, entry.IdempotencyKey, entry.BalanceAfter, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create transaction record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// GetWalletTransactions returns the ledger of a wallet, newest first.
func (r *Repository) GetWalletTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]model.WalletTransaction, error) {
	var transactions []model.WalletTransaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	return transactions, err
}
