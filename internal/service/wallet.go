package service

import (
	"context"
	"errors"
	"time"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

type WalletService struct {
	wallets WalletStore
	now     func() time.Time
}

func NewWalletService(wallets WalletStore) *WalletService {
	return &WalletService{wallets: wallets, now: time.Now}
}

func (s *WalletService) GetWallet(ctx context.Context, accountID int64) (*model.Wallet, error) {
	return s.wallets.GetWalletByAccount(ctx, accountID)
}

// CanAfford checks the current balance. It is advisory only, Debit re-checks
// under the wallet lock.
func (s *WalletService) CanAfford(ctx context.Context, accountID int64, amount int64) (bool, error) {
	wallet, err := s.wallets.GetWalletByAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return wallet.CanAfford(amount), nil
}

// Debit charges the wallet, failing with model.ErrInsufficientFunds when the
// locked balance does not cover amount.
func (s *WalletService) Debit(ctx context.Context, accountID int64, amount int64, reference string) (*model.WalletTransaction, error) {
	return s.wallets.UpdateWallet(ctx, accountID, func(w *model.Wallet) (*model.WalletTransaction, error) {
		return w.Debit(amount, reference, s.now())
	})
}

func (s *WalletService) Credit(ctx context.Context, accountID int64, amount int64, reference string) (*model.WalletTransaction, error) {
	return s.wallets.UpdateWallet(ctx, accountID, func(w *model.Wallet) (*model.WalletTransaction, error) {
		return w.Credit(amount, reference, s.now())
	})
}

// CreditOnce credits the wallet unless a credit with the same key was already
// recorded. The returned bool reports whether this call applied it.
func (s *WalletService) CreditOnce(ctx context.Context, accountID int64, amount int64, reference, key string) (*model.WalletTransaction, bool, error) {
	entry, err := s.wallets.UpdateWallet(ctx, accountID, func(w *model.Wallet) (*model.WalletTransaction, error) {
		entry, err := w.Credit(amount, reference, s.now())
		if err != nil {
			return nil, err
		}
		entry.IdempotencyKey = &key
		return entry, nil
	})
	if errors.Is(err, repository.ErrDuplicateTransaction) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Transactions returns the wallet history, newest first.
func (s *WalletService) Transactions(ctx context.Context, accountID int64, limit, offset int) ([]model.WalletTransaction, error) {
	wallet, err := s.wallets.GetWalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	return s.wallets.GetWalletTransactions(ctx, wallet.ID, clampLimit(limit), offset)
}
