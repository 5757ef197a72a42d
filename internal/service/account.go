package service

import (
	"context"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

type TelegramUser struct {
	ID           int64
	Username     *string
	FirstName    *string
	LastName     *string
	LanguageCode *string
}

type AccountService struct {
	accounts AccountStore
	wallets  WalletStore
}

func NewAccountService(accounts AccountStore, wallets WalletStore) *AccountService {
	return &AccountService{accounts: accounts, wallets: wallets}
}

// Register creates or refreshes the account of a Telegram user and makes sure
// it owns exactly one wallet. The bool reports a first registration.
func (s *AccountService) Register(ctx context.Context, user TelegramUser) (*model.AccountWithWallet, bool, error) {
	account := &model.Account{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		LanguageCode: user.LanguageCode,
	}

	created, err := s.accounts.UpsertAccount(ctx, account)
	if err != nil {
		return nil, false, err
	}

	wallet, err := s.wallets.EnsureWallet(ctx, account.ID)
	if err != nil {
		return nil, false, err
	}

	return &model.AccountWithWallet{Account: *account, Wallet: wallet}, created, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}
