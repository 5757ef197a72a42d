package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

// WalletPayment pays generations from the account's token wallet.
type WalletPayment struct {
	wallets *WalletService
	pricing *PricingService
}

func NewWalletPayment(wallets *WalletService, pricing *PricingService) *WalletPayment {
	return &WalletPayment{wallets: wallets, pricing: pricing}
}

func (p *WalletPayment) Type() string {
	return model.PaymentTypeWallet
}

// CanGenerate reports whether the account can currently pay for one
// generation on channel.
func (p *WalletPayment) CanGenerate(ctx context.Context, accountID int64, channel string) (bool, error) {
	cost, err := p.pricing.GenerationCost(ctx, channel)
	if err != nil {
		return false, err
	}
	return p.wallets.CanAfford(ctx, accountID, cost)
}

// Charge debits amount and returns the id of the ledger entry.
// model.ErrInsufficientFunds is returned unwrapped.
func (p *WalletPayment) Charge(ctx context.Context, accountID int64, amount int64, reason string) (uuid.UUID, error) {
	entry, err := p.wallets.Debit(ctx, accountID, amount, reason)
	if err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}
