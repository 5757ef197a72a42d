package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Wallet holds the token balance of one account. Balance is expressed in the
// smallest token unit and only changes through Credit and Debit.
type Wallet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID int64     `json:"account_id" db:"account_id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WalletTransaction is an append-only ledger entry. Amount is always
// positive, the direction is carried by Type.
type WalletTransaction struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	WalletID       uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	Type           TransactionType `json:"type" db:"type"`
	Amount         int64           `json:"amount" db:"amount"`
	Reference      *string         `json:"reference,omitempty" db:"reference"`
	IdempotencyKey *string         `json:"-" db:"idempotency_key"`
	BalanceAfter   int64           `json:"balance_after" db:"balance_after"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Delta returns the signed effect of the entry on the balance.
func (t WalletTransaction) Delta() int64 {
	if t.Type == TransactionTypeDebit {
		return -t.Amount
	}
	return t.Amount
}

func (w *Wallet) CanAfford(amount int64) bool {
	return w.Balance >= amount
}

// Credit adds amount to the balance and returns the matching entry. A zero
// at defaults to now. Persisting the wallet and the entry together is up to
// the caller.
func (w *Wallet) Credit(amount int64, reference string, at time.Time) (*WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	w.Balance += amount
	return w.record(TransactionTypeCredit, amount, reference, at), nil
}

// Debit removes amount from the balance. It fails with ErrInsufficientFunds
// and leaves the wallet untouched when the balance does not cover it.
func (w *Wallet) Debit(amount int64, reference string, at time.Time) (*WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !w.CanAfford(amount) {
		return nil, ErrInsufficientFunds
	}

	w.Balance -= amount
	return w.record(TransactionTypeDebit, amount, reference, at), nil
}

func (w *Wallet) record(txType TransactionType, amount int64, reference string, at time.Time) *WalletTransaction {
	if at.IsZero() {
		at = time.Now()
	}
	w.UpdatedAt = at

	var ref *string
	if reference != "" {
		ref = &reference
	}

	return &WalletTransaction{
		ID:           uuid.New(),
		WalletID:     w.ID,
		Type:         txType,
		Amount:       amount,
		Reference:    ref,
		BalanceAfter: w.Balance,
		CreatedAt:    at,
	}
}
