package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

func TestWalletServiceDebitAndCredit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedWallet(1, 1000)
	svc := NewWalletService(store)

	entry, err := svc.Debit(ctx, 1, 1000, "order#1")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeDebit, entry.Type)
	assert.Equal(t, int64(1000), entry.Amount)
	assert.Equal(t, "order#1", *entry.Reference)
	assert.Equal(t, int64(0), entry.BalanceAfter)
	assert.Equal(t, int64(0), store.balance(1))

	canAfford, err := svc.CanAfford(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, canAfford)

	_, err = svc.Credit(ctx, 1, 250, "top up")
	require.NoError(t, err)
	assert.Equal(t, int64(250), store.balance(1))
}

func TestWalletServiceInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedWallet(1, 100)
	svc := NewWalletService(store)

	_, err := svc.Debit(ctx, 1, 101, "too much")

	assert.True(t, errors.Is(err, model.ErrInsufficientFunds))
	assert.Equal(t, int64(100), store.balance(1))
	assert.Empty(t, store.transactions)
}

func TestWalletServiceUnknownWallet(t *testing.T) {
	svc := NewWalletService(newMemStore())

	_, err := svc.Debit(context.Background(), 99, 1, "x")
	assert.True(t, errors.Is(err, repository.ErrWalletNotFound))

	_, err = svc.CanAfford(context.Background(), 99, 1)
	assert.True(t, errors.Is(err, repository.ErrWalletNotFound))
}

func TestWalletServiceCreditOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedWallet(1, 0)
	svc := NewWalletService(store)

	entry, applied, err := svc.CreditOnce(ctx, 1, 500, "Order #100", "order:100")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "order:100", *entry.IdempotencyKey)

	entry, applied, err = svc.CreditOnce(ctx, 1, 500, "Order #100", "order:100")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, entry)

	assert.Equal(t, int64(500), store.balance(1))
	assert.Len(t, store.transactions, 1)
}

func TestWalletServiceTransactionsLimit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedWallet(1, 0)
	svc := NewWalletService(store)

	for i := 0; i < 105; i++ {
		_, err := svc.Credit(ctx, 1, 1, fmt.Sprintf("credit %d", i))
		require.NoError(t, err)
	}

	tests := []struct {
		limit    int
		expected int
	}{
		{limit: 0, expected: 20},
		{limit: -5, expected: 20},
		{limit: 10, expected: 10},
		{limit: 500, expected: 100},
	}
	for _, tt := range tests {
		txs, err := svc.Transactions(ctx, 1, tt.limit, 0)
		require.NoError(t, err)
		assert.Len(t, txs, tt.expected, "limit %d", tt.limit)
	}

	txs, err := svc.Transactions(ctx, 1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "credit 104", *txs[0].Reference, "newest first")
}

func TestWalletServiceConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedWallet(1, 200)
	svc := NewWalletService(store)

	var succeeded, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, 1, 10, "burst")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), succeeded.Load())
	assert.Equal(t, int32(30), rejected.Load())
	assert.Equal(t, int64(0), store.balance(1))

	var sum int64
	for _, tx := range store.transactions {
		sum += tx.Delta()
	}
	assert.Equal(t, int64(-200), sum)
}

func TestAccountServiceRegister(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewAccountService(store, store)

	username := "alice"
	first, created, err := svc.Register(ctx, TelegramUser{ID: 5, Username: &username})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first.Wallet)
	assert.Equal(t, int64(0), first.Wallet.Balance)
	assert.Equal(t, int64(5), first.Wallet.AccountID)

	renamed := "alice2"
	second, created, err := svc.Register(ctx, TelegramUser{ID: 5, Username: &renamed})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Wallet.ID, second.Wallet.ID)
	assert.Len(t, store.wallets, 1)

	account, err := svc.GetAccount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "alice2", *account.Username)
}
