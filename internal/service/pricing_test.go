package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
)

func TestPricingServiceGenerationCost(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		channel  string
		expected int64
		err      error
	}{
		{
			name:     "channel price",
			settings: map[string]string{"video_generation_cost": "1000", "video_generation_cost:eu": "800"},
			channel:  "eu",
			expected: 800,
		},
		{
			name:     "falls back to global price",
			settings: map[string]string{"video_generation_cost": "1000"},
			channel:  "eu",
			expected: 1000,
		},
		{
			name:     "no channel",
			settings: map[string]string{"video_generation_cost": " 1200 "},
			expected: 1200,
		},
		{
			name:     "missing",
			settings: map[string]string{},
			channel:  "eu",
			err:      ErrNotConfigured,
		},
		{
			name:     "not a number",
			settings: map[string]string{"video_generation_cost": "cheap"},
			err:      ErrNotConfigured,
		},
		{
			name:     "zero",
			settings: map[string]string{"video_generation_cost": "0"},
			err:      ErrNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.settings = tt.settings

			cost, err := NewPricingService(store).GenerationCost(context.Background(), tt.channel)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cost)
		})
	}
}

func TestPricingServiceCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.settings["video_generation_cost"] = "1000"

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewPricingService(store)
	svc.now = func() time.Time { return now }

	cost, err := svc.GenerationCost(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cost)

	store.settings["video_generation_cost"] = "1500"
	now = now.Add(30 * time.Second)
	cost, err = svc.GenerationCost(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cost, "served from cache")

	now = now.Add(time.Minute)
	cost, err = svc.GenerationCost(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), cost)
}

func TestWalletPayment(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.settings["video_generation_cost"] = "1000"
	store.seedWallet(1, 1500)
	wallets := NewWalletService(store)
	payment := NewWalletPayment(wallets, NewPricingService(store))

	assert.Equal(t, "wallet", payment.Type())

	ok, err := payment.CanGenerate(ctx, 1, "default")
	require.NoError(t, err)
	assert.True(t, ok)

	txID, err := payment.Charge(ctx, 1, 1000, "Video generation")
	require.NoError(t, err)
	require.Len(t, store.transactions, 1)
	assert.Equal(t, store.transactions[0].ID, txID)

	ok, err = payment.CanGenerate(ctx, 1, "default")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = payment.Charge(ctx, 1, 1000, "Video generation")
	assert.True(t, errors.Is(err, model.ErrInsufficientFunds))
	assert.Equal(t, int64(500), store.balance(1))
}

func TestWalletPaymentNotConfigured(t *testing.T) {
	store := newMemStore()
	store.seedWallet(1, 1500)
	payment := NewWalletPayment(NewWalletService(store), NewPricingService(store))

	_, err := payment.CanGenerate(context.Background(), 1, "default")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
