package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/provider"
	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

// memStore keeps every aggregate in memory. One mutex serializes all
// operations, which gives UpdateWallet and UpdateGeneration the same
// check-and-apply atomicity as the row locks of the real repository.
type memStore struct {
	mu           sync.Mutex
	accounts     map[int64]*model.Account
	wallets      map[int64]*model.Wallet
	transactions []model.WalletTransaction
	generations  map[uuid.UUID]*model.Generation
	checks       map[uuid.UUID]*model.StatusCheck // by generation
	settings     map[string]string

	createGenerationErr error
	enqueueErr          error
	completeErr         error
	updateErr           error
	updateCalls         int
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    make(map[int64]*model.Account),
		wallets:     make(map[int64]*model.Wallet),
		generations: make(map[uuid.UUID]*model.Generation),
		checks:      make(map[uuid.UUID]*model.StatusCheck),
		settings:    make(map[string]string),
	}
}

func (s *memStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpsertAccount(ctx context.Context, account *model.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	existing, ok := s.accounts[account.ID]
	if ok {
		account.CreatedAt = existing.CreatedAt
	} else {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	cp := *account
	s.accounts[account.ID] = &cp
	return !ok, nil
}

func (s *memStore) EnsureWallet(ctx context.Context, accountID int64) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		w = &model.Wallet{ID: uuid.New(), AccountID: accountID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		s.wallets[accountID] = w
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) GetWalletByAccount(ctx context.Context, accountID int64) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) UpdateWallet(ctx context.Context, accountID int64, fn repository.WalletMutation) (*model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[accountID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}

	locked := *w
	entry, err := fn(&locked)
	if err != nil {
		return nil, err
	}

	if entry.IdempotencyKey != nil {
		for _, t := range s.transactions {
			if t.WalletID == w.ID && t.IdempotencyKey != nil && *t.IdempotencyKey == *entry.IdempotencyKey {
				return nil, repository.ErrDuplicateTransaction
			}
		}
	}

	*w = locked
	s.transactions = append(s.transactions, *entry)
	return entry, nil
}

func (s *memStore) GetWalletTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WalletTransaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].WalletID == walletID {
			out = append(out, s.transactions[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CreateGeneration(ctx context.Context, g *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createGenerationErr != nil {
		return s.createGenerationErr
	}
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	cp := *g
	s.generations[g.ID] = &cp
	return nil
}

func (s *memStore) GetGeneration(ctx context.Context, id uuid.UUID) (*model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok {
		return nil, repository.ErrGenerationNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *memStore) ListGenerationsByAccount(ctx context.Context, accountID int64, limit int) ([]model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Generation
	for _, g := range s.generations {
		if g.AccountID == accountID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateGeneration(ctx context.Context, id uuid.UUID, fn func(g *model.Generation) error) (*model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	g, ok := s.generations[id]
	if !ok {
		return nil, repository.ErrGenerationNotFound
	}

	locked := *g
	if err := fn(&locked); err != nil {
		return nil, err
	}
	*g = locked
	cp := locked
	return &cp, nil
}

func (s *memStore) LinkOrderItem(ctx context.Context, id uuid.UUID, orderItemID string) (*model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[id]
	if !ok {
		return nil, repository.ErrGenerationNotFound
	}
	if g.OrderItemID != nil && *g.OrderItemID != orderItemID {
		return nil, repository.ErrOrderItemConflict
	}
	for otherID, other := range s.generations {
		if otherID != id && other.OrderItemID != nil && *other.OrderItemID == orderItemID {
			return nil, repository.ErrOrderItemConflict
		}
	}
	g.OrderItemID = &orderItemID
	cp := *g
	return &cp, nil
}

func (s *memStore) ListUnpolledGenerations(ctx context.Context, limit int) ([]model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Generation
	for _, g := range s.generations {
		if len(out) >= limit {
			break
		}
		if !g.IsInProgress() || !g.HasExternalJob() {
			continue
		}
		if _, queued := s.checks[g.ID]; queued {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *memStore) EnqueueStatusCheck(ctx context.Context, generationID uuid.UUID, attempt int, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	if c, ok := s.checks[generationID]; ok {
		c.Attempt = attempt
		c.RunAt = runAt
		c.LockedUntil = nil
		return nil
	}
	s.checks[generationID] = &model.StatusCheck{ID: uuid.New(), GenerationID: generationID, Attempt: attempt, RunAt: runAt, CreatedAt: time.Now()}
	return nil
}

func (s *memStore) ClaimStatusChecks(ctx context.Context, limit int, lease time.Duration) ([]model.StatusCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []model.StatusCheck
	for _, c := range s.checks {
		if len(out) >= limit {
			break
		}
		if c.RunAt.After(now) || (c.LockedUntil != nil && c.LockedUntil.After(now)) {
			continue
		}
		until := now.Add(lease)
		c.LockedUntil = &until
		out = append(out, *c)
	}
	return out, nil
}

func (s *memStore) CompleteStatusCheck(ctx context.Context, check model.StatusCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	c, ok := s.checks[check.GenerationID]
	if !ok || c.ID != check.ID || c.LockedUntil == nil || check.LockedUntil == nil || !c.LockedUntil.Equal(*check.LockedUntil) {
		return nil
	}
	delete(s.checks, check.GenerationID)
	return nil
}

// expireLeases makes every leased check due again, as if its lease ran out.
func (s *memStore) expireLeases() {
	s.mu.Lock()
	defer s.mu.Unlock()
	past := time.Now().Add(-time.Second)
	for _, c := range s.checks {
		if c.LockedUntil != nil {
			c.LockedUntil = &past
			c.RunAt = past
		}
	}
}

func (s *memStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return v, nil
}

func (s *memStore) pendingChecks() []model.StatusCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StatusCheck
	for _, c := range s.checks {
		out = append(out, *c)
	}
	return out
}

func (s *memStore) balance(accountID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[accountID].Balance
}

func (s *memStore) seedWallet(accountID int64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = &model.Account{ID: accountID}
	s.wallets[accountID] = &model.Wallet{ID: uuid.New(), AccountID: accountID, Balance: balance}
}

func (s *memStore) seedGeneration(g *model.Generation) *model.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	cp := *g
	s.generations[g.ID] = &cp
	return g
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ProviderName() string {
	return "mock"
}

func (m *mockGateway) SubmitJob(ctx context.Context, g *model.Generation) *provider.SubmitResult {
	args := m.Called(ctx, g)
	result, _ := args.Get(0).(*provider.SubmitResult)
	return result
}

func (m *mockGateway) GetJobStatus(ctx context.Context, g *model.Generation) (model.GenerationState, bool) {
	args := m.Called(ctx, g)
	return args.Get(0).(model.GenerationState), args.Bool(1)
}

func (m *mockGateway) GetJobResult(ctx context.Context, g *model.Generation) *provider.JobResult {
	args := m.Called(ctx, g)
	result, _ := args.Get(0).(*provider.JobResult)
	return result
}

func (m *mockGateway) CancelJob(ctx context.Context, g *model.Generation) bool {
	return m.Called(ctx, g).Bool(0)
}

func (m *mockGateway) IsHealthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(ctx context.Context, generationID uuid.UUID) error {
	return m.Called(ctx, generationID).Error(0)
}

func (m *mockScheduler) ScheduleAttempt(ctx context.Context, generationID uuid.UUID, attempt int) error {
	return m.Called(ctx, generationID, attempt).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyGenerationFinished(g *model.Generation) error {
	return m.Called(g).Error(0)
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
