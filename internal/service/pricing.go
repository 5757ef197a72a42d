package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Guiziweb/VideoAiStudio/internal/repository"
)

var ErrNotConfigured = errors.New("video generation price is not configured")

const (
	generationCostSetting = "video_generation_cost"
	pricingCacheTTL       = time.Minute
)

type cachedCost struct {
	cost      int64
	fetchedAt time.Time
}

// PricingService resolves the token cost of one generation per sales channel.
type PricingService struct {
	settings SettingsStore

	cacheMu sync.RWMutex
	cache   map[string]cachedCost
	ttl     time.Duration
	now     func() time.Time
}

func NewPricingService(settings SettingsStore) *PricingService {
	return &PricingService{
		settings: settings,
		cache:    make(map[string]cachedCost),
		ttl:      pricingCacheTTL,
		now:      time.Now,
	}
}

// GenerationCost reads video_generation_cost:<channel>, then the global
// video_generation_cost. A missing or non-positive price is ErrNotConfigured.
func (s *PricingService) GenerationCost(ctx context.Context, channel string) (int64, error) {
	s.cacheMu.RLock()
	entry, ok := s.cache[channel]
	s.cacheMu.RUnlock()
	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.cost, nil
	}

	cost, err := s.fetchCost(ctx, channel)
	if err != nil {
		return 0, err
	}

	s.cacheMu.Lock()
	s.cache[channel] = cachedCost{cost: cost, fetchedAt: s.now()}
	s.cacheMu.Unlock()

	return cost, nil
}

func (s *PricingService) fetchCost(ctx context.Context, channel string) (int64, error) {
	keys := []string{generationCostSetting}
	if channel != "" {
		keys = append([]string{generationCostSetting + ":" + channel}, keys...)
	}

	for _, key := range keys {
		value, err := s.settings.GetSetting(ctx, key)
		if errors.Is(err, repository.ErrSettingNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}

		cost, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || cost <= 0 {
			return 0, ErrNotConfigured
		}
		return cost, nil
	}

	return 0, ErrNotConfigured
}
