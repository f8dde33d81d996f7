package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

type dashboardRepository interface {
	Stats(ctx context.Context) (*dto.DashboardStats, error)
}

// DashboardService serves the admin overview rollup.
type DashboardService struct {
	repo     dashboardRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService. A nil cache disables caching.
func NewDashboardService(repo dashboardRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Stats returns the rollup and whether it was served from cache.
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, bool, error) {
	var cached dto.DashboardStats
	if s.cache.Get(ctx, DashboardStatsCacheKey, &cached) {
		return &cached, true, nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard stats")
	}
	s.cache.Set(ctx, DashboardStatsCacheKey, stats, s.cacheTTL)
	return stats, false, nil
}
