package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/internal/dto"
	"github.com/noah-isme/sma-risk-monitor/internal/models"
	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

const (
	unreadAlertLimit  = 50
	defaultAlertLimit = 100
	maxAlertLimit     = 500
)

type alertRepository interface {
	List(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
}

// AlertService exposes alerts raised by the performance engine.
type AlertService struct {
	repo   alertRepository
	cache  cacheInvalidator
	logger *zap.Logger
}

// NewAlertService constructs the alert service.
func NewAlertService(repo alertRepository, cache cacheInvalidator, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{repo: repo, cache: cache, logger: logger}
}

// Unread returns the newest unread alerts.
func (s *AlertService) Unread(ctx context.Context) ([]models.Alert, error) {
	return s.list(ctx, true, unreadAlertLimit)
}

// List returns the newest alerts regardless of read state.
func (s *AlertService) List(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}
	return s.list(ctx, false, limit)
}

func (s *AlertService) list(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error) {
	alerts, err := s.repo.List(ctx, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

// MarkRead flags one alert as read. Marking an already read alert succeeds.
func (s *AlertService) MarkRead(ctx context.Context, id string) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark alert read")
	}
	s.invalidate(ctx)
	return nil
}

// MarkAllRead flags every unread alert as read.
func (s *AlertService) MarkAllRead(ctx context.Context) (*dto.MarkAllAlertsReadResult, error) {
	updated, err := s.repo.MarkAllRead(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark alerts read")
	}
	s.invalidate(ctx)
	s.logger.Info("alerts marked read", zap.Int64("updated", updated))
	return &dto.MarkAllAlertsReadResult{Updated: updated}, nil
}

func (s *AlertService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, DashboardCachePattern)
	}
}
