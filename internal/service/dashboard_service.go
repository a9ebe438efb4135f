package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type statsRepository interface {
	UsersByRole(ctx context.Context) ([]models.RoleCount, error)
	CropsByStatus(ctx context.Context) ([]models.StatusCount, error)
	DeliveriesByStatus(ctx context.Context) ([]models.StatusCount, error)
	PaymentsSummary(ctx context.Context) (int, float64, error)
	TraceCompleteness(ctx context.Context) (models.TraceCompleteness, error)
}

const dashboardCacheKey = "dashboard:overview"

// DashboardService aggregates the admin landing statistics.
type DashboardService struct {
	stats    statsRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(stats statsRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{stats: stats, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Overview returns platform-wide counts. Admin only; the numbers span every
// participant's data.
func (s *DashboardService) Overview(ctx context.Context, actor models.Actor) (*models.DashboardOverview, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can view the dashboard")
	}

	var cached models.DashboardOverview
	if hit, _ := s.cache.Get(ctx, dashboardCacheKey, &cached); hit {
		return &cached, nil
	}

	usersByRole, err := s.stats.UsersByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	cropsByStatus, err := s.stats.CropsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count crops")
	}
	deliveriesByStatus, err := s.stats.DeliveriesByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count deliveries")
	}
	paymentsCount, paymentsTotal, err := s.stats.PaymentsSummary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	completeness, err := s.stats.TraceCompleteness(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute trace completeness")
	}

	overview := &models.DashboardOverview{
		UsersByRole:       usersByRole,
		CropsByStatus:     cropsByStatus,
		DeliveriesByState: deliveriesByStatus,
		PaymentsTotal:     paymentsTotal,
		PaymentsCount:     paymentsCount,
		Traceability:      completeness,
		GeneratedAt:       time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, dashboardCacheKey, overview, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard overview", zap.Error(err))
	}

	return overview, nil
}
