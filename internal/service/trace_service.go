package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type traceRepository interface {
	Append(ctx context.Context, q sqlx.ExtContext, event *models.TraceEvent) error
	ListByBatch(ctx context.Context, batchID string) ([]models.TraceEventDetail, error)
}

type cropByBatchFinder interface {
	FindByBatchID(ctx context.Context, batchID string) (*models.Crop, error)
}

type farmerProfileFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

const traceCacheKeyPrefix = "trace:batch:"

// TraceService owns the traceability ledger and the reconstruction view a
// consumer sees when scanning a batch code.
type TraceService struct {
	traces    traceRepository
	crops     cropByBatchFinder
	users     farmerProfileFinder
	tx        txRunner
	cache     *CacheService
	metrics   *MetricsService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTraceService constructs a TraceService instance.
func NewTraceService(traces traceRepository, crops cropByBatchFinder, users farmerProfileFinder, tx txRunner, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *TraceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &TraceService{traces: traces, crops: crops, users: users, tx: tx, cache: cache, metrics: metrics, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Append writes one ledger event outside the guarded supply-chain flow. Only
// admins get this raw access; everyone else appends through the domain
// operations that pair ledger writes with their projections.
func (s *TraceService) Append(ctx context.Context, actor models.Actor, req models.TraceAppendRequest) (*models.TraceEvent, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can append raw ledger events")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ledger payload")
	}

	event := &models.TraceEvent{
		BatchID:  req.BatchID,
		StepType: req.StepType,
		UserID:   actor.ID,
		Location: req.Location,
		Details:  req.Details,
	}
	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		return s.traces.Append(ctx, tx, event)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append ledger event")
	}

	s.OnLedgerAppend(req.StepType, req.BatchID)

	return event, nil
}

// OnLedgerAppend invalidates the cached reconstruction for the batch and
// counts the append. Domain services call this through their append hooks.
func (s *TraceService) OnLedgerAppend(step models.StepType, batchID string) {
	if s.metrics != nil {
		s.metrics.RecordLedgerAppend(step)
	}
	if s.cache.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Invalidate(ctx, traceCacheKeyPrefix+batchID); err != nil {
			s.logger.Warn("failed to invalidate trace cache", zap.String("batch_id", batchID), zap.Error(err))
		}
	}
}

// History returns the raw ordered ledger for a batch, annotated for display.
// An unknown batch yields an empty journey.
func (s *TraceService) History(ctx context.Context, batchID string) ([]models.JourneyStep, error) {
	events, err := s.traces.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
	}
	return annotate(events), nil
}

// TraceBatch rebuilds the full chain-of-custody view for one batch: the
// anchoring crop, the farmer's public profile, and the ordered journey. The
// result is cached; any ledger append for the batch invalidates it. A batch
// id with ledger events but no registered crop is still not found here, the
// public view only exists once the crop anchors it.
func (s *TraceService) TraceBatch(ctx context.Context, batchID string) (*models.BatchTrace, error) {
	cacheKey := traceCacheKeyPrefix + batchID
	var cached models.BatchTrace
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		if s.metrics != nil {
			s.metrics.RecordTraceLookup()
		}
		return &cached, nil
	}

	crop, err := s.crops.FindByBatchID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load crop")
	}

	trace := &models.BatchTrace{Crop: *crop}

	farmer, err := s.users.FindByID(ctx, crop.FarmerID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load farmer")
		}
		s.logger.Warn("crop references unknown farmer", zap.String("crop_id", crop.ID), zap.String("farmer_id", crop.FarmerID))
	} else {
		trace.Farmer = models.PublicProfile{Name: farmer.Name, Phone: farmer.Phone}
	}

	events, err := s.traces.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read ledger")
	}
	trace.Journey = annotate(events)

	if err := s.cache.Set(ctx, cacheKey, trace, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache batch trace", zap.String("batch_id", batchID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordTraceLookup()
	}

	return trace, nil
}

func annotate(events []models.TraceEventDetail) []models.JourneyStep {
	journey := make([]models.JourneyStep, 0, len(events))
	for _, e := range events {
		journey = append(journey, models.JourneyStep{
			TraceEventDetail: e,
			Display:          models.DisplayFor(e.StepType),
		})
	}
	return journey
}
