package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/repository"
	"github.com/noah-isme/agritrace-api/pkg/batchid"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type cropRepository interface {
	Create(ctx context.Context, q sqlx.ExtContext, crop *models.Crop) error
	FindByID(ctx context.Context, id string) (*models.Crop, error)
	FindByBatchID(ctx context.Context, batchID string) (*models.Crop, error)
	List(ctx context.Context, filter models.CropFilter) ([]models.Crop, int, error)
	OverrideStatus(ctx context.Context, q sqlx.ExtContext, id string, status models.CropStatus) error
}

type traceAppender interface {
	Append(ctx context.Context, q sqlx.ExtContext, event *models.TraceEvent) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CropService manages batch registration and the farmer's crop inventory.
type CropService struct {
	crops     cropRepository
	traces    traceAppender
	tx        txRunner
	audit     auditWriter
	ids       *batchid.Generator
	retries   int
	validator *validator.Validate
	logger    *zap.Logger
	onAppend  func(step models.StepType, batchID string)
}

// NewCropService constructs a CropService instance. retries bounds how many
// fresh batch identifiers are tried when an insert collides.
func NewCropService(crops cropRepository, traces traceAppender, tx txRunner, audit auditWriter, ids *batchid.Generator, retries int, validate *validator.Validate, logger *zap.Logger) *CropService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if retries < 1 {
		retries = 3
	}
	return &CropService{crops: crops, traces: traces, tx: tx, audit: audit, ids: ids, retries: retries, validator: validate, logger: logger}
}

// SetAppendHook registers a callback fired after each successful ledger write.
func (s *CropService) SetAppendHook(fn func(step models.StepType, batchID string)) {
	s.onAppend = fn
}

// Register creates the crop row and its Harvest ledger event atomically. A
// batch-id collision is retried with a freshly generated identifier; the
// crop id itself is also regenerated so each attempt is a clean insert.
func (s *CropService) Register(ctx context.Context, actor models.Actor, req models.CropCreateRequest) (*models.Crop, error) {
	if actor.Role != models.RoleFarmer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only farmers can register crops")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid crop payload")
	}

	var created *models.Crop
	for attempt := 0; attempt < s.retries; attempt++ {
		batchID, err := s.ids.New()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate batch id")
		}

		crop := &models.Crop{
			FarmerID:    actor.ID,
			Name:        req.Name,
			Type:        req.Type,
			Quantity:    req.Quantity,
			Price:       req.Price,
			HarvestDate: req.HarvestDate,
			BatchID:     batchID,
			Status:      models.CropStatusAvailable,
			PhotoURL:    req.PhotoURL,
		}

		err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.crops.Create(ctx, tx, crop); err != nil {
				return err
			}
			return s.traces.Append(ctx, tx, &models.TraceEvent{
				BatchID:  batchID,
				StepType: models.StepHarvest,
				UserID:   actor.ID,
				Location: req.Location,
				Details:  fmt.Sprintf("Crop %s (%s) harvested", crop.Name, crop.Type),
			})
		})
		if err != nil {
			if repository.IsUniqueViolation(err, repository.BatchIDConstraint) {
				s.logger.Warn("batch id collision, retrying", zap.String("batch_id", batchID), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register crop")
		}
		created = crop
		break
	}
	if created == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "could not assign a unique batch id")
	}

	if s.onAppend != nil {
		s.onAppend(models.StepHarvest, created.BatchID)
	}

	return created, nil
}

// Get returns a crop by id.
func (s *CropService) Get(ctx context.Context, id string) (*models.Crop, error) {
	crop, err := s.crops.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "crop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load crop")
	}
	return crop, nil
}

// List returns crops matching the filter with pagination info.
func (s *CropService) List(ctx context.Context, filter models.CropFilter) ([]models.Crop, *models.Pagination, error) {
	crops, total, err := s.crops.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list crops")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return crops, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// OverrideStatus lets the owning farmer force a crop status outside the
// guarded flow. The bypass is recorded twice: a StatusOverride ledger event
// and an audit row, so the ledger never silently disagrees with the
// projection.
func (s *CropService) OverrideStatus(ctx context.Context, actor models.Actor, cropID string, req models.CropOverrideRequest) (*models.Crop, error) {
	if actor.Role != models.RoleFarmer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only farmers can override crop status")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if !models.ValidCropStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown crop status")
	}

	crop, err := s.crops.FindByID(ctx, cropID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "crop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load crop")
	}
	if crop.FarmerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "crop belongs to another farmer")
	}

	previous := crop.Status
	if previous == req.Status {
		return crop, nil
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.crops.OverrideStatus(ctx, tx, cropID, req.Status); err != nil {
			return err
		}
		details := fmt.Sprintf("Status changed from %s to %s", previous, req.Status)
		if req.Reason != "" {
			details += ": " + req.Reason
		}
		return s.traces.Append(ctx, tx, &models.TraceEvent{
			BatchID:  crop.BatchID,
			StepType: models.StepStatusOverride,
			UserID:   actor.ID,
			Details:  details,
		})
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override status")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionCropOverride,
		Resource:   "crops",
		ResourceID: &cropID,
		OldValues:  []byte(`{"status":"` + string(previous) + `"}`),
		NewValues:  []byte(`{"status":"` + string(req.Status) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record override audit log", zap.Error(err))
	}

	if s.onAppend != nil {
		s.onAppend(models.StepStatusOverride, crop.BatchID)
	}

	crop.Status = req.Status
	return crop, nil
}
