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
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type supplyCropRepository interface {
	FindByID(ctx context.Context, id string) (*models.Crop, error)
	UpdateStatusIf(ctx context.Context, q sqlx.ExtContext, id string, expected, next models.CropStatus) (bool, error)
}

type supplyDeliveryRepository interface {
	Create(ctx context.Context, q sqlx.ExtContext, delivery *models.Delivery) error
	FindByID(ctx context.Context, id string) (*models.DeliveryDetail, error)
	List(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryDetail, int, error)
	UpdateStatusIf(ctx context.Context, q sqlx.ExtContext, id string, expected, next models.DeliveryStatus) (bool, error)
	UpdateTracking(ctx context.Context, id, info string) error
}

type supplyTransactionRepository interface {
	Create(ctx context.Context, q sqlx.ExtContext, txn *models.Transaction) error
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
}

// SupplyChainService drives the guarded hand-off flow: distributor pick-up,
// transit, retailer receipt, and final sale. Every mutation pairs the status
// projection update with its ledger event inside a single transaction.
type SupplyChainService struct {
	crops        supplyCropRepository
	deliveries   supplyDeliveryRepository
	transactions supplyTransactionRepository
	traces       traceAppender
	tx           txRunner
	validator    *validator.Validate
	logger       *zap.Logger
	onAppend     func(step models.StepType, batchID string)
}

// NewSupplyChainService constructs a SupplyChainService instance.
func NewSupplyChainService(crops supplyCropRepository, deliveries supplyDeliveryRepository, transactions supplyTransactionRepository, traces traceAppender, tx txRunner, validate *validator.Validate, logger *zap.Logger) *SupplyChainService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SupplyChainService{crops: crops, deliveries: deliveries, transactions: transactions, traces: traces, tx: tx, validator: validate, logger: logger}
}

// SetAppendHook registers a callback fired after each successful ledger write.
func (s *SupplyChainService) SetAppendHook(fn func(step models.StepType, batchID string)) {
	s.onAppend = fn
}

// AcceptCrop is the distributor's pick-up. In one transaction it flips the
// crop from available to in_transit, opens a pending delivery toward the
// chosen retailer, records the procurement custody transfer, and appends the
// Transport ledger event. A stale crop status aborts the whole batch of
// writes with a precondition failure.
func (s *SupplyChainService) AcceptCrop(ctx context.Context, actor models.Actor, req models.AcceptCropRequest) (*models.Delivery, error) {
	if actor.Role != models.RoleDistributor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only distributors can accept crops")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accept payload")
	}

	crop, err := s.crops.FindByID(ctx, req.CropID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "crop not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load crop")
	}
	if !models.CanTransitionCrop(crop.Status, models.CropStatusInTransit) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("crop is %s, not available", crop.Status))
	}

	delivery := &models.Delivery{
		CropID:           crop.ID,
		DistributorID:    actor.ID,
		RetailerID:       req.RetailerID,
		TransportDetails: req.TransportDetails,
		DeliveryDate:     req.DeliveryDate,
		Status:           models.DeliveryStatusPending,
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.crops.UpdateStatusIf(ctx, tx, crop.ID, models.CropStatusAvailable, models.CropStatusInTransit)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "crop was claimed by another distributor")
		}
		if err := s.deliveries.Create(ctx, tx, delivery); err != nil {
			return err
		}
		amount := crop.Price * crop.Quantity
		if err := s.transactions.Create(ctx, tx, &models.Transaction{
			CropID:           crop.ID,
			FromUserID:       crop.FarmerID,
			ToUserID:         actor.ID,
			TransactionType:  models.TransactionTypeProcurement,
			Amount:           &amount,
			TransportDetails: &req.TransportDetails,
		}); err != nil {
			return err
		}
		return s.traces.Append(ctx, tx, &models.TraceEvent{
			BatchID:  crop.BatchID,
			StepType: models.StepTransport,
			UserID:   actor.ID,
			Location: req.Location,
			Details:  fmt.Sprintf("Picked up by distributor, headed to retailer %s", req.RetailerID),
		})
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept crop")
	}

	if s.onAppend != nil {
		s.onAppend(models.StepTransport, crop.BatchID)
	}

	return delivery, nil
}

// StartDelivery moves the distributor's own pending delivery to in_transit.
func (s *SupplyChainService) StartDelivery(ctx context.Context, actor models.Actor, deliveryID string, req models.StartDeliveryRequest) error {
	if actor.Role != models.RoleDistributor {
		return appErrors.Clone(appErrors.ErrForbidden, "only distributors can start deliveries")
	}

	detail, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	if detail.DistributorID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "delivery belongs to another distributor")
	}

	// Repeating the start action on a rolling delivery succeeds without
	// touching the row.
	if detail.Status == models.DeliveryStatusInTransit {
		return nil
	}
	if !models.CanTransitionDelivery(detail.Status, models.DeliveryStatusInTransit) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("delivery is %s, not pending", detail.Status))
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.deliveries.UpdateStatusIf(ctx, tx, deliveryID, models.DeliveryStatusPending, models.DeliveryStatusInTransit)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race since the read above; re-check so a concurrent
			// start still lands as a no-op.
			current, err := s.deliveries.FindByID(ctx, deliveryID)
			if err != nil {
				return err
			}
			if current.Status == models.DeliveryStatusInTransit {
				return nil
			}
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("delivery is %s, not pending", current.Status))
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start delivery")
	}

	if req.TrackingInfo != "" {
		if err := s.deliveries.UpdateTracking(ctx, deliveryID, req.TrackingInfo); err != nil {
			s.logger.Warn("failed to store tracking info", zap.Error(err), zap.String("delivery_id", deliveryID))
		}
	}

	return nil
}

// AcceptDelivery is the retailer's receipt. In one transaction the delivery
// and the crop both become delivered and the Retail ledger event is appended.
func (s *SupplyChainService) AcceptDelivery(ctx context.Context, actor models.Actor, deliveryID string, req models.AcceptDeliveryRequest) error {
	if actor.Role != models.RoleRetailer {
		return appErrors.Clone(appErrors.ErrForbidden, "only retailers can accept deliveries")
	}

	detail, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	if detail.RetailerID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "delivery is addressed to another retailer")
	}
	if !models.CanTransitionDelivery(detail.Status, models.DeliveryStatusDelivered) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("delivery is %s, not in_transit", detail.Status))
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.deliveries.UpdateStatusIf(ctx, tx, deliveryID, models.DeliveryStatusInTransit, models.DeliveryStatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("delivery is %s, not in_transit", detail.Status))
		}
		ok, err = s.crops.UpdateStatusIf(ctx, tx, detail.CropID, models.CropStatusInTransit, models.CropStatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "crop status no longer matches its delivery")
		}
		details := "Received at retail location"
		if req.Notes != "" {
			details += ": " + req.Notes
		}
		return s.traces.Append(ctx, tx, &models.TraceEvent{
			BatchID:  detail.BatchID,
			StepType: models.StepRetail,
			UserID:   actor.ID,
			Location: req.Location,
			Details:  details,
		})
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept delivery")
	}

	if s.onAppend != nil {
		s.onAppend(models.StepRetail, detail.BatchID)
	}

	return nil
}

// RecordSale closes the batch journey. The crop moves from delivered to sold
// and the Sale ledger event is appended in the same transaction.
func (s *SupplyChainService) RecordSale(ctx context.Context, actor models.Actor, req models.RecordSaleRequest) error {
	if actor.Role != models.RoleRetailer {
		return appErrors.Clone(appErrors.ErrForbidden, "only retailers can record sales")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sale payload")
	}

	crop, err := s.crops.FindByID(ctx, req.CropID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "crop not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load crop")
	}
	if !models.CanTransitionCrop(crop.Status, models.CropStatusSold) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("crop is %s, not delivered", crop.Status))
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.crops.UpdateStatusIf(ctx, tx, crop.ID, models.CropStatusDelivered, models.CropStatusSold)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "crop was sold concurrently")
		}
		return s.traces.Append(ctx, tx, &models.TraceEvent{
			BatchID:  crop.BatchID,
			StepType: models.StepSale,
			UserID:   actor.ID,
			Location: req.Location,
			Details:  fmt.Sprintf("Sold %.2f units for %.2f", req.Quantity, req.Amount),
		})
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sale")
	}

	if s.onAppend != nil {
		s.onAppend(models.StepSale, crop.BatchID)
	}

	return nil
}

// GetDelivery returns a delivery with joined crop and counterparty fields.
func (s *SupplyChainService) GetDelivery(ctx context.Context, id string) (*models.DeliveryDetail, error) {
	detail, err := s.deliveries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load delivery")
	}
	return detail, nil
}

// ListTransactions returns custody transfers matching the filter.
func (s *SupplyChainService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error) {
	transactions, total, err := s.transactions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return transactions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListDeliveries returns deliveries matching the filter with pagination info.
func (s *SupplyChainService) ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryDetail, *models.Pagination, error) {
	deliveries, total, err := s.deliveries.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deliveries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return deliveries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
