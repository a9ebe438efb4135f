package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ExistsForCrop(ctx context.Context, fromUserID, cropID string) (bool, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

// PaymentService records settled transfers between participants. Payments
// are written once in their final state; there is no lifecycle machinery
// behind the status column.
type PaymentService struct {
	repo      paymentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs a PaymentService instance.
func NewPaymentService(repo paymentRepository, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{repo: repo, validator: validate, logger: logger}
}

// Create records a completed payment from the actor to another participant.
// Paying the same crop twice from the same payer is rejected.
func (s *PaymentService) Create(ctx context.Context, actor models.Actor, req models.PaymentCreateRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.ToUserID == actor.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payer and payee must differ")
	}

	if req.CropID != nil {
		exists, err := s.repo.ExistsForCrop(ctx, actor.ID, *req.CropID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing payments")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment for this crop already recorded")
		}
	}

	payment := &models.Payment{
		Amount:     req.Amount,
		FromUserID: actor.ID,
		ToUserID:   req.ToUserID,
		CropID:     req.CropID,
		Status:     models.PaymentStatusCompleted,
		Method:     req.Method,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("from", payment.FromUserID),
		zap.String("to", payment.ToUserID),
		zap.Float64("amount", payment.Amount))

	return payment, nil
}

// List returns payments matching the filter with pagination info.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Transition is reserved for a future settlement integration. Payments are
// immutable today, so any caller reaching this gets a 501.
func (s *PaymentService) Transition(ctx context.Context, id string, status models.PaymentStatus) error {
	return appErrors.Clone(appErrors.ErrNotImplemented, "payment transitions are not supported")
}
