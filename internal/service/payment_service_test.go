package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments []*models.Payment
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	copy := *payment
	m.payments = append(m.payments, &copy)
	return nil
}

func (m *mockPaymentRepo) ExistsForCrop(ctx context.Context, fromUserID, cropID string) (bool, error) {
	for _, p := range m.payments {
		if p.FromUserID == fromUserID && p.CropID != nil && *p.CropID == cropID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var out []models.Payment
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func TestPaymentCreateIsCompleted(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := NewPaymentService(repo, validator.New(), zap.NewNop())

	actor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	payment, err := svc.Create(context.Background(), actor, models.PaymentCreateRequest{ToUserID: "farmer-1", Amount: 420})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "dist-1", payment.FromUserID)
}

func TestPaymentCreateRejectsSelfPayment(t *testing.T) {
	svc := NewPaymentService(&mockPaymentRepo{}, validator.New(), zap.NewNop())

	actor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	_, err := svc.Create(context.Background(), actor, models.PaymentCreateRequest{ToUserID: "dist-1", Amount: 10})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestPaymentCreateRejectsDuplicateCropPayment(t *testing.T) {
	repo := &mockPaymentRepo{}
	svc := NewPaymentService(repo, validator.New(), zap.NewNop())

	cropID := "c1"
	actor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	_, err := svc.Create(context.Background(), actor, models.PaymentCreateRequest{ToUserID: "farmer-1", Amount: 420, CropID: &cropID})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), actor, models.PaymentCreateRequest{ToUserID: "farmer-1", Amount: 420, CropID: &cropID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPaymentTransitionNotImplemented(t *testing.T) {
	svc := NewPaymentService(&mockPaymentRepo{}, validator.New(), zap.NewNop())

	err := svc.Transition(context.Background(), "p1", models.PaymentStatusFailed)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotImplemented.Code, appErr.Code)
}
