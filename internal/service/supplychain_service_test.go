package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
)

type scDeliveryStore struct {
	deliveries map[string]*models.DeliveryDetail
	crops      *mockCropStore
}

func newSCDeliveryStore(crops *mockCropStore) *scDeliveryStore {
	return &scDeliveryStore{deliveries: make(map[string]*models.DeliveryDetail), crops: crops}
}

func (m *scDeliveryStore) Create(ctx context.Context, q sqlx.ExtContext, delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	detail := &models.DeliveryDetail{Delivery: *delivery}
	if crop, ok := m.crops.crops[delivery.CropID]; ok {
		detail.BatchID = crop.BatchID
		detail.CropName = crop.Name
		detail.FarmerID = crop.FarmerID
	}
	m.deliveries[delivery.ID] = detail
	return nil
}

func (m *scDeliveryStore) FindByID(ctx context.Context, id string) (*models.DeliveryDetail, error) {
	if d, ok := m.deliveries[id]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *scDeliveryStore) List(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryDetail, int, error) {
	var out []models.DeliveryDetail
	for _, d := range m.deliveries {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *scDeliveryStore) UpdateStatusIf(ctx context.Context, q sqlx.ExtContext, id string, expected, next models.DeliveryStatus) (bool, error) {
	d, ok := m.deliveries[id]
	if !ok || d.Status != expected {
		return false, nil
	}
	d.Status = next
	return true, nil
}

func (m *scDeliveryStore) UpdateTracking(ctx context.Context, id, info string) error {
	if d, ok := m.deliveries[id]; ok {
		d.TrackingInfo = &info
		return nil
	}
	return sql.ErrNoRows
}

type scTxnStore struct {
	transactions []*models.Transaction
}

func (m *scTxnStore) Create(ctx context.Context, q sqlx.ExtContext, txn *models.Transaction) error {
	copy := *txn
	m.transactions = append(m.transactions, &copy)
	return nil
}

func (m *scTxnStore) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	var out []models.Transaction
	for _, t := range m.transactions {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func newSupplyChainFixture() (*SupplyChainService, *mockCropStore, *scDeliveryStore, *scTxnStore, *mockLedger) {
	crops := newMockCropStore()
	deliveries := newSCDeliveryStore(crops)
	txns := &scTxnStore{}
	ledger := &mockLedger{}
	svc := NewSupplyChainService(crops, deliveries, txns, ledger, mockTxRunner{}, validator.New(), zap.NewNop())
	return svc, crops, deliveries, txns, ledger
}

func seedCrop(crops *mockCropStore, status models.CropStatus) *models.Crop {
	crop := &models.Crop{
		ID:       "c1",
		FarmerID: "farmer-1",
		Name:     "Tomato",
		Type:     "Vegetable",
		Quantity: 120,
		Price:    3.5,
		BatchID:  "BATCH_0A1B2C3D",
		Status:   status,
	}
	crops.crops[crop.ID] = crop
	return crop
}

func TestAcceptCropHappyPath(t *testing.T) {
	svc, crops, deliveries, txns, ledger := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	actor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	delivery, err := svc.AcceptCrop(context.Background(), actor, models.AcceptCropRequest{
		CropID:           "c1",
		RetailerID:       "ret-1",
		TransportDetails: "Truck B-112",
		DeliveryDate:     time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, models.CropStatusInTransit, crops.crops["c1"].Status)
	assert.Equal(t, models.DeliveryStatusPending, delivery.Status)
	assert.Len(t, deliveries.deliveries, 1)

	require.Len(t, txns.transactions, 1)
	assert.Equal(t, models.TransactionTypeProcurement, txns.transactions[0].TransactionType)
	assert.Equal(t, "farmer-1", txns.transactions[0].FromUserID)
	assert.Equal(t, "dist-1", txns.transactions[0].ToUserID)
	require.NotNil(t, txns.transactions[0].Amount)
	assert.InDelta(t, 420.0, *txns.transactions[0].Amount, 0.001)

	require.Len(t, ledger.events, 1)
	assert.Equal(t, models.StepTransport, ledger.events[0].StepType)
	assert.Equal(t, "BATCH_0A1B2C3D", ledger.events[0].BatchID)
}

func TestAcceptCropRejectsNonAvailable(t *testing.T) {
	svc, crops, _, _, ledger := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusSold)

	actor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	_, err := svc.AcceptCrop(context.Background(), actor, models.AcceptCropRequest{
		CropID:           "c1",
		RetailerID:       "ret-1",
		TransportDetails: "Truck B-112",
		DeliveryDate:     time.Now(),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, ledger.events)
}

func TestAcceptCropRejectsWrongRole(t *testing.T) {
	svc, crops, _, _, _ := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	_, err := svc.AcceptCrop(context.Background(), models.Actor{ID: "farmer-1", Role: models.RoleFarmer}, models.AcceptCropRequest{
		CropID: "c1", RetailerID: "ret-1", TransportDetails: "x", DeliveryDate: time.Now(),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestFullJourney(t *testing.T) {
	svc, crops, deliveries, _, ledger := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	distributor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	retailer := models.Actor{ID: "ret-1", Role: models.RoleRetailer}

	delivery, err := svc.AcceptCrop(context.Background(), distributor, models.AcceptCropRequest{
		CropID:           "c1",
		RetailerID:       "ret-1",
		TransportDetails: "Truck B-112",
		DeliveryDate:     time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	err = svc.StartDelivery(context.Background(), distributor, delivery.ID, models.StartDeliveryRequest{TrackingInfo: "left warehouse"})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusInTransit, deliveries.deliveries[delivery.ID].Status)

	err = svc.AcceptDelivery(context.Background(), retailer, delivery.ID, models.AcceptDeliveryRequest{Notes: "all crates intact"})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, deliveries.deliveries[delivery.ID].Status)
	assert.Equal(t, models.CropStatusDelivered, crops.crops["c1"].Status)

	err = svc.RecordSale(context.Background(), retailer, models.RecordSaleRequest{CropID: "c1", Quantity: 5, Amount: 17.5})
	require.NoError(t, err)
	assert.Equal(t, models.CropStatusSold, crops.crops["c1"].Status)

	require.Len(t, ledger.events, 3)
	assert.Equal(t, models.StepTransport, ledger.events[0].StepType)
	assert.Equal(t, models.StepRetail, ledger.events[1].StepType)
	assert.Equal(t, models.StepSale, ledger.events[2].StepType)
	for _, e := range ledger.events {
		assert.Equal(t, "BATCH_0A1B2C3D", e.BatchID)
	}
}

func TestAcceptDeliveryRejectsWrongRetailer(t *testing.T) {
	svc, crops, _, _, _ := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	distributor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	delivery, err := svc.AcceptCrop(context.Background(), distributor, models.AcceptCropRequest{
		CropID: "c1", RetailerID: "ret-1", TransportDetails: "x", DeliveryDate: time.Now(),
	})
	require.NoError(t, err)

	err = svc.AcceptDelivery(context.Background(), models.Actor{ID: "ret-2", Role: models.RoleRetailer}, delivery.ID, models.AcceptDeliveryRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestStartDeliveryRepeatIsNoOp(t *testing.T) {
	svc, crops, deliveries, _, _ := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	distributor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	delivery, err := svc.AcceptCrop(context.Background(), distributor, models.AcceptCropRequest{
		CropID: "c1", RetailerID: "ret-1", TransportDetails: "x", DeliveryDate: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.StartDelivery(context.Background(), distributor, delivery.ID, models.StartDeliveryRequest{TrackingInfo: "truck 7"}))
	assert.Equal(t, models.DeliveryStatusInTransit, deliveries.deliveries[delivery.ID].Status)

	err = svc.StartDelivery(context.Background(), distributor, delivery.ID, models.StartDeliveryRequest{TrackingInfo: "should be ignored"})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusInTransit, deliveries.deliveries[delivery.ID].Status)
	require.NotNil(t, deliveries.deliveries[delivery.ID].TrackingInfo)
	assert.Equal(t, "truck 7", *deliveries.deliveries[delivery.ID].TrackingInfo)
}

func TestStartDeliveryRejectsDelivered(t *testing.T) {
	svc, crops, deliveries, _, _ := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	distributor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	delivery, err := svc.AcceptCrop(context.Background(), distributor, models.AcceptCropRequest{
		CropID: "c1", RetailerID: "ret-1", TransportDetails: "x", DeliveryDate: time.Now(),
	})
	require.NoError(t, err)
	deliveries.deliveries[delivery.ID].Status = models.DeliveryStatusDelivered

	err = svc.StartDelivery(context.Background(), distributor, delivery.ID, models.StartDeliveryRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestAcceptDeliveryRequiresInTransit(t *testing.T) {
	svc, crops, _, _, ledger := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	distributor := models.Actor{ID: "dist-1", Role: models.RoleDistributor}
	delivery, err := svc.AcceptCrop(context.Background(), distributor, models.AcceptCropRequest{
		CropID: "c1", RetailerID: "ret-1", TransportDetails: "x", DeliveryDate: time.Now(),
	})
	require.NoError(t, err)
	eventsBefore := len(ledger.events)

	err = svc.AcceptDelivery(context.Background(), models.Actor{ID: "ret-1", Role: models.RoleRetailer}, delivery.ID, models.AcceptDeliveryRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Len(t, ledger.events, eventsBefore)
}

func TestRecordSaleRequiresDelivered(t *testing.T) {
	svc, crops, _, _, _ := newSupplyChainFixture()
	seedCrop(crops, models.CropStatusAvailable)

	err := svc.RecordSale(context.Background(), models.Actor{ID: "ret-1", Role: models.RoleRetailer}, models.RecordSaleRequest{
		CropID: "c1", Quantity: 1, Amount: 3.5,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}
