package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agritrace-api/internal/models"
)

func TestCreateDeliveryDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeliveryRepository(db)

	mock.ExpectExec("INSERT INTO deliveries").WillReturnResult(sqlmock.NewResult(1, 1))

	delivery := &models.Delivery{CropID: "c1", DistributorID: "u2", RetailerID: "u3", TransportDetails: "Truck B-112", DeliveryDate: time.Now()}
	err := repo.Create(context.Background(), db, delivery)
	require.NoError(t, err)
	assert.NotEmpty(t, delivery.ID)
	assert.Equal(t, models.DeliveryStatusPending, delivery.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDeliveryByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeliveryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "crop_id", "distributor_id", "retailer_id", "transport_details", "delivery_date", "status", "tracking_info", "created_at", "updated_at",
		"crop_name", "batch_id", "quantity", "price", "farmer_id", "distributor_name", "retailer_name",
	}).AddRow("d1", "c1", "u2", "u3", "Truck B-112", now, string(models.DeliveryStatusPending), "", now, now,
		"Tomato", "BATCH_0A1B2C3D", 120.0, 3.5, "u1", "Dian", "Rizal")
	mock.ExpectQuery("SELECT (.+) FROM deliveries d").
		WithArgs("d1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", detail.ID)
	assert.Equal(t, "BATCH_0A1B2C3D", detail.BatchID)
	assert.Equal(t, "Dian", detail.DistributorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeliveriesByDistributor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeliveryRepository(db)

	distributorID := "u2"
	now := time.Now()
	listRows := sqlmock.NewRows([]string{
		"id", "crop_id", "distributor_id", "retailer_id", "transport_details", "delivery_date", "status", "tracking_info", "created_at", "updated_at",
		"crop_name", "batch_id", "quantity", "price", "farmer_id", "distributor_name", "retailer_name",
	}).AddRow("d1", "c1", distributorID, "u3", "Truck B-112", now, string(models.DeliveryStatusInTransit), "", now, now,
		"Tomato", "BATCH_0A1B2C3D", 120.0, 3.5, "u1", "Dian", "Rizal")
	mock.ExpectQuery("SELECT (.+) FROM deliveries d").
		WithArgs(distributorID).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT(.+) FROM deliveries d").
		WithArgs(distributorID).
		WillReturnRows(countRows)

	deliveries, total, err := repo.List(context.Background(), models.DeliveryFilter{DistributorID: &distributorID})
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, distributorID, deliveries[0].DistributorID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeliveryStatusIf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeliveryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE deliveries SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("d1", models.DeliveryStatusPending, models.DeliveryStatusInTransit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatusIf(context.Background(), db, "d1", models.DeliveryStatusPending, models.DeliveryStatusInTransit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDeliveryStatusIfStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeliveryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE deliveries SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("d1", models.DeliveryStatusInTransit, models.DeliveryStatusDelivered, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatusIf(context.Background(), db, "d1", models.DeliveryStatusInTransit, models.DeliveryStatusDelivered)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
