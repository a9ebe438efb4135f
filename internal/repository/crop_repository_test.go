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

func TestCreateCropDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	mock.ExpectExec("INSERT INTO crops").WillReturnResult(sqlmock.NewResult(1, 1))

	crop := &models.Crop{FarmerID: "u1", Name: "Tomato", Type: "Vegetable", Quantity: 120, Price: 3.5, HarvestDate: time.Now(), BatchID: "BATCH_0A1B2C3D"}
	err := repo.Create(context.Background(), db, crop)
	require.NoError(t, err)
	assert.NotEmpty(t, crop.ID)
	assert.Equal(t, models.CropStatusAvailable, crop.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCropByBatchID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "farmer_id", "name", "type", "quantity", "price", "harvest_date", "batch_id", "status", "photo_url", "created_at", "updated_at"}).
		AddRow("c1", "u1", "Tomato", "Vegetable", 120.0, 3.5, now, "BATCH_0A1B2C3D", string(models.CropStatusAvailable), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at FROM crops WHERE batch_id = $1 LIMIT 1")).
		WithArgs("BATCH_0A1B2C3D").
		WillReturnRows(rows)

	crop, err := repo.FindByBatchID(context.Background(), "BATCH_0A1B2C3D")
	require.NoError(t, err)
	assert.Equal(t, "c1", crop.ID)
	assert.Equal(t, models.CropStatusAvailable, crop.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCropsByFarmer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	farmerID := "u1"
	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "farmer_id", "name", "type", "quantity", "price", "harvest_date", "batch_id", "status", "photo_url", "created_at", "updated_at"}).
		AddRow("c1", farmerID, "Tomato", "Vegetable", 120.0, 3.5, now, "BATCH_0A1B2C3D", string(models.CropStatusAvailable), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at FROM crops WHERE 1=1 AND farmer_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(farmerID).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM crops WHERE 1=1 AND farmer_id = $1")).
		WithArgs(farmerID).
		WillReturnRows(countRows)

	crops, total, err := repo.List(context.Background(), models.CropFilter{FarmerID: &farmerID})
	require.NoError(t, err)
	require.Len(t, crops, 1)
	assert.Equal(t, farmerID, crops[0].FarmerID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCropStatusIf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE crops SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("c1", models.CropStatusAvailable, models.CropStatusInTransit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatusIf(context.Background(), db, "c1", models.CropStatusAvailable, models.CropStatusInTransit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCropStatusIfStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE crops SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("c1", models.CropStatusAvailable, models.CropStatusInTransit, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatusIf(context.Background(), db, "c1", models.CropStatusAvailable, models.CropStatusInTransit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideCropStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCropRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE crops SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("c1", models.CropStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.OverrideStatus(context.Background(), db, "c1", models.CropStatusAvailable)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
