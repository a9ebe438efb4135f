package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/service"
)

type fakeLedgerStore struct {
	events []models.TraceEventDetail
}

func (f *fakeLedgerStore) Append(ctx context.Context, q sqlx.ExtContext, event *models.TraceEvent) error {
	f.events = append(f.events, models.TraceEventDetail{TraceEvent: *event})
	return nil
}

func (f *fakeLedgerStore) ListByBatch(ctx context.Context, batchID string) ([]models.TraceEventDetail, error) {
	out := []models.TraceEventDetail{}
	for _, e := range f.events {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCropFinder struct {
	crops map[string]*models.Crop
}

func (f *fakeCropFinder) FindByBatchID(ctx context.Context, batchID string) (*models.Crop, error) {
	crop, ok := f.crops[batchID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return crop, nil
}

type fakeUserFinder struct {
	users map[string]*models.User
}

func (f *fakeUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func newTraceHandler(ledger *fakeLedgerStore, crops *fakeCropFinder, users *fakeUserFinder) *TraceHandler {
	svc := service.NewTraceService(ledger, crops, users, fakeTxRunner{}, nil, nil, time.Minute, nil, nil)
	return NewTraceHandler(svc)
}

func TestTraceBatchEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ledger := &fakeLedgerStore{events: []models.TraceEventDetail{
		{TraceEvent: models.TraceEvent{ID: "t1", BatchID: "BATCH_0A1B2C3D", StepType: models.StepHarvest, Details: "Crop Tomato harvested"}},
	}}
	crops := &fakeCropFinder{crops: map[string]*models.Crop{
		"BATCH_0A1B2C3D": {ID: "c1", BatchID: "BATCH_0A1B2C3D", Name: "Tomato", FarmerID: "farmer-1"},
	}}
	users := &fakeUserFinder{users: map[string]*models.User{
		"farmer-1": {ID: "farmer-1", Name: "Alice", Role: models.RoleFarmer},
	}}
	h := newTraceHandler(ledger, crops, users)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/trace/BATCH_0A1B2C3D", nil)
	c.Params = gin.Params{{Key: "batchId", Value: "BATCH_0A1B2C3D"}}

	h.TraceBatch(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	crop, ok := envelope.Data["crop"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Tomato", crop["name"])
	journey, ok := envelope.Data["journey"].([]interface{})
	require.True(t, ok)
	assert.Len(t, journey, 1)
}

func TestTraceBatchEndpointUnknownBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTraceHandler(&fakeLedgerStore{}, &fakeCropFinder{crops: map[string]*models.Crop{}}, &fakeUserFinder{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/trace/BATCH_FFFFFFFF", nil)
	c.Params = gin.Params{{Key: "batchId", Value: "BATCH_FFFFFFFF"}}

	h.TraceBatch(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraceQRCodeEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTraceHandler(&fakeLedgerStore{}, &fakeCropFinder{crops: map[string]*models.Crop{}}, &fakeUserFinder{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/trace/BATCH_0A1B2C3D/qr", nil)
	c.Params = gin.Params{{Key: "batchId", Value: "BATCH_0A1B2C3D"}}

	h.QRCode(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	body := rec.Body.Bytes()
	require.True(t, len(body) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body[:4])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
