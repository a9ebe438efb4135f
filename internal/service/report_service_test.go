package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agritrace-api/internal/models"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
	"github.com/noah-isme/agritrace-api/pkg/jobs"
)

type mockJobStore struct {
	jobs map[string]*models.ReportJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: map[string]*models.ReportJob{}}
}

func (m *mockJobStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, errNoJob
	}
	copy := *job
	return &copy, nil
}

func (m *mockJobStore) SetStatus(ctx context.Context, id string, status models.ReportStatus, resultURL, errMsg *string, finishedAt *time.Time) error {
	job, ok := m.jobs[id]
	if !ok {
		return errNoJob
	}
	job.Status = status
	job.ResultURL = resultURL
	job.ErrorMessage = errMsg
	job.FinishedAt = finishedAt
	return nil
}

func (m *mockJobStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	out := []models.ReportJob{}
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

var errNoJob = errors.New("job not found")

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockExporter struct {
	result *ExportResult
	err    error
	calls  int
}

func (m *mockExporter) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestReportCreateJobQueues(t *testing.T) {
	store := newMockJobStore()
	dispatcher := &mockDispatcher{}
	svc := NewReportService(store, dispatcher, nil, nil, ReportServiceConfig{})

	actor := models.Actor{ID: "farmer-1", Role: models.RoleFarmer}
	resp, err := svc.CreateJob(context.Background(), actor, ReportRequest{
		Type:    models.ReportTypeBatchJourney,
		BatchID: "BATCH_0A1B2C3D",
		Format:  models.ReportFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
}

func TestReportCreateJobRejectsMissingBatchID(t *testing.T) {
	svc := NewReportService(newMockJobStore(), &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), models.Actor{ID: "u1"}, ReportRequest{
		Type:   models.ReportTypeBatchJourney,
		Format: models.ReportFormatPDF,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReportCreateJobMarksFailedOnEnqueueError(t *testing.T) {
	store := newMockJobStore()
	dispatcher := &mockDispatcher{err: errors.New("queue full")}
	svc := NewReportService(store, dispatcher, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), models.Actor{ID: "u1"}, ReportRequest{
		Type:   models.ReportTypeCropRegister,
		Format: models.ReportFormatCSV,
	})
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportGetStatusEnforcesOwnership(t *testing.T) {
	store := newMockJobStore()
	job := &models.ReportJob{Type: models.ReportTypeCropRegister, Status: models.ReportStatusQueued, CreatedBy: "owner-1"}
	require.NoError(t, store.Create(context.Background(), job))
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), models.Actor{ID: "other", Role: models.RoleFarmer}, job.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	resp, err := svc.GetStatus(context.Background(), models.Actor{ID: "admin-1", Role: models.RoleAdmin}, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, resp.ID)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	store := newMockJobStore()
	job := &models.ReportJob{Type: models.ReportTypeBatchJourney, Status: models.ReportStatusQueued, CreatedBy: "u1"}
	require.NoError(t, store.Create(context.Background(), job))

	exporter := &mockExporter{result: &ExportResult{URL: "/api/v1/export/tok123"}}
	worker := NewReportWorker(store, exporter, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/export/tok123", *stored.ResultURL)
	assert.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerRequeuesThenFails(t *testing.T) {
	store := newMockJobStore()
	job := &models.ReportJob{Type: models.ReportTypeBatchJourney, Status: models.ReportStatusQueued, CreatedBy: "u1"}
	require.NoError(t, store.Create(context.Background(), job))

	exporter := &mockExporter{err: errors.New("render failed")}
	worker := NewReportWorker(store, exporter, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})
	require.Error(t, err)
	stored, _ := store.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ReportStatusQueued, stored.Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2})
	require.Error(t, err)
	stored, _ = store.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)
}
