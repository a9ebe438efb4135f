package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/pkg/export"
	"github.com/noah-isme/agritrace-api/pkg/storage"
)

type exportTraceReader interface {
	ListByBatch(ctx context.Context, batchID string) ([]models.TraceEventDetail, error)
}

type exportCropReader interface {
	FindByBatchID(ctx context.Context, batchID string) (*models.Crop, error)
	List(ctx context.Context, filter models.CropFilter) ([]models.Crop, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	traces  exportTraceReader
	crops   exportCropReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(traces exportTraceReader, crops exportCropReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		traces:  traces,
		crops:   crops,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	batchPart := sanitizeFilename(job.Params.BatchID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), batchPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeBatchJourney:
		return s.buildJourneyDataset(ctx, job.Params)
	case models.ReportTypeCropRegister:
		return s.buildCropRegisterDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildJourneyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.BatchID == "" {
		return export.Dataset{}, "", fmt.Errorf("batch id required for journey report")
	}
	events, err := s.traces.ListByBatch(ctx, params.BatchID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		dataRows = append(dataRows, map[string]string{
			"Recorded At": e.RecordedAt.UTC().Format(time.RFC3339),
			"Step":        string(e.StepType),
			"Actor":       e.UserName,
			"Role":        string(e.UserRole),
			"Location":    deref(e.Location),
			"Details":     e.Details,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Recorded At", "Step", "Actor", "Role", "Location", "Details"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Batch Journey %s", params.BatchID)
	return dataset, title, nil
}

func (s *ExportService) buildCropRegisterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	crops, _, err := s.crops.List(ctx, models.CropFilter{PageSize: 100})
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(crops))
	for _, c := range crops {
		dataRows = append(dataRows, map[string]string{
			"Batch ID":     c.BatchID,
			"Crop":         c.Name,
			"Type":         c.Type,
			"Quantity":     fmt.Sprintf("%.2f", c.Quantity),
			"Price":        fmt.Sprintf("%.2f", c.Price),
			"Status":       string(c.Status),
			"Harvest Date": c.HarvestDate.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Batch ID", "Crop", "Type", "Quantity", "Price", "Status", "Harvest Date"},
		Rows:    dataRows,
	}
	return dataset, "Crop Register", nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
