package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agritrace-api/internal/models"
)

// BatchIDConstraint is the unique constraint guarding crops.batch_id.
const BatchIDConstraint = "crops_batch_id_key"

// CropRepository provides database access for harvested batches.
type CropRepository struct {
	db *sqlx.DB
}

// NewCropRepository creates a new instance of CropRepository.
func NewCropRepository(db *sqlx.DB) *CropRepository {
	return &CropRepository{db: db}
}

const cropColumns = "id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at"

// Create inserts a new crop row, optionally inside an enclosing transaction.
// Callers must treat a batch-id unique violation as retryable with a freshly
// generated identifier.
func (r *CropRepository) Create(ctx context.Context, q sqlx.ExtContext, crop *models.Crop) error {
	if crop.ID == "" {
		crop.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if crop.CreatedAt.IsZero() {
		crop.CreatedAt = now
	}
	crop.UpdatedAt = now
	if crop.Status == "" {
		crop.Status = models.CropStatusAvailable
	}

	const query = `INSERT INTO crops (id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at) VALUES (:id, :farmer_id, :name, :type, :quantity, :price, :harvest_date, :batch_id, :status, :photo_url, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, crop); err != nil {
		return fmt.Errorf("create crop: %w", err)
	}
	return nil
}

// FindByID returns a crop by identifier.
func (r *CropRepository) FindByID(ctx context.Context, id string) (*models.Crop, error) {
	const query = `SELECT id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at FROM crops WHERE id = $1 LIMIT 1`
	var crop models.Crop
	if err := r.db.GetContext(ctx, &crop, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find crop by id: %w", err)
	}
	return &crop, nil
}

// FindByBatchID returns the crop anchoring the given batch identifier.
func (r *CropRepository) FindByBatchID(ctx context.Context, batchID string) (*models.Crop, error) {
	const query = `SELECT id, farmer_id, name, type, quantity, price, harvest_date, batch_id, status, photo_url, created_at, updated_at FROM crops WHERE batch_id = $1 LIMIT 1`
	var crop models.Crop
	if err := r.db.GetContext(ctx, &crop, query, batchID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find crop by batch id: %w", err)
	}
	return &crop, nil
}

// List returns crops matching the filter with the total count.
func (r *CropRepository) List(ctx context.Context, filter models.CropFilter) ([]models.Crop, int, error) {
	baseQuery := `FROM crops WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.FarmerID != nil {
		conditions = append(conditions, fmt.Sprintf("farmer_id = $%d", len(args)+1))
		args = append(args, *filter.FarmerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(batch_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", cropColumns, baseQuery, pageSize, offset)

	var crops []models.Crop
	if err := r.db.SelectContext(ctx, &crops, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list crops: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count crops: %w", err)
	}

	return crops, total, nil
}

// UpdateStatusIf transitions the crop status only when the stored status
// still matches expected, so concurrent writers cannot silently clobber each
// other. It returns false when the row was not in the expected state.
func (r *CropRepository) UpdateStatusIf(ctx context.Context, q sqlx.ExtContext, id string, expected, next models.CropStatus) (bool, error) {
	const query = `UPDATE crops SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := q.ExecContext(ctx, query, id, expected, next, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update crop status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update crop status rows: %w", err)
	}
	return affected == 1, nil
}

// OverrideStatus sets the crop status unconditionally. This is the farmer's
// audited escape hatch, not a guarded transition.
func (r *CropRepository) OverrideStatus(ctx context.Context, q sqlx.ExtContext, id string, status models.CropStatus) error {
	const query = `UPDATE crops SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("override crop status: %w", err)
	}
	return nil
}
