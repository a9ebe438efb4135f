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

// DeliveryRepository provides database access for batch hand-offs.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository creates a new instance of DeliveryRepository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts a delivery row, optionally inside an enclosing transaction.
func (r *DeliveryRepository) Create(ctx context.Context, q sqlx.ExtContext, delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = now
	}
	delivery.UpdatedAt = now
	if delivery.Status == "" {
		delivery.Status = models.DeliveryStatusPending
	}

	const query = `INSERT INTO deliveries (id, crop_id, distributor_id, retailer_id, transport_details, delivery_date, status, tracking_info, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := q.ExecContext(ctx, query,
		delivery.ID,
		delivery.CropID,
		delivery.DistributorID,
		delivery.RetailerID,
		delivery.TransportDetails,
		delivery.DeliveryDate,
		delivery.Status,
		delivery.TrackingInfo,
		delivery.CreatedAt,
		delivery.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

// FindByID returns a delivery joined with its crop and counterparties.
func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*models.DeliveryDetail, error) {
	const query = `SELECT d.id, d.crop_id, d.distributor_id, d.retailer_id, d.transport_details, d.delivery_date, d.status, d.tracking_info, d.created_at, d.updated_at,
		c.name AS crop_name, c.batch_id, c.quantity, c.price, c.farmer_id,
		du.name AS distributor_name, ru.name AS retailer_name
		FROM deliveries d
		JOIN crops c ON c.id = d.crop_id
		JOIN users du ON du.id = d.distributor_id
		JOIN users ru ON ru.id = d.retailer_id
		WHERE d.id = $1 LIMIT 1`
	var detail models.DeliveryDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find delivery by id: %w", err)
	}
	return &detail, nil
}

// List returns deliveries matching the filter with the total count.
func (r *DeliveryRepository) List(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryDetail, int, error) {
	baseQuery := `FROM deliveries d
		JOIN crops c ON c.id = d.crop_id
		JOIN users du ON du.id = d.distributor_id
		JOIN users ru ON ru.id = d.retailer_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DistributorID != nil {
		conditions = append(conditions, fmt.Sprintf("d.distributor_id = $%d", len(args)+1))
		args = append(args, *filter.DistributorID)
	}
	if filter.RetailerID != nil {
		conditions = append(conditions, fmt.Sprintf("d.retailer_id = $%d", len(args)+1))
		args = append(args, *filter.RetailerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT d.id, d.crop_id, d.distributor_id, d.retailer_id, d.transport_details, d.delivery_date, d.status, d.tracking_info, d.created_at, d.updated_at,
		c.name AS crop_name, c.batch_id, c.quantity, c.price, c.farmer_id,
		du.name AS distributor_name, ru.name AS retailer_name %s ORDER BY d.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var deliveries []models.DeliveryDetail
	if err := r.db.SelectContext(ctx, &deliveries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	return deliveries, total, nil
}

// UpdateStatusIf advances the delivery status only when the stored status
// still matches expected. Returns false when the row was not in that state.
func (r *DeliveryRepository) UpdateStatusIf(ctx context.Context, q sqlx.ExtContext, id string, expected, next models.DeliveryStatus) (bool, error) {
	const query = `UPDATE deliveries SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := q.ExecContext(ctx, query, id, expected, next, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update delivery status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update delivery status rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateTracking stores a free-text tracking note on the delivery.
func (r *DeliveryRepository) UpdateTracking(ctx context.Context, id, info string) error {
	const query = `UPDATE deliveries SET tracking_info = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, info, time.Now().UTC()); err != nil {
		return fmt.Errorf("update delivery tracking: %w", err)
	}
	return nil
}
