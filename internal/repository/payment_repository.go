package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agritrace-api/internal/models"
)

// PaymentRepository provides database access for monetary transfers.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment row. Status is fixed at creation time.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO payments (id, amount, from_user_id, to_user_id, crop_id, status, method, external_ref, created_at) VALUES (:id, :amount, :from_user_id, :to_user_id, :crop_id, :status, :method, :external_ref, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ExistsForCrop reports whether the payer already paid for the given crop.
func (r *PaymentRepository) ExistsForCrop(ctx context.Context, fromUserID, cropID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE from_user_id = $1 AND crop_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, fromUserID, cropID); err != nil {
		return false, fmt.Errorf("check payment exists: %w", err)
	}
	return count > 0, nil
}

// List returns payments matching the filter with the total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	baseQuery := `FROM payments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.FromUserID != nil {
		conditions = append(conditions, fmt.Sprintf("from_user_id = $%d", len(args)+1))
		args = append(args, *filter.FromUserID)
	}
	if filter.ToUserID != nil {
		conditions = append(conditions, fmt.Sprintf("to_user_id = $%d", len(args)+1))
		args = append(args, *filter.ToUserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, amount, from_user_id, to_user_id, crop_id, status, method, external_ref, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	return payments, total, nil
}
