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

// TransactionRepository provides append-only access to custody transfers.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a custody transfer record, optionally inside an enclosing
// transaction. Rows are never updated or deleted afterwards.
func (r *TransactionRepository) Create(ctx context.Context, q sqlx.ExtContext, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO transactions (id, crop_id, from_user_id, to_user_id, transaction_type, amount, transport_details, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := q.ExecContext(ctx, query,
		txn.ID,
		txn.CropID,
		txn.FromUserID,
		txn.ToUserID,
		txn.TransactionType,
		txn.Amount,
		txn.TransportDetails,
		txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// List returns custody transfers matching the filter with the total count.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	baseQuery := `FROM transactions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CropID != nil {
		conditions = append(conditions, fmt.Sprintf("crop_id = $%d", len(args)+1))
		args = append(args, *filter.CropID)
	}
	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("(from_user_id = $%d OR to_user_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, *filter.UserID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, crop_id, from_user_id, to_user_id, transaction_type, amount, transport_details, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var txns []models.Transaction
	if err := r.db.SelectContext(ctx, &txns, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	return txns, total, nil
}
