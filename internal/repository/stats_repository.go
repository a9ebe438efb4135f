package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agritrace-api/internal/models"
)

// StatsRepository aggregates dashboard statistics across entity tables.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new instance of StatsRepository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// UsersByRole returns user counts grouped by role.
func (r *StatsRepository) UsersByRole(ctx context.Context) ([]models.RoleCount, error) {
	const query = `SELECT role, COUNT(*) AS count FROM users GROUP BY role ORDER BY role`
	var counts []models.RoleCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	return counts, nil
}

// CropsByStatus returns crop counts grouped by lifecycle status.
func (r *StatsRepository) CropsByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM crops GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("crops by status: %w", err)
	}
	return counts, nil
}

// DeliveriesByStatus returns delivery counts grouped by status.
func (r *StatsRepository) DeliveriesByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM deliveries GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("deliveries by status: %w", err)
	}
	return counts, nil
}

// PaymentsSummary returns the count and total of completed payments.
func (r *StatsRepository) PaymentsSummary(ctx context.Context) (int, float64, error) {
	const query = `SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total FROM payments WHERE status = 'completed'`
	var row struct {
		Count int     `db:"count"`
		Total float64 `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("payments summary: %w", err)
	}
	return row.Count, row.Total, nil
}

// TraceCompleteness counts registered batches and those with a usable
// provenance chain of at least two ledger steps.
func (r *StatsRepository) TraceCompleteness(ctx context.Context) (models.TraceCompleteness, error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE steps >= 2) AS complete
		FROM (
			SELECT c.batch_id, COUNT(t.id) AS steps
			FROM crops c
			LEFT JOIN traceability t ON t.batch_id = c.batch_id
			GROUP BY c.batch_id
		) s`
	var row struct {
		Total    int `db:"total"`
		Complete int `db:"complete"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return models.TraceCompleteness{}, fmt.Errorf("trace completeness: %w", err)
	}
	result := models.TraceCompleteness{TotalBatches: row.Total, CompleteBatches: row.Complete}
	if row.Total > 0 {
		result.Ratio = float64(row.Complete) / float64(row.Total)
	}
	return result, nil
}
