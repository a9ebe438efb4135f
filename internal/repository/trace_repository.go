package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/agritrace-api/internal/models"
)

// TraceRepository provides append-only access to the traceability ledger.
// Events are immutable once written; the only read is an ordered scan per
// batch identifier.
type TraceRepository struct {
	db *sqlx.DB
}

// NewTraceRepository creates a new instance of TraceRepository.
func NewTraceRepository(db *sqlx.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Append writes one ledger event. The timestamp is assigned by the database
// at write time, never by the caller, so write order equals timestamp order
// down to the store's clock resolution. The batch id is deliberately not
// checked against the crops table: a ledger entry may precede registration.
func (r *TraceRepository) Append(ctx context.Context, q sqlx.ExtContext, event *models.TraceEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = "active"
	}

	const query = `INSERT INTO traceability (id, batch_id, step_type, user_id, location, details, recorded_at, status) VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7) RETURNING recorded_at`
	row := q.QueryRowxContext(ctx, query,
		event.ID,
		event.BatchID,
		event.StepType,
		event.UserID,
		event.Location,
		event.Details,
		event.Status,
	)
	if err := row.Scan(&event.RecordedAt); err != nil {
		return fmt.Errorf("append trace event: %w", err)
	}
	return nil
}

// ListByBatch returns every event for the batch in ascending timestamp order,
// with the row id as tie-break for equal timestamps. An unknown batch id
// yields an empty slice, not an error: "no provenance recorded yet" is a
// legitimate state.
func (r *TraceRepository) ListByBatch(ctx context.Context, batchID string) ([]models.TraceEventDetail, error) {
	const query = `SELECT t.id, t.batch_id, t.step_type, t.user_id, t.location, t.details, t.recorded_at, t.status,
		COALESCE(u.name, '') AS user_name, COALESCE(u.role, '') AS user_role
		FROM traceability t
		LEFT JOIN users u ON u.id = t.user_id
		WHERE t.batch_id = $1
		ORDER BY t.recorded_at ASC, t.id ASC`
	events := []models.TraceEventDetail{}
	if err := r.db.SelectContext(ctx, &events, query, batchID); err != nil {
		return nil, fmt.Errorf("list trace events: %w", err)
	}
	return events, nil
}

