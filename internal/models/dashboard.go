package models

import "time"

// RoleCount pairs a role with its user count.
type RoleCount struct {
	Role  UserRole `db:"role" json:"role"`
	Count int      `db:"count" json:"count"`
}

// StatusCount pairs a crop status with its count.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// TraceCompleteness summarises how many batches have a usable provenance
// chain (two or more ledger steps).
type TraceCompleteness struct {
	TotalBatches    int     `json:"total_batches"`
	CompleteBatches int     `json:"complete_batches"`
	Ratio           float64 `json:"ratio"`
}

// DashboardOverview aggregates the admin landing statistics.
type DashboardOverview struct {
	UsersByRole       []RoleCount       `json:"users_by_role"`
	CropsByStatus     []StatusCount     `json:"crops_by_status"`
	DeliveriesByState []StatusCount     `json:"deliveries_by_status"`
	PaymentsTotal     float64           `json:"payments_total"`
	PaymentsCount     int               `json:"payments_count"`
	Traceability      TraceCompleteness `json:"traceability"`
	GeneratedAt       time.Time         `json:"generated_at"`
}
