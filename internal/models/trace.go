package models

import "time"

// StepType categorises a ledger event. The column is open-ended; any string
// is accepted on write, these are the ones the platform itself records.
type StepType string

const (
	StepHarvest        StepType = "Harvest"
	StepTransport      StepType = "Transport"
	StepRetail         StepType = "Retail"
	StepSale           StepType = "Sale"
	StepStatusOverride StepType = "StatusOverride"
)

// TraceEvent is one immutable record of the traceability ledger. The batch id
// is not required to reference an existing crop row at write time; a ledger
// entry may legally precede batch registration.
type TraceEvent struct {
	ID         string    `db:"id" json:"id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	StepType   StepType  `db:"step_type" json:"step_type"`
	UserID     string    `db:"user_id" json:"user_id"`
	Location   *string   `db:"location" json:"location,omitempty"`
	Details    string    `db:"details" json:"details"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	Status     string    `db:"status" json:"status"`
}

// TraceEventDetail joins the acting user's public fields for display.
type TraceEventDetail struct {
	TraceEvent
	UserName string   `db:"user_name" json:"user_name"`
	UserRole UserRole `db:"user_role" json:"user_role"`
}

// StepDisplay carries the per-step presentation hints used by both the admin
// inspector and the consumer scan view.
type StepDisplay struct {
	Icon  string `json:"icon"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var stepDisplays = map[StepType]StepDisplay{
	StepHarvest:        {Icon: "🌾", Label: "Harvested by Farmer", Color: "#22c55e"},
	StepTransport:      {Icon: "🚛", Label: "Picked up by Distributor", Color: "#3b82f6"},
	StepRetail:         {Icon: "🏪", Label: "Received by Retailer", Color: "#f59e0b"},
	StepSale:           {Icon: "🛒", Label: "Sold to Customer", Color: "#8b5cf6"},
	StepStatusOverride: {Icon: "✏️", Label: "Status adjusted by Farmer", Color: "#64748b"},
}

// DisplayFor returns the presentation hints for a step type. Unrecognised
// step types fall back to a generic marker labelled with the raw value.
func DisplayFor(step StepType) StepDisplay {
	if d, ok := stepDisplays[step]; ok {
		return d
	}
	return StepDisplay{Icon: "📍", Label: string(step), Color: "#6b7280"}
}

// TraceAppendRequest records a ledger event directly. The batch id is not
// required to reference a registered crop.
type TraceAppendRequest struct {
	BatchID  string   `json:"batch_id" validate:"required"`
	StepType StepType `json:"step_type" validate:"required"`
	Location *string  `json:"location,omitempty"`
	Details  string   `json:"details" validate:"required"`
}

// JourneyStep is a ledger event annotated for display.
type JourneyStep struct {
	TraceEventDetail
	Display StepDisplay `json:"display"`
}

// BatchTrace is the reconstructed chain-of-custody view for one batch.
type BatchTrace struct {
	Crop    Crop          `json:"crop"`
	Farmer  PublicProfile `json:"farmer"`
	Journey []JourneyStep `json:"journey"`
}
