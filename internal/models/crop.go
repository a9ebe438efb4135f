package models

import "time"

// CropStatus models the batch lifecycle projection.
type CropStatus string

const (
	CropStatusAvailable CropStatus = "available"
	CropStatusInTransit CropStatus = "in_transit"
	CropStatusDelivered CropStatus = "delivered"
	CropStatusSold      CropStatus = "sold"
)

// cropTransitions is the guarded transition table for the accept/deliver/sale
// actions. The farmer override deliberately bypasses it (see CanOverride).
var cropTransitions = map[CropStatus]CropStatus{
	CropStatusAvailable: CropStatusInTransit,
	CropStatusInTransit: CropStatusDelivered,
	CropStatusDelivered: CropStatusSold,
}

// CanTransitionCrop reports whether moving from to next is a legal guarded step.
func CanTransitionCrop(from, to CropStatus) bool {
	return cropTransitions[from] == to
}

// ValidCropStatus reports whether the value is a known lifecycle state.
func ValidCropStatus(s CropStatus) bool {
	switch s {
	case CropStatusAvailable, CropStatusInTransit, CropStatusDelivered, CropStatusSold:
		return true
	}
	return false
}

// Crop represents one harvested lot. The batch identifier is globally unique
// and immutable once assigned; crops are never deleted because they anchor
// every ledger lookup.
type Crop struct {
	ID          string     `db:"id" json:"id"`
	FarmerID    string     `db:"farmer_id" json:"farmer_id"`
	Name        string     `db:"name" json:"name"`
	Type        string     `db:"type" json:"type"`
	Quantity    float64    `db:"quantity" json:"quantity"`
	Price       float64    `db:"price" json:"price"`
	HarvestDate time.Time  `db:"harvest_date" json:"harvest_date"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	Status      CropStatus `db:"status" json:"status"`
	PhotoURL    *string    `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CropCreateRequest is the farmer's registration payload. The batch id is
// always platform-assigned, never client-supplied.
type CropCreateRequest struct {
	Name        string    `json:"name" validate:"required"`
	Type        string    `json:"type" validate:"required"`
	Quantity    float64   `json:"quantity" validate:"required,gt=0"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	HarvestDate time.Time `json:"harvest_date" validate:"required"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Location    *string   `json:"location,omitempty"`
}

// CropOverrideRequest adjusts a crop's status outside the guarded flow.
type CropOverrideRequest struct {
	Status CropStatus `json:"status" validate:"required"`
	Reason string     `json:"reason"`
}

// CropFilter captures filtering criteria for crop listings.
type CropFilter struct {
	FarmerID *string
	Status   *CropStatus
	Type     string
	Search   string
	Page     int
	PageSize int
}
