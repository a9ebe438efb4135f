package models

import "time"

// PaymentStatus is set once at creation. The schema reserves pending/failed
// but no code path transitions a payment after the insert; see
// PaymentService.Transition for the explicit stub.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is a monetary transfer between two users, optionally tied to a crop.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	Amount      float64       `db:"amount" json:"amount"`
	FromUserID  string        `db:"from_user_id" json:"from_user_id"`
	ToUserID    string        `db:"to_user_id" json:"to_user_id"`
	CropID      *string       `db:"crop_id" json:"crop_id,omitempty"`
	Status      PaymentStatus `db:"status" json:"status"`
	Method      *string       `db:"method" json:"method,omitempty"`
	ExternalRef *string       `db:"external_ref" json:"external_ref,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// PaymentCreateRequest records a settled transfer. The payer is always the
// authenticated actor.
type PaymentCreateRequest struct {
	ToUserID string  `json:"to_user_id" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	CropID   *string `json:"crop_id,omitempty"`
	Method   *string `json:"method,omitempty"`
}

// PaymentFilter captures filtering criteria for payment listings.
type PaymentFilter struct {
	FromUserID *string
	ToUserID   *string
	Status     *PaymentStatus
	Page       int
	PageSize   int
}
