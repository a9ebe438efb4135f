package models

import "time"

// TransactionTypeProcurement tags the distributor pick-up custody transfer.
// The column is free-form; other tags are legal.
const TransactionTypeProcurement = "procurement"

// Transaction records a custody transfer between two users for one crop.
// Rows are append-only and never mutated.
type Transaction struct {
	ID               string    `db:"id" json:"id"`
	CropID           string    `db:"crop_id" json:"crop_id"`
	FromUserID       string    `db:"from_user_id" json:"from_user_id"`
	ToUserID         string    `db:"to_user_id" json:"to_user_id"`
	TransactionType  string    `db:"transaction_type" json:"transaction_type"`
	Amount           *float64  `db:"amount" json:"amount,omitempty"`
	TransportDetails *string   `db:"transport_details" json:"transport_details,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// TransactionFilter captures filtering criteria for transaction listings.
type TransactionFilter struct {
	CropID   *string
	UserID   *string
	Type     string
	Page     int
	PageSize int
}
