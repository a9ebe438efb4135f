package models

import "time"

// AcceptCropRequest is the distributor's pick-up payload. Accepting a crop
// creates the delivery, flips the crop to in_transit, and records both the
// custody transaction and the Transport ledger event in one transaction.
type AcceptCropRequest struct {
	CropID           string    `json:"crop_id" validate:"required"`
	RetailerID       string    `json:"retailer_id" validate:"required"`
	TransportDetails string    `json:"transport_details" validate:"required"`
	DeliveryDate     time.Time `json:"delivery_date" validate:"required"`
	Location         *string   `json:"location,omitempty"`
}

// StartDeliveryRequest moves a pending delivery onto the road.
type StartDeliveryRequest struct {
	TrackingInfo string `json:"tracking_info"`
}

// AcceptDeliveryRequest is the retailer's receipt confirmation.
type AcceptDeliveryRequest struct {
	Location *string `json:"location,omitempty"`
	Notes    string  `json:"notes"`
}

// RecordSaleRequest closes a batch's journey at the point of sale.
type RecordSaleRequest struct {
	CropID   string  `json:"crop_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Location *string `json:"location,omitempty"`
}
