package models

import "time"

// DeliveryStatus models the delivery hand-off lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// deliveryTransitions advances monotonically; nothing reverses a delivery.
var deliveryTransitions = map[DeliveryStatus]DeliveryStatus{
	DeliveryStatusPending:   DeliveryStatusInTransit,
	DeliveryStatusInTransit: DeliveryStatusDelivered,
}

// CanTransitionDelivery reports whether from → to is a legal step.
func CanTransitionDelivery(from, to DeliveryStatus) bool {
	return deliveryTransitions[from] == to
}

// Delivery records one batch's hand-off from a distributor to a retailer.
type Delivery struct {
	ID               string         `db:"id" json:"id"`
	CropID           string         `db:"crop_id" json:"crop_id"`
	DistributorID    string         `db:"distributor_id" json:"distributor_id"`
	RetailerID       string         `db:"retailer_id" json:"retailer_id"`
	TransportDetails string         `db:"transport_details" json:"transport_details"`
	DeliveryDate     time.Time      `db:"delivery_date" json:"delivery_date"`
	Status           DeliveryStatus `db:"status" json:"status"`
	TrackingInfo     *string        `db:"tracking_info" json:"tracking_info,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DeliveryDetail joins the crop and counterparties for listing views.
type DeliveryDetail struct {
	Delivery
	CropName        string  `db:"crop_name" json:"crop_name"`
	BatchID         string  `db:"batch_id" json:"batch_id"`
	Quantity        float64 `db:"quantity" json:"quantity"`
	Price           float64 `db:"price" json:"price"`
	FarmerID        string  `db:"farmer_id" json:"farmer_id"`
	DistributorName string  `db:"distributor_name" json:"distributor_name"`
	RetailerName    string  `db:"retailer_name" json:"retailer_name"`
}

// DeliveryFilter captures filtering criteria for delivery listings.
type DeliveryFilter struct {
	DistributorID *string
	RetailerID    *string
	Status        *DeliveryStatus
	Page          int
	PageSize      int
}
