package domain

import "time"

// Order is a destination-marketplace sale awaiting or past fulfillment.
type Order struct {
	ID              int64       `json:"id"               db:"id"`
	DestOrderID     string      `json:"dest_order_id"    db:"dest_order_id"`
	ListingID       string      `json:"listing_id"       db:"listing_id"`
	SourceOrderID   string      `json:"source_order_id"  db:"source_order_id"`
	BuyerName       string      `json:"buyer_name"       db:"buyer_name"`
	BuyerEmail      string      `json:"buyer_email"      db:"buyer_email"`
	ShippingAddress string      `json:"shipping_address" db:"shipping_address"`
	Total           float64     `json:"total"            db:"total"`
	Status          OrderStatus `json:"status"           db:"status"`
	TrackingNumber  string      `json:"tracking_number"  db:"tracking_number"`
	OrderedAt       time.Time   `json:"ordered_at"       db:"ordered_at"`
	FulfilledAt     *time.Time  `json:"fulfilled_at"     db:"fulfilled_at"`
}

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing" // source purchase in flight
	OrderStatusFulfilled  OrderStatus = "fulfilled"
	OrderStatusFailed     OrderStatus = "failed"
)
