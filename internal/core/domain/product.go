package domain

import "time"

// Product is a source-marketplace item considered for resale.
type Product struct {
	ID           int64     `json:"id"            db:"id"`
	SourceID     string    `json:"source_id"     db:"source_id"` // e.g. ASIN
	Title        string    `json:"title"         db:"title"`
	SourcePrice  float64   `json:"source_price"  db:"source_price"`
	DestPrice    float64   `json:"dest_price"    db:"dest_price"`
	ProfitMargin float64   `json:"profit_margin" db:"profit_margin"`
	Category     string    `json:"category"      db:"category"`
	ImageURL     string    `json:"image_url"     db:"image_url"`
	Description  string    `json:"description"   db:"description"`
	IsListed     bool      `json:"is_listed"     db:"is_listed"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// Listing is a published destination-marketplace offer for a product.
type Listing struct {
	ID           int64         `db:"id"`
	ProductID    int64         `db:"product_id"`
	ListingID    string        `db:"listing_id"`
	Title        string        `db:"title"`
	CurrentPrice float64       `db:"current_price"`
	Quantity     int           `db:"quantity"`
	Status       ListingStatus `db:"status"`
	ListedAt     time.Time     `db:"listed_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusEnded  ListingStatus = "ended"
)
