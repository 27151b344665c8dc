package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/arbiter/internal/core/domain"
)

var (
	// ErrNotFound is returned when a product or order does not exist
	ErrNotFound = errors.New("not found")
)

// ProductRepository handles sourced product storage
type ProductRepository interface {
	// Upsert inserts a product or refreshes it by source ID
	Upsert(ctx context.Context, p *domain.Product) error

	// ListUnlisted returns products not yet listed, best margin first
	ListUnlisted(ctx context.Context, limit int) ([]*domain.Product, error)

	// List returns all products
	List(ctx context.Context) ([]*domain.Product, error)

	// UpdatePricing stores the destination price and computed margin
	UpdatePricing(ctx context.Context, id int64, destPrice, margin float64) error

	// MarkListed flags a product as listed and records the listing
	MarkListed(ctx context.Context, id int64, listingID, title string, price float64) error
}

// OrderRepository handles destination order storage
type OrderRepository interface {
	// Add stores a new order, ignoring duplicates by destination order ID
	Add(ctx context.Context, o *domain.Order) error

	// Get returns an order by destination order ID
	Get(ctx context.Context, destOrderID string) (*domain.Order, error)

	// Pending returns orders awaiting fulfillment, oldest first
	Pending(ctx context.Context) ([]*domain.Order, error)

	// Transition moves an order from one status to another. It returns
	// ErrNotFound when the order is not in the from status.
	Transition(ctx context.Context, destOrderID string, from, to domain.OrderStatus) error

	// MarkFulfilled records the source order and tracking number
	MarkFulfilled(ctx context.Context, destOrderID, sourceOrderID, tracking string) error
}

// ProfitRepository handles profit tracking
type ProfitRepository interface {
	// Record stores a profit row; NetProfit is derived from the other amounts
	Record(ctx context.Context, r *domain.ProfitRecord) error

	// Totals aggregates every record since the given time
	Totals(ctx context.Context, since time.Time) (domain.ProfitSummary, error)

	// Daily aggregates records per day since the given time, newest day first
	Daily(ctx context.Context, since time.Time) ([]domain.ProfitSummary, error)
}

// Repositories bundles the repositories the system works with.
type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Profits  ProfitRepository
}
