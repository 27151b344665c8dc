// Package market defines the marketplace collaborators the scheduler drives.
package market

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by collaborators without a marketplace endpoint.
var ErrNotConfigured = errors.New("marketplace integration not configured")

// Credentials are used to open a session with the source marketplace.
type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Empty reports whether no credentials were configured.
func (c Credentials) Empty() bool {
	return c.Email == "" || c.Password == ""
}

// ProductFinder discovers candidate products and stores them.
type ProductFinder interface {
	FindProducts(ctx context.Context) error
}

// PriceUpdater recomputes destination prices of stored products.
type PriceUpdater interface {
	UpdatePrices(ctx context.Context) error
}

// Lister publishes and maintains destination listings.
type Lister interface {
	ListProducts(ctx context.Context, limit int) error
	UpdateListings(ctx context.Context) error
	ProcessNewOrders(ctx context.Context) error
}

// Fulfiller places source orders for sold items and tracks shipments.
type Fulfiller interface {
	ProcessOrders(ctx context.Context) error
	UpdateTrackingNumbers(ctx context.Context) error
	Login(ctx context.Context, creds Credentials) (bool, error)
	Close() error
}
