package control

import (
	"context"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/market"
)

// Collaborators are the marketplace components driven by scheduled tasks.
// A nil collaborator disables the tasks that depend on it.
type Collaborators struct {
	Finder    market.ProductFinder
	Pricer    market.PriceUpdater
	Lister    market.Lister
	Fulfiller market.Fulfiller
}

// taskActions binds every known task name to its collaborator call.
func (c Collaborators) taskActions(listLimit int) map[string]domain.Action {
	actions := make(map[string]domain.Action)

	if c.Finder != nil {
		actions["find_products"] = c.Finder.FindProducts
	}
	if c.Pricer != nil {
		actions["update_prices"] = c.Pricer.UpdatePrices
	}
	if c.Lister != nil {
		actions["list_products"] = func(ctx context.Context) error {
			return c.Lister.ListProducts(ctx, listLimit)
		}
		actions["update_listings"] = c.Lister.UpdateListings
		actions["check_orders"] = c.Lister.ProcessNewOrders
	}
	if c.Fulfiller != nil {
		actions["process_orders"] = c.Fulfiller.ProcessOrders
		actions["update_tracking"] = c.Fulfiller.UpdateTrackingNumbers
	}
	return actions
}

// taskOrder is the registration order, which is also the enqueue order for
// tasks due in the same tick.
var taskOrder = []string{
	"find_products",
	"update_prices",
	"list_products",
	"update_listings",
	"check_orders",
	"process_orders",
	"update_tracking",
}
