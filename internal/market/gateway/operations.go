package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

type productPayload struct {
	SourceID    string  `json:"source_id"`
	Title       string  `json:"title"`
	SourcePrice float64 `json:"source_price"`
	DestPrice   float64 `json:"dest_price,omitempty"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url"`
	Description string  `json:"description"`
}

type orderPayload struct {
	DestOrderID     string  `json:"dest_order_id"`
	ListingID       string  `json:"listing_id"`
	BuyerName       string  `json:"buyer_name"`
	BuyerEmail      string  `json:"buyer_email"`
	ShippingAddress string  `json:"shipping_address"`
	Total           float64 `json:"total"`
}

type trackingUpdate struct {
	DestOrderID    string `json:"dest_order_id"`
	SourceOrderID  string `json:"source_order_id"`
	TrackingNumber string `json:"tracking_number"`
}

// FindProducts pulls candidate products and stores them.
func (c *Client) FindProducts(ctx context.Context) error {
	var resp struct {
		Products []productPayload `json:"products"`
	}
	if err := c.call(ctx, "find_products", nil, &resp); err != nil {
		return err
	}

	for _, p := range resp.Products {
		err := c.repos.Products.Upsert(ctx, &domain.Product{
			SourceID:    p.SourceID,
			Title:       p.Title,
			SourcePrice: p.SourcePrice,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
			Description: p.Description,
		})
		if err != nil {
			return err
		}
	}

	c.log.Info("Products found", "count", len(resp.Products))
	return nil
}

// ListProducts publishes up to limit unlisted products, best margin first.
func (c *Client) ListProducts(ctx context.Context, limit int) error {
	products, err := c.repos.Products.ListUnlisted(ctx, limit)
	if err != nil {
		return err
	}

	listed := 0
	for _, p := range products {
		if p.DestPrice <= 0 {
			continue
		}

		var resp struct {
			ListingID string `json:"listing_id"`
		}
		err := c.call(ctx, "list_product", productPayload{
			SourceID:    p.SourceID,
			Title:       p.Title,
			SourcePrice: p.SourcePrice,
			DestPrice:   p.DestPrice,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
			Description: p.Description,
		}, &resp)
		if err != nil {
			return err
		}
		if resp.ListingID == "" {
			return fmt.Errorf("list_product: invalid response: empty listing id for %s", p.SourceID)
		}

		if err := c.repos.Products.MarkListed(ctx, p.ID, resp.ListingID, p.Title, p.DestPrice); err != nil {
			return err
		}
		listed++
	}

	c.log.Info("Products listed", "candidates", len(products), "listed", listed)
	return nil
}

// UpdateListings pushes current prices of listed products.
func (c *Client) UpdateListings(ctx context.Context) error {
	products, err := c.repos.Products.List(ctx)
	if err != nil {
		return err
	}

	type priceUpdate struct {
		SourceID  string  `json:"source_id"`
		DestPrice float64 `json:"dest_price"`
	}
	var updates []priceUpdate
	for _, p := range products {
		if p.IsListed {
			updates = append(updates, priceUpdate{SourceID: p.SourceID, DestPrice: p.DestPrice})
		}
	}
	if len(updates) == 0 {
		return nil
	}

	if err := c.call(ctx, "update_listings", map[string]any{"listings": updates}, nil); err != nil {
		return err
	}
	c.log.Info("Listings updated", "count", len(updates))
	return nil
}

// ProcessNewOrders stores orders received since the last poll.
func (c *Client) ProcessNewOrders(ctx context.Context) error {
	var resp struct {
		Orders []orderPayload `json:"orders"`
	}
	if err := c.call(ctx, "new_orders", nil, &resp); err != nil {
		return err
	}

	for _, o := range resp.Orders {
		err := c.repos.Orders.Add(ctx, &domain.Order{
			DestOrderID:     o.DestOrderID,
			ListingID:       o.ListingID,
			BuyerName:       o.BuyerName,
			BuyerEmail:      o.BuyerEmail,
			ShippingAddress: o.ShippingAddress,
			Total:           o.Total,
			Status:          domain.OrderStatusNew,
		})
		if err != nil {
			return err
		}
	}

	if len(resp.Orders) > 0 {
		c.log.Info("New orders received", "count", len(resp.Orders))
	}
	return nil
}

// ProcessOrders places source orders for pending sales and records profit.
//
// Each order is claimed as processing before the purchase. Once the source
// order exists, bookkeeping failures are logged instead of returned: a retry
// would buy the item again.
func (c *Client) ProcessOrders(ctx context.Context) error {
	orders, err := c.repos.Orders.Pending(ctx)
	if err != nil {
		return err
	}

	for _, o := range orders {
		err := c.repos.Orders.Transition(ctx, o.DestOrderID, domain.OrderStatusNew, domain.OrderStatusProcessing)
		if errors.Is(err, storage.ErrNotFound) {
			c.log.Debug("Order already claimed", "dest_order_id", o.DestOrderID)
			continue
		}
		if err != nil {
			return err
		}

		var resp struct {
			SourceOrderID  string  `json:"source_order_id"`
			SourceCost     float64 `json:"source_cost"`
			TrackingNumber string  `json:"tracking_number"`
		}
		err = c.call(ctx, "fulfill_order", orderPayload{
			DestOrderID:     o.DestOrderID,
			ListingID:       o.ListingID,
			BuyerName:       o.BuyerName,
			BuyerEmail:      o.BuyerEmail,
			ShippingAddress: o.ShippingAddress,
			Total:           o.Total,
		}, &resp)
		if err != nil {
			if rerr := c.repos.Orders.Transition(ctx, o.DestOrderID, domain.OrderStatusProcessing, domain.OrderStatusNew); rerr != nil {
				c.log.Error("Failed to reopen order", "dest_order_id", o.DestOrderID, "error", rerr)
			}
			return fmt.Errorf("order %s: %w", o.DestOrderID, err)
		}

		c.recordFulfillment(ctx, o, resp.SourceOrderID, resp.TrackingNumber, resp.SourceCost)
	}
	return nil
}

func (c *Client) recordFulfillment(ctx context.Context, o *domain.Order, sourceOrderID, tracking string, cost float64) {
	log := c.log.With("dest_order_id", o.DestOrderID, "source_order_id", sourceOrderID)

	if err := c.repos.Orders.MarkFulfilled(ctx, o.DestOrderID, sourceOrderID, tracking); err != nil {
		log.Error("Order purchased but not marked fulfilled, left in processing", "error", err)
	}

	mf, pf := c.fees.Fees(o.Total)
	rec := &domain.ProfitRecord{
		OrderID:        o.ID,
		SourceCost:     cost,
		DestRevenue:    o.Total,
		MarketplaceFee: mf,
		PaymentFee:     pf,
	}
	if err := c.repos.Profits.Record(ctx, rec); err != nil {
		log.Error("Order purchased but profit not recorded", "source_cost", cost, "error", err)
		return
	}

	log.Info("Order fulfilled", "net_profit", rec.NetProfit)
}

// UpdateTrackingNumbers stores tracking numbers that became available.
func (c *Client) UpdateTrackingNumbers(ctx context.Context) error {
	var resp struct {
		Updates []trackingUpdate `json:"updates"`
	}
	if err := c.call(ctx, "tracking", nil, &resp); err != nil {
		return err
	}

	for _, u := range resp.Updates {
		if err := c.repos.Orders.MarkFulfilled(ctx, u.DestOrderID, u.SourceOrderID, u.TrackingNumber); err != nil {
			return err
		}
	}
	if len(resp.Updates) > 0 {
		c.log.Info("Tracking numbers updated", "count", len(resp.Updates))
	}
	return nil
}
