// Package pricing derives destination prices and margins from source prices.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/vietddude/arbiter/internal/infra/storage"
)

// Config holds pricing parameters.
type Config struct {
	Markup             float64 `yaml:"markup"`               // applied to the source price
	MarketplaceFeeRate float64 `yaml:"marketplace_fee_rate"` // share of revenue
	PaymentFeeRate     float64 `yaml:"payment_fee_rate"`     // share of revenue
	PaymentFeeFixed    float64 `yaml:"payment_fee_fixed"`    // per order
	MinProfitMargin    float64 `yaml:"min_profit_margin"`
}

// DefaultConfig returns the stock pricing parameters.
func DefaultConfig() Config {
	return Config{
		Markup:             0.25,
		MarketplaceFeeRate: 0.10,
		PaymentFeeRate:     0.029,
		PaymentFeeFixed:    0.30,
		MinProfitMargin:    0.15,
	}
}

// Calculator prices products. It implements market.PriceUpdater.
type Calculator struct {
	cfg      Config
	products storage.ProductRepository
	log      *slog.Logger
}

// New creates a calculator. Zero fields in cfg take their defaults.
func New(cfg Config, products storage.ProductRepository) *Calculator {
	d := DefaultConfig()
	if cfg.Markup <= 0 {
		cfg.Markup = d.Markup
	}
	if cfg.MarketplaceFeeRate <= 0 {
		cfg.MarketplaceFeeRate = d.MarketplaceFeeRate
	}
	if cfg.PaymentFeeRate <= 0 {
		cfg.PaymentFeeRate = d.PaymentFeeRate
	}
	if cfg.PaymentFeeFixed <= 0 {
		cfg.PaymentFeeFixed = d.PaymentFeeFixed
	}
	if cfg.MinProfitMargin <= 0 {
		cfg.MinProfitMargin = d.MinProfitMargin
	}
	return &Calculator{
		cfg:      cfg,
		products: products,
		log:      slog.Default().With("component", "pricing"),
	}
}

// Fees returns the marketplace and payment fees charged on revenue.
func (c *Calculator) Fees(revenue float64) (marketplace, payment float64) {
	if revenue <= 0 {
		return 0, 0
	}
	marketplace = round(revenue * c.cfg.MarketplaceFeeRate)
	payment = round(revenue*c.cfg.PaymentFeeRate + c.cfg.PaymentFeeFixed)
	return marketplace, payment
}

// Price returns the destination price for a source price and the resulting margin
// after fees, as a fraction of the source price.
func (c *Calculator) Price(source float64) (dest, margin float64) {
	if source <= 0 {
		return 0, 0
	}
	dest = round(source * (1 + c.cfg.Markup))
	mf, pf := c.Fees(dest)
	margin = (dest - source - mf - pf) / source
	return dest, margin
}

// Profitable reports whether margin meets the configured minimum.
func (c *Calculator) Profitable(margin float64) bool {
	return margin >= c.cfg.MinProfitMargin
}

// UpdatePrices reprices every stored product.
func (c *Calculator) UpdatePrices(ctx context.Context) error {
	products, err := c.products.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	var updated, thin int
	for _, p := range products {
		dest, margin := c.Price(p.SourcePrice)
		if dest == p.DestPrice && margin == p.ProfitMargin {
			continue
		}
		if err := c.products.UpdatePricing(ctx, p.ID, dest, margin); err != nil {
			return fmt.Errorf("failed to update product %s: %w", p.SourceID, err)
		}
		updated++
		if !c.Profitable(margin) {
			thin++
			c.log.Warn("Product below minimum margin",
				"source_id", p.SourceID,
				"margin", margin,
				"min", c.cfg.MinProfitMargin,
			)
		}
	}

	c.log.Info("Prices updated", "products", len(products), "updated", updated, "below_margin", thin)
	return nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
