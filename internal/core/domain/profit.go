package domain

import "time"

// ProfitRecord captures the economics of one fulfilled order.
type ProfitRecord struct {
	ID             int64     `db:"id"`
	OrderID        int64     `db:"order_id"`
	SourceCost     float64   `db:"source_cost"`
	DestRevenue    float64   `db:"dest_revenue"`
	MarketplaceFee float64   `db:"marketplace_fee"`
	PaymentFee     float64   `db:"payment_fee"`
	NetProfit      float64   `db:"net_profit"`
	RecordedAt     time.Time `db:"recorded_at"`
}

// ComputeNet fills NetProfit from the other amounts.
func (p *ProfitRecord) ComputeNet() {
	p.NetProfit = p.DestRevenue - p.SourceCost - p.MarketplaceFee - p.PaymentFee
}

// ProfitSummary aggregates profit records over a period. Day is empty for totals.
type ProfitSummary struct {
	Day            string  `db:"day"`
	Orders         int     `db:"order_count"`
	Cost           float64 `db:"total_cost"`
	Revenue        float64 `db:"total_revenue"`
	MarketplaceFee float64 `db:"total_marketplace_fees"`
	PaymentFee     float64 `db:"total_payment_fees"`
	Profit         float64 `db:"total_profit"`
}

// Fees returns the combined marketplace and payment fees.
func (s ProfitSummary) Fees() float64 {
	return s.MarketplaceFee + s.PaymentFee
}

// Margin returns profit as a percentage of revenue, or 0 without revenue.
func (s ProfitSummary) Margin() float64 {
	if s.Revenue <= 0 {
		return 0
	}
	return s.Profit / s.Revenue * 100
}
