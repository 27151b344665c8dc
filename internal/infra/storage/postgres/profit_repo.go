package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/arbiter/internal/core/domain"
)

// ProfitRepo implements storage.ProfitRepository using PostgreSQL.
type ProfitRepo struct {
	db *DB
}

// NewProfitRepo creates a new PostgreSQL profit repository.
func NewProfitRepo(db *DB) *ProfitRepo {
	return &ProfitRepo{db: db}
}

// Record stores a profit row.
func (r *ProfitRepo) Record(ctx context.Context, rec *domain.ProfitRecord) error {
	rec.ComputeNet()

	var orderID any
	if rec.OrderID != 0 {
		orderID = rec.OrderID
	}

	query := `
		INSERT INTO profit_tracking (order_id, source_cost, dest_revenue, marketplace_fee, payment_fee, net_profit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, recorded_at
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		orderID,
		rec.SourceCost,
		rec.DestRevenue,
		rec.MarketplaceFee,
		rec.PaymentFee,
		rec.NetProfit,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record profit: %w", err)
	}
	return nil
}

// Totals aggregates every record since the given time.
func (r *ProfitRepo) Totals(ctx context.Context, since time.Time) (domain.ProfitSummary, error) {
	query := `
		SELECT
			'' AS day,
			COUNT(*) AS order_count,
			COALESCE(SUM(source_cost), 0) AS total_cost,
			COALESCE(SUM(dest_revenue), 0) AS total_revenue,
			COALESCE(SUM(marketplace_fee), 0) AS total_marketplace_fees,
			COALESCE(SUM(payment_fee), 0) AS total_payment_fees,
			COALESCE(SUM(net_profit), 0) AS total_profit
		FROM profit_tracking
		WHERE recorded_at >= $1
	`
	var s domain.ProfitSummary
	if err := r.db.GetContext(ctx, &s, query, since); err != nil {
		return domain.ProfitSummary{}, fmt.Errorf("failed to aggregate profit: %w", err)
	}
	return s, nil
}

// Daily aggregates records per UTC calendar day, newest first, whatever the
// session time zone.
func (r *ProfitRepo) Daily(ctx context.Context, since time.Time) ([]domain.ProfitSummary, error) {
	query := `
		SELECT
			TO_CHAR(DATE(recorded_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
			COUNT(*) AS order_count,
			SUM(source_cost) AS total_cost,
			SUM(dest_revenue) AS total_revenue,
			SUM(marketplace_fee) AS total_marketplace_fees,
			SUM(payment_fee) AS total_payment_fees,
			SUM(net_profit) AS total_profit
		FROM profit_tracking
		WHERE recorded_at >= $1
		GROUP BY DATE(recorded_at AT TIME ZONE 'UTC')
		ORDER BY DATE(recorded_at AT TIME ZONE 'UTC') DESC
	`
	var days []domain.ProfitSummary
	if err := r.db.SelectContext(ctx, &days, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate daily profit: %w", err)
	}
	return days, nil
}
