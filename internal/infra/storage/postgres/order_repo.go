package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

const orderColumns = `id, dest_order_id, listing_id, source_order_id, buyer_name, buyer_email,
	shipping_address, total, status, tracking_number, ordered_at, fulfilled_at`

// OrderRepo implements storage.OrderRepository using PostgreSQL.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new PostgreSQL order repository.
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Add stores a new order. Orders already known by destination ID are left untouched.
func (r *OrderRepo) Add(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (dest_order_id, listing_id, buyer_name, buyer_email, shipping_address, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dest_order_id) DO NOTHING
	`
	status := o.Status
	if status == "" {
		status = domain.OrderStatusNew
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		o.DestOrderID,
		o.ListingID,
		o.BuyerName,
		o.BuyerEmail,
		o.ShippingAddress,
		o.Total,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to add order %s: %w", o.DestOrderID, err)
	}
	return nil
}

// Get returns an order by its destination ID.
func (r *OrderRepo) Get(ctx context.Context, destOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE dest_order_id = $1`

	var o domain.Order
	err := r.db.GetContext(ctx, &o, query, destOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", destOrderID, err)
	}
	return &o, nil
}

// Pending returns orders awaiting fulfillment, oldest first.
func (r *OrderRepo) Pending(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY ordered_at ASC`

	var orders []*domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, string(domain.OrderStatusNew)); err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return orders, nil
}

// MarkFulfilled records the source order and tracking number.
func (r *OrderRepo) MarkFulfilled(
	ctx context.Context,
	destOrderID, sourceOrderID, tracking string,
) error {
	query := `
		UPDATE orders
		SET source_order_id = $1, tracking_number = $2, status = $3, fulfilled_at = NOW()
		WHERE dest_order_id = $4
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		sourceOrderID,
		tracking,
		string(domain.OrderStatusFulfilled),
		destOrderID,
	)
	if err != nil {
		return fmt.Errorf("failed to fulfill order %s: %w", destOrderID, err)
	}
	return expectRow(res, storage.ErrNotFound)
}

// Transition is a compare-and-set on the order status.
func (r *OrderRepo) Transition(ctx context.Context, destOrderID string, from, to domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1 WHERE dest_order_id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, string(to), destOrderID, string(from))
	if err != nil {
		return fmt.Errorf("failed to move order %s to %s: %w", destOrderID, to, err)
	}
	return expectRow(res, storage.ErrNotFound)
}

// expectRow turns a zero-row update into notFound.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
