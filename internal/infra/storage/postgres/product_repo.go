package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/arbiter/internal/core/domain"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

const productColumns = `id, source_id, title, source_price, dest_price, profit_margin,
	category, image_url, description, is_listed, created_at`

// ProductRepo implements storage.ProductRepository using PostgreSQL.
type ProductRepo struct {
	db *DB
}

// NewProductRepo creates a new PostgreSQL product repository.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Upsert inserts a product or refreshes its source data.
func (r *ProductRepo) Upsert(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (source_id, title, source_price, category, image_url, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			source_price = EXCLUDED.source_price,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		p.SourceID,
		p.Title,
		p.SourcePrice,
		p.Category,
		p.ImageURL,
		p.Description,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SourceID, err)
	}
	return nil
}

// ListUnlisted returns products that are not listed yet, best margin first.
func (r *ProductRepo) ListUnlisted(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE is_listed = FALSE
		ORDER BY profit_margin DESC
		LIMIT $1`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list unlisted products: %w", err)
	}
	return products, nil
}

// List returns every product.
func (r *ProductRepo) List(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// UpdatePricing stores the destination price and margin of a product.
func (r *ProductRepo) UpdatePricing(ctx context.Context, id int64, destPrice, margin float64) error {
	query := `UPDATE products SET dest_price = $1, profit_margin = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, destPrice, margin, id)
	if err != nil {
		return fmt.Errorf("failed to update pricing for product %d: %w", id, err)
	}
	return expectRow(res, storage.ErrNotFound)
}

// MarkListed records the listing and flags the product in one transaction.
func (r *ProductRepo) MarkListed(
	ctx context.Context,
	id int64,
	listingID, title string,
	price float64,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE products SET is_listed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to flag product %d: %w", id, err)
	}
	if err := expectRow(res, storage.ErrNotFound); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (product_id, listing_id, title, current_price, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			updated_at = NOW()
	`, id, listingID, title, price, string(domain.ListingStatusActive))
	if err != nil {
		return fmt.Errorf("failed to insert listing %s: %w", listingID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listing %s: %w", listingID, err)
	}
	return nil
}
