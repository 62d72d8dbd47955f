package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductRepository reads catalog prices. Checkout snapshots them onto order
// items, so callers never supply a price themselves.
type ProductRepository struct {
	db
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db{pool: pool}}
}

func (r *ProductRepository) Prices(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	const query = `
SELECT id, price
FROM products
WHERE id = ANY($1) AND active`

	rows, err := r.query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list product prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[int64]decimal.Decimal, len(productIDs))
	for rows.Next() {
		var (
			id    int64
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		prices[id] = price
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate product prices: %w", rows.Err())
	}
	return prices, nil
}
