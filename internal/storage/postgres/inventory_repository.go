package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type InventoryRepository struct {
	db
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: db{pool: pool}}
}

func (r *InventoryRepository) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	const query = `
SELECT product_id, quantity_available, quantity_reserved, version, updated_at
FROM inventories
WHERE product_id = $1`

	var inv domain.Inventory
	err := r.queryRow(ctx, query, productID).
		Scan(&inv.ProductID, &inv.QuantityAvailable, &inv.QuantityReserved, &inv.Version, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Inventory{}, domain.ErrInventoryNotFound
		}
		return domain.Inventory{}, fmt.Errorf("get inventory: %w", err)
	}
	return inv, nil
}

func (r *InventoryRepository) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	const stmt = `
INSERT INTO inventories (product_id, quantity_available, quantity_reserved, version, updated_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, inv.ProductID, inv.QuantityAvailable, inv.QuantityReserved, inv.Version, inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInventoryExists
		}
		return fmt.Errorf("create inventory: %w", err)
	}
	return nil
}

func (r *InventoryRepository) CompareAndSwapInventory(ctx context.Context, expectedVersion int64, next domain.Inventory) (bool, error) {
	const stmt = `
UPDATE inventories
SET quantity_available = $2, quantity_reserved = $3, version = version + 1, updated_at = $4
WHERE product_id = $1 AND version = $5`

	tag, err := r.exec(ctx, stmt, next.ProductID, next.QuantityAvailable, next.QuantityReserved, next.UpdatedAt, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("swap inventory: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InventoryRepository) AddMovement(ctx context.Context, m domain.InventoryMovement) error {
	const stmt = `
INSERT INTO inventory_movements (product_id, user_id, delta, reason, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, m.ProductID, m.UserID, m.Delta, m.Reason, m.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrInventoryNotFound
		}
		return fmt.Errorf("add inventory movement: %w", err)
	}
	return nil
}
