package domain

import "time"

// Inventory is the per-product stock row. Version is bumped on every
// successful write and used as the compare-and-swap token.
type Inventory struct {
	ProductID         int64
	QuantityAvailable int
	QuantityReserved  int
	Version           int64
	UpdatedAt         time.Time
}

// InventoryMovement is an append-only audit row for a stock change.
type InventoryMovement struct {
	ID        int64
	ProductID int64
	UserID    int64
	Delta     int
	Reason    string
	CreatedAt time.Time
}

const (
	MovementReasonInitial = "initial stock"
	MovementReasonRestock = "restock"
)

// ReserveReason and ReleaseReason build the audit reason for order driven moves.
func ReserveReason(orderNumber string) string {
	return "order reserved: " + orderNumber
}

func ReleaseReason(orderNumber, cause string) string {
	return "order " + cause + ": " + orderNumber
}
