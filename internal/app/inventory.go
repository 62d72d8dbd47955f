package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const defaultStockAttempts = 3

// InventoryLedger changes stock with optimistic compare-and-swap on the
// inventory version. It never blocks on a lock.
type InventoryLedger struct {
	repo        InventoryRepository
	clock       clock.Clock
	maxAttempts int
}

type InventoryLedgerOption func(*InventoryLedger)

// WithStockAttempts bounds how many times a version conflict is retried.
func WithStockAttempts(n int) InventoryLedgerOption {
	return func(l *InventoryLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func NewInventoryLedger(repo InventoryRepository, clk clock.Clock, opts ...InventoryLedgerOption) *InventoryLedger {
	l := &InventoryLedger{
		repo:        repo,
		clock:       clk,
		maxAttempts: defaultStockAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve moves qty from available to reserved.
func (l *InventoryLedger) Reserve(ctx context.Context, productID int64, qty int, userID int64, reason string) (domain.Inventory, error) {
	if qty <= 0 {
		return domain.Inventory{}, domain.ErrInvalidQuantity
	}
	return l.adjust(ctx, productID, -qty, qty, userID, reason)
}

// Release returns qty to available and lowers reserved, floored at zero.
func (l *InventoryLedger) Release(ctx context.Context, productID int64, qty int, userID int64, reason string) (domain.Inventory, error) {
	if qty <= 0 {
		return domain.Inventory{}, domain.ErrInvalidQuantity
	}
	return l.adjust(ctx, productID, qty, -qty, userID, reason)
}

// Restock adds delta to available stock without touching reservations.
func (l *InventoryLedger) Restock(ctx context.Context, productID int64, delta int, userID int64) (domain.Inventory, error) {
	if delta <= 0 {
		return domain.Inventory{}, domain.ErrInvalidQuantity
	}
	return l.adjust(ctx, productID, delta, 0, userID, domain.MovementReasonRestock)
}

func (l *InventoryLedger) adjust(ctx context.Context, productID int64, availableDelta, reservedDelta int, userID int64, reason string) (domain.Inventory, error) {
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		current, err := l.repo.GetInventory(ctx, productID)
		if err != nil {
			return domain.Inventory{}, err
		}

		next := current
		next.QuantityAvailable += availableDelta
		next.QuantityReserved += reservedDelta
		if next.QuantityAvailable < 0 {
			return domain.Inventory{}, &domain.StockError{
				ProductID: productID,
				Requested: -availableDelta,
				Available: current.QuantityAvailable,
			}
		}
		if next.QuantityReserved < 0 {
			next.QuantityReserved = 0
		}
		next.Version = current.Version + 1
		next.UpdatedAt = l.clock.Now()

		swapped, err := l.repo.CompareAndSwapInventory(ctx, current.Version, next)
		if err != nil {
			return domain.Inventory{}, err
		}
		if !swapped {
			log.Debug().Int64("productId", productID).Int("attempt", attempt).Msg("inventory version conflict")
			continue
		}

		err = l.repo.AddMovement(ctx, domain.InventoryMovement{
			ProductID: productID,
			UserID:    userID,
			Delta:     availableDelta,
			Reason:    reason,
			CreatedAt: next.UpdatedAt,
		})
		if err != nil {
			return domain.Inventory{}, err
		}
		return next, nil
	}
	return domain.Inventory{}, domain.ErrConcurrencyConflict
}
