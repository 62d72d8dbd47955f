package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// AdminService provisions stock rows for the catalog. Product data itself
// lives in the catalog service; this side only tracks quantities.
type AdminService struct {
	tx        Transactor
	inventory InventoryRepository
	ledger    *InventoryLedger
	clock     clock.Clock
}

func NewAdminService(tx Transactor, inventory InventoryRepository, ledger *InventoryLedger, clk clock.Clock) *AdminService {
	return &AdminService{
		tx:        tx,
		inventory: inventory,
		ledger:    ledger,
		clock:     clk,
	}
}

type CreateInventoryInput struct {
	ProductID int64
	Quantity  int
	UserID    int64
}

// CreateInventory opens the stock row for a new product.
func (s *AdminService) CreateInventory(ctx context.Context, in CreateInventoryInput) (domain.Inventory, error) {
	if in.ProductID <= 0 {
		return domain.Inventory{}, domain.ErrInvalidID
	}
	if in.Quantity < 0 {
		return domain.Inventory{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	inv := domain.Inventory{
		ProductID:         in.ProductID,
		QuantityAvailable: in.Quantity,
		Version:           1,
		UpdatedAt:         now,
	}
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.inventory.CreateInventory(txCtx, inv); err != nil {
			return err
		}
		if in.Quantity == 0 {
			return nil
		}
		return s.inventory.AddMovement(txCtx, domain.InventoryMovement{
			ProductID: in.ProductID,
			UserID:    in.UserID,
			Delta:     in.Quantity,
			Reason:    domain.MovementReasonInitial,
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Inventory{}, err
	}

	log.Info().Int64("productId", in.ProductID).Int("quantity", in.Quantity).Msg("inventory created")
	return inv, nil
}

type RestockInput struct {
	ProductID int64
	Quantity  int
	UserID    int64
}

func (s *AdminService) Restock(ctx context.Context, in RestockInput) (domain.Inventory, error) {
	var inv domain.Inventory
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.ledger.Restock(txCtx, in.ProductID, in.Quantity, in.UserID)
		return err
	})
	if err != nil {
		return domain.Inventory{}, err
	}
	return inv, nil
}

func (s *AdminService) GetInventory(ctx context.Context, productID int64) (domain.Inventory, error) {
	if productID <= 0 {
		return domain.Inventory{}, domain.ErrInvalidID
	}
	return s.inventory.GetInventory(ctx, productID)
}
