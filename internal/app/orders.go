package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	defaultOrderExpiry = 30 * time.Minute
	defaultSweepBatch  = 100

	cancelCauseUser    = "cancelled by user"
	cancelCauseExpired = "payment window expired"
)

type OrderService struct {
	tx     Transactor
	orders OrderRepository
	outbox OutboxRepository
	ledger *InventoryLedger
	clock  clock.Clock
}

func NewOrderService(tx Transactor, orders OrderRepository, outbox OutboxRepository, ledger *InventoryLedger, clk clock.Clock) *OrderService {
	return &OrderService{
		tx:     tx,
		orders: orders,
		outbox: outbox,
		ledger: ledger,
		clock:  clk,
	}
}

type OrderView struct {
	Order   domain.Order
	Payment domain.Payment
}

// GetOrder returns the order if it belongs to userID. Other users' orders
// are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID int64, orderID string) (OrderView, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if order.UserID != userID {
		return OrderView{}, domain.ErrOrderNotFound
	}
	payment, err := s.orders.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{Order: order, Payment: payment}, nil
}

// CancelOrder cancels an order still awaiting payment and returns its stock.
func (s *OrderService) CancelOrder(ctx context.Context, userID int64, orderID string) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPendingPayment {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	cancelled, err := cancelPendingOrder(ctx, s.tx, s.orders, s.outbox, s.ledger, order, cancelCauseUser, s.clock.Now())
	if err != nil {
		return domain.Order{}, err
	}
	if !cancelled {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	log.Info().Str("orderId", order.ID).Int64("userId", userID).Msg("order cancelled")
	return s.orders.GetOrder(ctx, orderID)
}

// cancelPendingOrder moves order to cancelled and releases its lines in one
// transaction. It reports false when another writer moved the order first.
func cancelPendingOrder(ctx context.Context, tx Transactor, orders OrderRepository, outbox OutboxRepository, ledger *InventoryLedger, order domain.Order, cause string, now time.Time) (bool, error) {
	var cancelled bool
	err := tx.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := orders.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusPendingPayment, domain.OrderStatusCancelled, now)
		if err != nil || !ok {
			return err
		}

		quantities := order.Quantities()
		for _, productID := range sortedProductIDs(quantities) {
			reason := domain.ReleaseReason(order.OrderNumber, cause)
			if _, err := ledger.Release(txCtx, productID, quantities[productID], order.UserID, reason); err != nil {
				return err
			}
		}

		err = enqueue(txCtx, outbox, domain.EventOrderCancelled, order.ID, domain.OrderCancelledPayload{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      cause,
		}, now)
		if err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

// ExpirySweeper cancels orders left in pending payment past the window.
// Each order is cancelled with a conditional update, so concurrent sweepers
// never release the same stock twice.
type ExpirySweeper struct {
	tx        Transactor
	orders    OrderRepository
	outbox    OutboxRepository
	ledger    *InventoryLedger
	clock     clock.Clock
	window    time.Duration
	batchSize int
}

type ExpirySweeperOption func(*ExpirySweeper)

// WithExpiryWindow overrides how long an order may await payment.
func WithExpiryWindow(d time.Duration) ExpirySweeperOption {
	return func(s *ExpirySweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithSweepBatchSize(n int) ExpirySweeperOption {
	return func(s *ExpirySweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewExpirySweeper(tx Transactor, orders OrderRepository, outbox OutboxRepository, ledger *InventoryLedger, clk clock.Clock, opts ...ExpirySweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		tx:        tx,
		orders:    orders,
		outbox:    outbox,
		ledger:    ledger,
		clock:     clk,
		window:    defaultOrderExpiry,
		batchSize: defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep cancels one batch of expired orders and returns how many this call
// cancelled. A failure on one order is logged and the rest continue.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	ids, err := s.orders.ListExpiredPendingOrders(ctx, now.Add(-s.window), s.batchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return cancelled, ctx.Err()
		}
		order, err := s.orders.GetOrder(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("orderId", id).Msg("load expired order")
			continue
		}
		if order.Status != domain.OrderStatusPendingPayment {
			continue
		}
		ok, err := cancelPendingOrder(ctx, s.tx, s.orders, s.outbox, s.ledger, order, cancelCauseExpired, now)
		if err != nil {
			log.Error().Err(err).Str("orderId", id).Msg("cancel expired order")
			continue
		}
		if ok {
			cancelled++
			log.Info().Str("orderId", id).Str("orderNumber", order.OrderNumber).Msg("expired order cancelled")
		}
	}
	return cancelled, nil
}

// Run sweeps on every tick until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context, interval time.Duration, obs JobObserver) {
	runEvery(ctx, interval, JobExpirySweep, obs, s.Sweep)
}
