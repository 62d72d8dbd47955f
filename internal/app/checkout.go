package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// Pricing holds the store wide checkout settings.
type Pricing struct {
	Currency              string
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		Currency:              "TRY",
		ShippingCost:          decimal.RequireFromString("29.90"),
		FreeShippingThreshold: decimal.NewFromInt(1000),
	}
}

func (p Pricing) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingCost
}

type CheckoutService struct {
	tx        Transactor
	orders    OrderRepository
	outbox    OutboxRepository
	catalog   PriceCatalog
	ledger    *InventoryLedger
	locker    Locker
	discounts DiscountPolicy
	clock     clock.Clock
	lockTTL   time.Duration
	pricing   Pricing
}

type CheckoutOption func(*CheckoutService)

func WithDiscounts(d DiscountPolicy) CheckoutOption {
	return func(s *CheckoutService) {
		if d != nil {
			s.discounts = d
		}
	}
}

// WithLockTTL overrides how long product locks may be held.
func WithLockTTL(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

func WithPricing(p Pricing) CheckoutOption {
	return func(s *CheckoutService) {
		s.pricing = p
	}
}

func NewCheckoutService(tx Transactor, orders OrderRepository, outbox OutboxRepository, catalog PriceCatalog, ledger *InventoryLedger, locker Locker, clk clock.Clock, opts ...CheckoutOption) *CheckoutService {
	svc := &CheckoutService{
		tx:        tx,
		orders:    orders,
		outbox:    outbox,
		catalog:   catalog,
		ledger:    ledger,
		locker:    locker,
		discounts: noDiscounts{},
		clock:     clk,
		lockTTL:   defaultLockTTL,
		pricing:   DefaultPricing(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CartLine is a product and quantity. The price is always taken from the
// catalog when the order is placed.
type CartLine struct {
	ProductID int64
	Quantity  int
}

type CheckoutInput struct {
	UserID          int64
	Items           []CartLine
	ShippingAddress string
	PaymentMethod   string
	CouponCode      string
	Notes           string
	// CheckoutKey makes a resubmitted checkout return the first order.
	CheckoutKey string
}

type CheckoutResult struct {
	Order   domain.Order
	Payment domain.Payment
	Created bool
}

func (in CheckoutInput) validate() error {
	if in.UserID <= 0 {
		return domain.ErrInvalidID
	}
	if len(in.Items) == 0 {
		return domain.ErrEmptyCart
	}
	for _, item := range in.Items {
		if item.ProductID <= 0 {
			return domain.ErrInvalidID
		}
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return domain.ErrShippingAddressMissing
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return domain.ErrPaymentMethodMissing
	}
	return nil
}

// Checkout turns a cart into a pending-payment order. Stock for every line
// is reserved under per-product locks and committed together with the
// order, its pending payment and the order.created event.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	if err := in.validate(); err != nil {
		return CheckoutResult{}, err
	}

	if in.CheckoutKey != "" {
		if res, ok, err := s.replay(ctx, in.UserID, in.CheckoutKey); err != nil || ok {
			return res, err
		}
	}

	productIDs := make([]int64, 0, len(in.Items))
	for _, item := range in.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	var result CheckoutResult
	err := withLocks(ctx, s.locker, productLockKeys(productIDs), s.lockTTL, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			res, err := s.placeOrder(txCtx, in, productIDs)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyConflict) && in.CheckoutKey != "" {
			// A concurrent duplicate with the same key won the insert.
			if res, ok, rerr := s.replay(ctx, in.UserID, in.CheckoutKey); rerr == nil && ok {
				return res, nil
			}
		}
		return CheckoutResult{}, err
	}

	log.Info().
		Str("orderId", result.Order.ID).
		Str("orderNumber", result.Order.OrderNumber).
		Int64("userId", in.UserID).
		Str("total", result.Order.Total.StringFixed(2)).
		Msg("order placed")
	return result, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, in CheckoutInput, productIDs []int64) (CheckoutResult, error) {
	now := s.clock.Now()
	orderNumber := newOrderNumber(now)

	prices, err := s.catalog.Prices(ctx, productIDs)
	if err != nil {
		return CheckoutResult{}, err
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, line := range in.Items {
		price, ok := prices[line.ProductID]
		if !ok {
			return CheckoutResult{}, domain.ErrProductNotFound
		}
		price = domain.RoundMoney(price)
		if !price.IsPositive() {
			return CheckoutResult{}, domain.ErrInvalidPrice
		}
		item := domain.OrderItem{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			PriceSnapshot: price,
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.LineTotal())
	}

	order := domain.Order{
		ID:              newUUID(),
		OrderNumber:     orderNumber,
		UserID:          in.UserID,
		Status:          domain.OrderStatusPendingPayment,
		Currency:        s.pricing.Currency,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		CouponCode:      strings.TrimSpace(in.CouponCode),
		Notes:           in.Notes,
		CheckoutKey:     in.CheckoutKey,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Reserve in product order so reservations follow the lock order.
	quantities := order.Quantities()
	for _, productID := range sortedProductIDs(quantities) {
		_, err := s.ledger.Reserve(ctx, productID, quantities[productID], in.UserID, domain.ReserveReason(orderNumber))
		if err != nil {
			// The surrounding transaction rolls back earlier reservations.
			return CheckoutResult{}, err
		}
	}

	discount, err := s.discounts.Redeem(ctx, in.UserID, order.CouponCode, subtotal)
	if err != nil {
		return CheckoutResult{}, err
	}

	order.Subtotal = domain.RoundMoney(subtotal)
	order.Discount = discount
	order.ShippingCost = s.pricing.shippingFor(subtotal)
	order.Total = order.Subtotal.Sub(order.Discount).Add(order.ShippingCost)
	if order.Total.IsNegative() {
		order.Total = decimal.Zero
	}

	payment := domain.Payment{
		ID:             newUUID(),
		OrderID:        order.ID,
		Amount:         order.Total,
		Currency:       order.Currency,
		Status:         domain.PaymentStatusPending,
		PaymentMethod:  in.PaymentMethod,
		IdempotencyKey: newUUID(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.orders.CreateOrder(ctx, order, payment); err != nil {
		return CheckoutResult{}, err
	}

	err = enqueue(ctx, s.outbox, domain.EventOrderCreated, order.ID, domain.OrderCreatedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Currency:    order.Currency,
		CouponCode:  order.CouponCode,
	}, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	return CheckoutResult{Order: order, Payment: payment, Created: true}, nil
}

func (s *CheckoutService) replay(ctx context.Context, userID int64, key string) (CheckoutResult, bool, error) {
	existing, err := s.orders.FindOrderByCheckoutKey(ctx, userID, key)
	if err != nil || existing == nil {
		return CheckoutResult{}, false, err
	}
	payment, err := s.orders.GetPaymentByOrderID(ctx, existing.ID)
	if err != nil {
		return CheckoutResult{}, false, err
	}
	return CheckoutResult{Order: *existing, Payment: payment, Created: false}, true, nil
}
