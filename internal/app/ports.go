package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// Transactor runs fn inside a database transaction carried by the context.
// Nested calls join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type InventoryRepository interface {
	GetInventory(ctx context.Context, productID int64) (domain.Inventory, error)
	CreateInventory(ctx context.Context, inv domain.Inventory) error
	// CompareAndSwapInventory writes next only if the stored version still
	// equals expectedVersion and bumps the version. It reports whether a row
	// was written.
	CompareAndSwapInventory(ctx context.Context, expectedVersion int64, next domain.Inventory) (bool, error)
	AddMovement(ctx context.Context, m domain.InventoryMovement) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order, payment domain.Payment) error
	FindOrderByCheckoutKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	// UpdateOrderStatus moves the order from -> to and reports whether the
	// row was still in from.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error)
	ListExpiredPendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	GetPaymentByOrderID(ctx context.Context, orderID string) (domain.Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	// ClaimPaymentAttempt swaps the idempotency key from currentKey to newKey
	// and marks the attempt as sent. Only a failed payment or a pending one
	// that was never attempted can be claimed.
	ClaimPaymentAttempt(ctx context.Context, paymentID, currentKey, newKey string, at time.Time) (bool, error)
	MarkPaymentSucceeded(ctx context.Context, paymentID, providerRef string, at time.Time) (bool, error)
	// MarkPaymentFailed settles the attempt made under attemptKey. An empty
	// attemptKey only applies while no attempt is outstanding.
	MarkPaymentFailed(ctx context.Context, paymentID, attemptKey, message string, at time.Time) (bool, error)
	MarkPaymentRefunded(ctx context.Context, paymentID string, at time.Time) (bool, error)
}

type ReturnRepository interface {
	CreateReturnRequest(ctx context.Context, rr domain.ReturnRequest) error
	GetReturnRequest(ctx context.Context, id string) (domain.ReturnRequest, error)
	HasActiveReturnRequest(ctx context.Context, orderID string) (bool, error)
	// ReviewReturnRequest stores the review fields if the request is still pending.
	ReviewReturnRequest(ctx context.Context, rr domain.ReturnRequest) (bool, error)
	MarkReturnRefunded(ctx context.Context, id string, at time.Time) (bool, error)

	CreateRefundRequest(ctx context.Context, rf domain.RefundRequest) error
	GetRefundRequest(ctx context.Context, id string) (domain.RefundRequest, error)
	ClaimRefund(ctx context.Context, id string, at time.Time) (bool, error)
	CompleteRefund(ctx context.Context, id, providerRefundID string, at time.Time) (bool, error)
	FailRefund(ctx context.Context, id, reason, errorCode string, at time.Time) error
	ResetRefund(ctx context.Context, id, reason string, at time.Time) error
	ResetStaleRefunds(ctx context.Context, cutoff, at time.Time) (int64, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]string, error)
}

type OutboxRepository interface {
	EnqueueOutbox(ctx context.Context, msg domain.OutboxMessage) error
	// FetchPendingOutbox locks up to limit unprocessed messages. Must run
	// inside a transaction.
	FetchPendingOutbox(ctx context.Context, limit, maxRetries int) ([]domain.OutboxMessage, error)
	MarkOutboxProcessed(ctx context.Context, id int64, at time.Time) error
	MarkOutboxFailed(ctx context.Context, id int64, lastError string) error
}

type InboxRepository interface {
	InboxSeen(ctx context.Context, consumerName, messageID string) (bool, error)
	// RecordInbox reports false when the pair was already recorded.
	RecordInbox(ctx context.Context, msg domain.InboxMessage) (bool, error)
}

// PriceCatalog returns the current price of each known, active product.
// Unknown ids are absent from the map.
type PriceCatalog interface {
	Prices(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error)
}

type CouponRepository interface {
	GetCoupon(ctx context.Context, code string) (domain.Coupon, error)
	IncrementCouponUsage(ctx context.Context, code string) (bool, error)
}

// Locker is a distributed mutual-exclusion primitive. ok=false means the
// lock is held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error)
	RetrieveCheckoutForm(ctx context.Context, token, conversationID string) (domain.ChargeResult, error)
}

type RefundGateway interface {
	Refund(ctx context.Context, req domain.RefundCharge) (domain.RefundResult, error)
}

// EventPublisher delivers relayed outbox messages to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
}

// Background job names, as reported to a JobObserver.
const (
	JobExpirySweep     = "expiry_sweep"
	JobOutboxRelay     = "outbox_relay"
	JobRefundReconcile = "refund_reconcile"
)

// JobObserver is told the outcome of every background job pass.
type JobObserver interface {
	ObserveJob(job string, processed int, err error)
}
