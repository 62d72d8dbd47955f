package domain

import (
	"errors"
	"fmt"
)

// Validation failures. Rejected before any lock or state change.
var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrShippingAddressMissing = errors.New("shipping address required")
	ErrPaymentMethodMissing   = errors.New("payment method required")
	ErrCardRequired           = errors.New("card details or saved card required")
	ErrInvalidReturnType      = errors.New("invalid return request type")
	ErrInvalidWebhook         = errors.New("invalid webhook payload")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
)

// Not-found failures.
var (
	ErrInventoryNotFound     = errors.New("inventory not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrReturnRequestNotFound = errors.New("return request not found")
	ErrRefundNotFound        = errors.New("refund request not found")
	ErrCouponNotFound        = errors.New("coupon not found")
)

// Conflict and state failures.
var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrInventoryExists        = errors.New("inventory already exists")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrOrderNotCancellable    = errors.New("order cannot be cancelled")
	ErrOrderNotPayable        = errors.New("order is not awaiting payment")
	ErrAlreadyPaid            = errors.New("order already paid")
	ErrPaymentInProgress      = errors.New("payment attempt in progress")
	ErrIdempotencyConflict    = errors.New("idempotency conflict")
	ErrActiveReturnExists     = errors.New("an active return request already exists for this order")
	ErrReturnNotAllowed       = errors.New("return request not allowed for order status")
	ErrReturnAlreadyReviewed  = errors.New("return request already reviewed")
	ErrRefundInProgress       = errors.New("refund already in progress")
	ErrCouponInvalid          = errors.New("coupon is not applicable")
	ErrMissingProviderPayment = errors.New("payment provider reference not found")
)

// Busy and infrastructure failures.
var (
	ErrSystemBusy         = errors.New("system is busy, please retry shortly")
	ErrLockNotHeld        = errors.New("lock not held")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// StockError reports which product could not be reserved. It matches
// ErrInsufficientStock under errors.Is.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
