package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusCancelled, OrderStatusRefunded},
}

// CanTransitionTo reports whether the order state machine allows s -> to.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

type Order struct {
	ID              string
	OrderNumber     string
	UserID          int64
	Status          OrderStatus
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	ShippingAddress string
	CouponCode      string
	Notes           string
	CheckoutKey     string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

// OrderItem keeps the unit price at checkout time, not the live catalog price.
type OrderItem struct {
	ProductID     int64
	Quantity      int
	PriceSnapshot decimal.Decimal
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Quantities sums item quantities per product.
func (o Order) Quantities() map[int64]int {
	out := make(map[int64]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

// RoundMoney rounds to the two decimal places every stored amount uses.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
