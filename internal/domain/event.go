package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated                 = "order.created"
	EventOrderPaid                    = "order.paid"
	EventOrderCancelled               = "order.cancelled"
	EventPaymentFailed                = "payment.failed"
	EventPaymentCapturedOnClosedOrder = "payment.captured_on_closed_order"
	EventRefundRequested              = "refund.requested"
	EventRefundSucceeded              = "refund.succeeded"
	EventRefundFailed                 = "refund.failed"
)

// OutboxMessage is written in the same transaction as the state change it
// announces and relayed to the broker afterwards.
type OutboxMessage struct {
	ID          int64
	EventID     string
	EventType   string
	AggregateID string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
	RetryCount  int
	LastError   string
}

type InboxMessage struct {
	ConsumerName string
	MessageID    string
	MessageType  string
	ProcessedAt  time.Time
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      int64           `json:"userId"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	CouponCode  string          `json:"couponCode,omitempty"`
}

type OrderPaidPayload struct {
	OrderID             string          `json:"orderId"`
	OrderNumber         string          `json:"orderNumber"`
	UserID              int64           `json:"userId"`
	PaymentID           string          `json:"paymentId"`
	ProviderReferenceID string          `json:"providerReferenceId"`
	Amount              decimal.Decimal `json:"amount"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      int64  `json:"userId"`
	Reason      string `json:"reason"`
}

type PaymentFailedPayload struct {
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	PaymentID    string `json:"paymentId"`
	ErrorMessage string `json:"errorMessage"`
}

type PaymentCapturedOnClosedOrderPayload struct {
	OrderID             string      `json:"orderId"`
	OrderNumber         string      `json:"orderNumber"`
	OrderStatus         OrderStatus `json:"orderStatus"`
	PaymentID           string      `json:"paymentId"`
	ProviderReferenceID string      `json:"providerReferenceId"`
}

type RefundRequestedPayload struct {
	RefundRequestID string          `json:"refundRequestId"`
	ReturnRequestID string          `json:"returnRequestId"`
	OrderID         string          `json:"orderId"`
	Amount          decimal.Decimal `json:"amount"`
}

type RefundResultPayload struct {
	RefundRequestID  string `json:"refundRequestId"`
	OrderID          string `json:"orderId"`
	ProviderRefundID string `json:"providerRefundId,omitempty"`
	FailureReason    string `json:"failureReason,omitempty"`
	ErrorCode        string `json:"errorCode,omitempty"`
}
