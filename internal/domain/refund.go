package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReturnRequestType string

const (
	ReturnTypeCancellation ReturnRequestType = "cancellation"
	ReturnTypeReturn       ReturnRequestType = "return"
)

func (t ReturnRequestType) Valid() bool {
	return t == ReturnTypeCancellation || t == ReturnTypeReturn
}

type ReturnRequestStatus string

const (
	ReturnStatusPending       ReturnRequestStatus = "pending"
	ReturnStatusApproved      ReturnRequestStatus = "approved"
	ReturnStatusRejected      ReturnRequestStatus = "rejected"
	ReturnStatusRefundPending ReturnRequestStatus = "refund_pending"
	ReturnStatusRefunded      ReturnRequestStatus = "refunded"
)

// Active reports whether the request still blocks a new one for the same order.
func (s ReturnRequestStatus) Active() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRefundPending:
		return true
	}
	return false
}

type ReturnRequest struct {
	ID              string
	OrderID         string
	UserID          int64
	Type            ReturnRequestType
	Status          ReturnRequestStatus
	Reason          string
	RequestNote     string
	RequestedAmount decimal.Decimal
	ReviewerID      *int64
	ReviewNote      string
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusSucceeded  RefundStatus = "succeeded"
	RefundStatusFailed     RefundStatus = "failed"
)

type RefundRequest struct {
	ID               string
	ReturnRequestID  string
	OrderID          string
	PaymentID        string
	Amount           decimal.Decimal
	Currency         string
	Status           RefundStatus
	IdempotencyKey   string
	ProviderRefundID string
	FailureReason    string
	ErrorCode        string
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
