package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusSuccess, PaymentStatusFailed},
	// A failed attempt may be retried with a fresh idempotency key.
	PaymentStatusFailed:  {PaymentStatusPending, PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusSuccess: {PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID                  string
	OrderID             string
	Amount              decimal.Decimal
	Currency            string
	Status              PaymentStatus
	PaymentMethod       string
	ProviderReferenceID string
	IdempotencyKey      string
	ErrorMessage        string
	// AttemptedAt is set once a charge has been sent under IdempotencyKey.
	AttemptedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AttemptOutstanding reports whether a charge was sent and no outcome has
// been recorded for it yet.
func (p Payment) AttemptOutstanding() bool {
	return p.Status == PaymentStatusPending && p.AttemptedAt != nil
}

// Card carries either raw card details or a stored card token.
type Card struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
	Token       string
}

func (c Card) Empty() bool {
	return c.Token == "" && c.Number == ""
}

// ChargeRequest is what the settlement adapter sends to the payment gateway.
type ChargeRequest struct {
	ConversationID  string
	Amount          decimal.Decimal
	Currency        string
	BuyerID         int64
	BuyerIP         string
	ShippingAddress string
	Card            Card
	Lines           []ChargeLine
}

type ChargeLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// ChargeResult is a gateway answer. Success=false is a decline, not a fault.
type ChargeResult struct {
	Success           bool
	ProviderPaymentID string
	ConversationID    string
	ErrorCode         string
	ErrorMessage      string
}

type RefundCharge struct {
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	IP                string
	ConversationID    string
}

type RefundResult struct {
	Success             bool
	ProviderReferenceID string
	ErrorCode           string
	ErrorMessage        string
}
