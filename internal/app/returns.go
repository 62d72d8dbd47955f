package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// ReturnService owns customer return/cancellation requests and their review.
// Approving a request for a captured payment opens a refund request that the
// refund orchestrator processes.
type ReturnService struct {
	tx      Transactor
	orders  OrderRepository
	returns ReturnRepository
	outbox  OutboxRepository
	clock   clock.Clock
}

func NewReturnService(tx Transactor, orders OrderRepository, returns ReturnRepository, outbox OutboxRepository, clk clock.Clock) *ReturnService {
	return &ReturnService{
		tx:      tx,
		orders:  orders,
		returns: returns,
		outbox:  outbox,
		clock:   clk,
	}
}

type CreateReturnInput struct {
	UserID  int64
	OrderID string
	Type    domain.ReturnRequestType
	Reason  string
	Note    string
}

func returnAllowed(t domain.ReturnRequestType, status domain.OrderStatus) bool {
	switch t {
	case domain.ReturnTypeCancellation:
		return status == domain.OrderStatusPendingPayment || status == domain.OrderStatusPaid
	case domain.ReturnTypeReturn:
		return status == domain.OrderStatusPaid
	}
	return false
}

func (s *ReturnService) CreateReturnRequest(ctx context.Context, in CreateReturnInput) (domain.ReturnRequest, error) {
	if !in.Type.Valid() {
		return domain.ReturnRequest{}, domain.ErrInvalidReturnType
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if order.UserID != in.UserID {
		return domain.ReturnRequest{}, domain.ErrOrderNotFound
	}
	if !returnAllowed(in.Type, order.Status) {
		return domain.ReturnRequest{}, domain.ErrReturnNotAllowed
	}

	active, err := s.returns.HasActiveReturnRequest(ctx, order.ID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if active {
		return domain.ReturnRequest{}, domain.ErrActiveReturnExists
	}

	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	amount := decimal.Zero
	if payment.Status == domain.PaymentStatusSuccess {
		amount = order.Total
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = string(in.Type)
	}

	now := s.clock.Now()
	rr := domain.ReturnRequest{
		ID:              newUUID(),
		OrderID:         order.ID,
		UserID:          in.UserID,
		Type:            in.Type,
		Status:          domain.ReturnStatusPending,
		Reason:          reason,
		RequestNote:     in.Note,
		RequestedAmount: amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.returns.CreateReturnRequest(ctx, rr); err != nil {
		return domain.ReturnRequest{}, err
	}

	log.Info().Str("returnRequestId", rr.ID).Str("orderId", order.ID).Str("type", string(rr.Type)).Msg("return request created")
	return rr, nil
}

type ReviewReturnInput struct {
	ReturnRequestID string
	ReviewerID      int64
	Approve         bool
	Note            string
}

type ReviewResult struct {
	ReturnRequest domain.ReturnRequest
	// Refund is set when approval opened a refund request.
	Refund *domain.RefundRequest
}

// ReviewReturnRequest approves or rejects a pending request.
func (s *ReturnService) ReviewReturnRequest(ctx context.Context, in ReviewReturnInput) (ReviewResult, error) {
	rr, err := s.returns.GetReturnRequest(ctx, in.ReturnRequestID)
	if err != nil {
		return ReviewResult{}, err
	}
	if rr.Status != domain.ReturnStatusPending {
		return ReviewResult{}, domain.ErrReturnAlreadyReviewed
	}

	payment, err := s.orders.GetPaymentByOrderID(ctx, rr.OrderID)
	if err != nil {
		return ReviewResult{}, err
	}

	now := s.clock.Now()
	reviewer := in.ReviewerID
	rr.ReviewerID = &reviewer
	rr.ReviewNote = in.Note
	rr.ReviewedAt = &now
	rr.UpdatedAt = now

	var refund *domain.RefundRequest
	switch {
	case !in.Approve:
		rr.Status = domain.ReturnStatusRejected
	case payment.Status == domain.PaymentStatusSuccess && rr.RequestedAmount.IsPositive():
		rr.Status = domain.ReturnStatusRefundPending
		refund = &domain.RefundRequest{
			ID:              newUUID(),
			ReturnRequestID: rr.ID,
			OrderID:         rr.OrderID,
			PaymentID:       payment.ID,
			Amount:          rr.RequestedAmount,
			Currency:        payment.Currency,
			Status:          domain.RefundStatusPending,
			IdempotencyKey:  refundKey(rr.ID),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	default:
		rr.Status = domain.ReturnStatusApproved
	}

	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.returns.ReviewReturnRequest(txCtx, rr)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrReturnAlreadyReviewed
		}
		if refund == nil {
			return nil
		}
		if err := s.returns.CreateRefundRequest(txCtx, *refund); err != nil {
			return err
		}
		return enqueue(txCtx, s.outbox, domain.EventRefundRequested, rr.OrderID, domain.RefundRequestedPayload{
			RefundRequestID: refund.ID,
			ReturnRequestID: rr.ID,
			OrderID:         rr.OrderID,
			Amount:          refund.Amount,
		}, now)
	})
	if err != nil {
		return ReviewResult{}, err
	}

	log.Info().
		Str("returnRequestId", rr.ID).
		Str("status", string(rr.Status)).
		Int64("reviewerId", in.ReviewerID).
		Msg("return request reviewed")
	return ReviewResult{ReturnRequest: rr, Refund: refund}, nil
}
