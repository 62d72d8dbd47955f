package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	defaultRefundStaleAfter = 10 * time.Minute
	defaultRefundBatch      = 50

	// RefundConsumerName identifies the refund processor in the inbox.
	RefundConsumerName = "refund-processor"
)

type RefundService struct {
	tx       Transactor
	orders   OrderRepository
	returns  ReturnRepository
	outbox   OutboxRepository
	gateway  RefundGateway
	clock    clock.Clock
	clientIP string
}

type RefundServiceOption func(*RefundService)

func WithRefundClientIP(ip string) RefundServiceOption {
	return func(s *RefundService) {
		if ip != "" {
			s.clientIP = ip
		}
	}
}

func NewRefundService(tx Transactor, orders OrderRepository, returns ReturnRepository, outbox OutboxRepository, gateway RefundGateway, clk clock.Clock, opts ...RefundServiceOption) *RefundService {
	s := &RefundService{
		tx:       tx,
		orders:   orders,
		returns:  returns,
		outbox:   outbox,
		gateway:  gateway,
		clock:    clk,
		clientIP: defaultClientIP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RefundOutcome struct {
	Refund domain.RefundRequest
	// Replayed is true when the refund had already succeeded.
	Replayed bool
}

// ProcessRefund drives one refund request to the gateway. A decline is
// recorded and returned with status failed and a nil error. A transport
// fault puts the request back to pending and returns the error so the
// caller retries.
func (s *RefundService) ProcessRefund(ctx context.Context, refundID string) (RefundOutcome, error) {
	refund, err := s.returns.GetRefundRequest(ctx, refundID)
	if err != nil {
		return RefundOutcome{}, err
	}
	if refund.Status == domain.RefundStatusSucceeded {
		return RefundOutcome{Refund: refund, Replayed: true}, nil
	}

	payment, err := s.orders.GetPaymentByOrderID(ctx, refund.OrderID)
	if err != nil {
		return RefundOutcome{}, err
	}
	if payment.ProviderReferenceID == "" {
		reason := domain.ErrMissingProviderPayment.Error()
		if err := s.returns.FailRefund(ctx, refund.ID, reason, "", s.clock.Now()); err != nil {
			return RefundOutcome{}, err
		}
		log.Warn().Str("refundId", refund.ID).Msg(reason)
		return s.reload(ctx, refund.ID)
	}

	claimed, err := s.returns.ClaimRefund(ctx, refund.ID, s.clock.Now())
	if err != nil {
		return RefundOutcome{}, err
	}
	if !claimed {
		current, err := s.returns.GetRefundRequest(ctx, refund.ID)
		if err != nil {
			return RefundOutcome{}, err
		}
		if current.Status == domain.RefundStatusSucceeded {
			return RefundOutcome{Refund: current, Replayed: true}, nil
		}
		return RefundOutcome{}, domain.ErrRefundInProgress
	}

	res, err := s.gateway.Refund(ctx, domain.RefundCharge{
		ProviderPaymentID: payment.ProviderReferenceID,
		Amount:            refund.Amount,
		Currency:          refund.Currency,
		IP:                s.clientIP,
		ConversationID:    refund.IdempotencyKey,
	})
	if err != nil {
		if rerr := s.returns.ResetRefund(context.WithoutCancel(ctx), refund.ID, err.Error(), s.clock.Now()); rerr != nil {
			log.Error().Err(rerr).Str("refundId", refund.ID).Msg("reset refund after gateway error")
		}
		log.Warn().Err(err).Str("refundId", refund.ID).Msg("refund gateway unavailable, will retry")
		return RefundOutcome{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if !res.Success {
		if err := s.fail(ctx, refund, res); err != nil {
			return RefundOutcome{}, err
		}
		return s.reload(ctx, refund.ID)
	}

	if err := s.complete(ctx, refund, payment, res); err != nil {
		return RefundOutcome{}, err
	}
	log.Info().Str("refundId", refund.ID).Str("orderId", refund.OrderID).Msg("refund succeeded")
	return s.reload(ctx, refund.ID)
}

func (s *RefundService) fail(ctx context.Context, refund domain.RefundRequest, res domain.RefundResult) error {
	now := s.clock.Now()
	reason := res.ErrorMessage
	if reason == "" {
		reason = "refund declined by payment provider"
	}
	log.Warn().Str("refundId", refund.ID).Str("errorCode", res.ErrorCode).Msg("refund declined")
	return s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.returns.FailRefund(txCtx, refund.ID, reason, res.ErrorCode, now); err != nil {
			return err
		}
		return enqueue(txCtx, s.outbox, domain.EventRefundFailed, refund.OrderID, domain.RefundResultPayload{
			RefundRequestID: refund.ID,
			OrderID:         refund.OrderID,
			FailureReason:   reason,
			ErrorCode:       res.ErrorCode,
		}, now)
	})
}

// complete moves refund, payment, order and return request in one transaction.
func (s *RefundService) complete(ctx context.Context, refund domain.RefundRequest, payment domain.Payment, res domain.RefundResult) error {
	now := s.clock.Now()
	return s.tx.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.returns.CompleteRefund(txCtx, refund.ID, res.ProviderReferenceID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("complete refund %s: %w", refund.ID, domain.ErrInvalidTransition)
		}
		if _, err := s.orders.MarkPaymentRefunded(txCtx, payment.ID, now); err != nil {
			return err
		}
		if _, err := s.orders.UpdateOrderStatus(txCtx, refund.OrderID, domain.OrderStatusPaid, domain.OrderStatusRefunded, now); err != nil {
			return err
		}
		if _, err := s.returns.MarkReturnRefunded(txCtx, refund.ReturnRequestID, now); err != nil {
			return err
		}
		return enqueue(txCtx, s.outbox, domain.EventRefundSucceeded, refund.OrderID, domain.RefundResultPayload{
			RefundRequestID:  refund.ID,
			OrderID:          refund.OrderID,
			ProviderRefundID: res.ProviderReferenceID,
		}, now)
	})
}

func (s *RefundService) reload(ctx context.Context, id string) (RefundOutcome, error) {
	refund, err := s.returns.GetRefundRequest(ctx, id)
	if err != nil {
		return RefundOutcome{}, err
	}
	return RefundOutcome{Refund: refund}, nil
}

// HandleRefundRequested is the broker handler for refund.requested events.
// Declines are final and acknowledged; gateway faults are returned so the
// message is redelivered.
func (s *RefundService) HandleRefundRequested(ctx context.Context, payload []byte) error {
	var evt domain.RefundRequestedPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("decode refund.requested: %w", err)
	}
	if evt.RefundRequestID == "" {
		return fmt.Errorf("decode refund.requested: %w", domain.ErrInvalidID)
	}
	_, err := s.ProcessRefund(ctx, evt.RefundRequestID)
	if errors.Is(err, domain.ErrRefundInProgress) {
		return nil
	}
	return err
}

// RefundReconciler re-drives refunds left pending by a transient failure or
// stuck in processing after a crash.
type RefundReconciler struct {
	refunds    *RefundService
	returns    ReturnRepository
	clock      clock.Clock
	staleAfter time.Duration
	batchSize  int
}

type RefundReconcilerOption func(*RefundReconciler)

// WithStaleAfter sets how long a refund may stay processing before it is
// considered abandoned.
func WithStaleAfter(d time.Duration) RefundReconcilerOption {
	return func(r *RefundReconciler) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

func NewRefundReconciler(refunds *RefundService, returns ReturnRepository, clk clock.Clock, opts ...RefundReconcilerOption) *RefundReconciler {
	r := &RefundReconciler{
		refunds:    refunds,
		returns:    returns,
		clock:      clk,
		staleAfter: defaultRefundStaleAfter,
		batchSize:  defaultRefundBatch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcileResult struct {
	Reset     int64
	Attempted int
	Succeeded int
}

func (r *RefundReconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	now := r.clock.Now()
	reset, err := r.returns.ResetStaleRefunds(ctx, now.Add(-r.staleAfter), now)
	if err != nil {
		return ReconcileResult{}, err
	}
	res := ReconcileResult{Reset: reset}

	ids, err := r.returns.ListPendingRefunds(ctx, r.batchSize)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Attempted++
		out, err := r.refunds.ProcessRefund(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("refundId", id).Msg("refund retry failed")
			continue
		}
		if out.Refund.Status == domain.RefundStatusSucceeded {
			res.Succeeded++
		}
	}
	return res, nil
}

func (r *RefundReconciler) Run(ctx context.Context, interval time.Duration, obs JobObserver) {
	runEvery(ctx, interval, JobRefundReconcile, obs, func(ctx context.Context) (int, error) {
		res, err := r.Reconcile(ctx)
		return res.Succeeded, err
	})
}
