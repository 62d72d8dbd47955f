package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const defaultClientIP = "127.0.0.1"

// SettlementService charges orders through the payment gateway and applies
// asynchronous confirmations (webhook, checkout-form token) to the same
// payment and order rows.
type SettlementService struct {
	tx            Transactor
	orders        OrderRepository
	outbox        OutboxRepository
	gateway       PaymentGateway
	clock         clock.Clock
	webhookSecret string
	allowUnsigned bool
	clientIP      string
}

type SettlementOption func(*SettlementService)

// WithWebhookSecret sets the key used to verify webhook signatures.
func WithWebhookSecret(secret string) SettlementOption {
	return func(s *SettlementService) {
		s.webhookSecret = secret
	}
}

// WithUnsignedWebhooks accepts webhooks that carry no signature at all.
// Only meant for local sandboxes; a present but wrong signature is still
// rejected.
func WithUnsignedWebhooks(allow bool) SettlementOption {
	return func(s *SettlementService) {
		s.allowUnsigned = allow
	}
}

func WithClientIP(ip string) SettlementOption {
	return func(s *SettlementService) {
		if ip != "" {
			s.clientIP = ip
		}
	}
}

func NewSettlementService(tx Transactor, orders OrderRepository, outbox OutboxRepository, gateway PaymentGateway, clk clock.Clock, opts ...SettlementOption) *SettlementService {
	s := &SettlementService{
		tx:       tx,
		orders:   orders,
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

type SettleInput struct {
	OrderID        string
	UserID         int64
	IdempotencyKey string
	Card           domain.Card
}

type PaymentResult struct {
	OrderID             string
	OrderNumber         string
	PaymentID           string
	Status              domain.PaymentStatus
	ProviderReferenceID string
	ErrorMessage        string
	IdempotencyKey      string
	// Replayed is true when the result was served from a previous attempt
	// with the same idempotency key and the gateway was not called.
	Replayed bool
}

func paymentResult(order domain.Order, p domain.Payment, replayed bool) PaymentResult {
	return PaymentResult{
		OrderID:             order.ID,
		OrderNumber:         order.OrderNumber,
		PaymentID:           p.ID,
		Status:              p.Status,
		ProviderReferenceID: p.ProviderReferenceID,
		ErrorMessage:        p.ErrorMessage,
		IdempotencyKey:      p.IdempotencyKey,
		Replayed:            replayed,
	}
}

// Settle charges the order once per idempotency key. A decline is returned
// as a result with status failed; the order stays awaiting payment so the
// user can retry with a new key. While a sent charge has no recorded outcome
// every other key gets ErrPaymentInProgress.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (PaymentResult, error) {
	if in.Card.Empty() {
		return PaymentResult{}, domain.ErrCardRequired
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if order.UserID != in.UserID {
		return PaymentResult{}, domain.ErrOrderNotFound
	}
	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return PaymentResult{}, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = defaultPaymentKey(order.OrderNumber, in.UserID, s.clock.Now())
	}

	if payment.IdempotencyKey == key {
		return replayAttempt(order, payment)
	}
	if payment.Status == domain.PaymentStatusSuccess || payment.Status == domain.PaymentStatusRefunded {
		return PaymentResult{}, domain.ErrAlreadyPaid
	}
	if order.Status != domain.OrderStatusPendingPayment {
		return PaymentResult{}, domain.ErrOrderNotPayable
	}
	if payment.AttemptOutstanding() {
		// The previous charge may still capture. Its webhook or checkout
		// token settles it; a new key never sends a second charge.
		return PaymentResult{}, domain.ErrPaymentInProgress
	}

	claimed, err := s.orders.ClaimPaymentAttempt(ctx, payment.ID, payment.IdempotencyKey, key, s.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			return s.replayByKey(ctx, order, key)
		}
		return PaymentResult{}, err
	}
	if !claimed {
		// Another attempt for this payment got in first.
		current, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
		if err != nil {
			return PaymentResult{}, err
		}
		if current.IdempotencyKey == key {
			return replayAttempt(order, current)
		}
		if current.Status == domain.PaymentStatusSuccess {
			return PaymentResult{}, domain.ErrAlreadyPaid
		}
		return PaymentResult{}, domain.ErrPaymentInProgress
	}
	payment.IdempotencyKey = key

	charge, err := s.gateway.CreatePayment(ctx, s.chargeRequest(order, payment, in.Card))
	if err != nil {
		// Outcome unknown: the payment stays pending under this key and the
		// webhook settles it.
		log.Error().Err(err).Str("orderId", order.ID).Str("paymentId", payment.ID).Msg("gateway charge failed")
		return PaymentResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if _, err := s.apply(ctx, order, payment.ID, key, charge); err != nil {
		return PaymentResult{}, err
	}

	updated, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return PaymentResult{}, err
	}
	return paymentResult(order, updated, false), nil
}

func replayAttempt(order domain.Order, p domain.Payment) (PaymentResult, error) {
	switch p.Status {
	case domain.PaymentStatusSuccess, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
		return paymentResult(order, p, true), nil
	default:
		return PaymentResult{}, domain.ErrPaymentInProgress
	}
}

// replayByKey handles a key already bound to some payment.
func (s *SettlementService) replayByKey(ctx context.Context, order domain.Order, key string) (PaymentResult, error) {
	other, err := s.orders.GetPaymentByIdempotencyKey(ctx, key)
	if err != nil {
		return PaymentResult{}, err
	}
	if other == nil || other.OrderID != order.ID {
		return PaymentResult{}, domain.ErrIdempotencyConflict
	}
	return replayAttempt(order, *other)
}

func (s *SettlementService) chargeRequest(order domain.Order, payment domain.Payment, card domain.Card) domain.ChargeRequest {
	lines := make([]domain.ChargeLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, domain.ChargeLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.PriceSnapshot,
		})
	}
	return domain.ChargeRequest{
		ConversationID:  order.OrderNumber,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		BuyerID:         order.UserID,
		BuyerIP:         s.clientIP,
		ShippingAddress: order.ShippingAddress,
		Card:            card,
		Lines:           lines,
	}
}

type WebhookInput struct {
	EventType      string
	PaymentID      string
	ConversationID string
	Status         string
	Token          string
	Signature      string
}

type ConfirmationResult struct {
	OrderID       string
	OrderStatus   domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	// Applied is false when the confirmation changed nothing.
	Applied bool
}

// WebhookSignature is the hex HMAC-SHA256 the gateway sends with webhooks.
func WebhookSignature(secret, eventType, paymentID, conversationID, status string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(secret + eventType + paymentID + conversationID + status))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *SettlementService) verifySignature(in WebhookInput) error {
	if in.Signature == "" {
		if s.allowUnsigned {
			log.Warn().Str("conversationId", in.ConversationID).Msg("accepting unsigned webhook")
			return nil
		}
		return domain.ErrInvalidSignature
	}
	if s.webhookSecret == "" {
		return domain.ErrInvalidSignature
	}
	expected := WebhookSignature(s.webhookSecret, in.EventType, in.PaymentID, in.ConversationID, in.Status)
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(in.Signature)))
	if err != nil {
		return domain.ErrInvalidSignature
	}
	want, _ := hex.DecodeString(expected)
	if !hmac.Equal(got, want) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// HandleWebhook verifies and applies a gateway webhook. It is safe to
// receive the same webhook any number of times.
func (s *SettlementService) HandleWebhook(ctx context.Context, in WebhookInput) (ConfirmationResult, error) {
	if err := s.verifySignature(in); err != nil {
		log.Warn().Str("conversationId", in.ConversationID).Msg("webhook signature rejected")
		return ConfirmationResult{}, err
	}
	if in.ConversationID == "" {
		return ConfirmationResult{}, domain.ErrInvalidWebhook
	}

	order, err := s.orders.GetOrderByNumber(ctx, in.ConversationID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	if order.Status == domain.OrderStatusPaid {
		return s.unchanged(ctx, order)
	}

	if in.Token != "" {
		return s.verifyToken(ctx, order, in.Token)
	}

	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	charge := domain.ChargeResult{
		Success:           strings.EqualFold(in.Status, "SUCCESS"),
		ProviderPaymentID: in.PaymentID,
		ConversationID:    in.ConversationID,
	}
	if !charge.Success {
		charge.ErrorMessage = "payment failed: " + strings.ToLower(in.Status)
	}
	return s.apply(ctx, order, payment.ID, "", charge)
}

// VerifyCheckoutToken asks the gateway for the result behind a checkout
// form token and applies it.
func (s *SettlementService) VerifyCheckoutToken(ctx context.Context, token, conversationID string) (ConfirmationResult, error) {
	if token == "" || conversationID == "" {
		return ConfirmationResult{}, domain.ErrInvalidWebhook
	}
	order, err := s.orders.GetOrderByNumber(ctx, conversationID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	if order.Status == domain.OrderStatusPaid {
		return s.unchanged(ctx, order)
	}
	return s.verifyToken(ctx, order, token)
}

func (s *SettlementService) verifyToken(ctx context.Context, order domain.Order, token string) (ConfirmationResult, error) {
	charge, err := s.gateway.RetrieveCheckoutForm(ctx, token, order.OrderNumber)
	if err != nil {
		return ConfirmationResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	return s.apply(ctx, order, payment.ID, "", charge)
}

func (s *SettlementService) unchanged(ctx context.Context, order domain.Order) (ConfirmationResult, error) {
	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	return ConfirmationResult{
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		PaymentStatus: payment.Status,
	}, nil
}

// apply records a gateway outcome. Success moves the order to paid with a
// conditional update so only the first confirmation wins. A failure never
// overrides a success. attemptKey names the attempt a synchronous answer
// belongs to; confirmations pass it empty.
func (s *SettlementService) apply(ctx context.Context, order domain.Order, paymentID, attemptKey string, charge domain.ChargeResult) (ConfirmationResult, error) {
	now := s.clock.Now()
	applied := false

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if !charge.Success {
			ok, err := s.orders.MarkPaymentFailed(txCtx, paymentID, attemptKey, charge.ErrorMessage, now)
			if err != nil || !ok {
				return err
			}
			applied = true
			return enqueue(txCtx, s.outbox, domain.EventPaymentFailed, order.ID, domain.PaymentFailedPayload{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				PaymentID:    paymentID,
				ErrorMessage: charge.ErrorMessage,
			}, now)
		}

		paid, err := s.orders.UpdateOrderStatus(txCtx, order.ID, domain.OrderStatusPendingPayment, domain.OrderStatusPaid, now)
		if err != nil {
			return err
		}
		if !paid {
			return s.captureOnClosedOrder(txCtx, order.ID, paymentID, charge, now, &applied)
		}

		if _, err := s.orders.MarkPaymentSucceeded(txCtx, paymentID, charge.ProviderPaymentID, now); err != nil {
			return err
		}
		applied = true
		return enqueue(txCtx, s.outbox, domain.EventOrderPaid, order.ID, domain.OrderPaidPayload{
			OrderID:             order.ID,
			OrderNumber:         order.OrderNumber,
			UserID:              order.UserID,
			PaymentID:           paymentID,
			ProviderReferenceID: charge.ProviderPaymentID,
			Amount:              order.Total,
		}, now)
	})
	if err != nil {
		return ConfirmationResult{}, err
	}

	current, err := s.orders.GetOrder(ctx, order.ID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	payment, err := s.orders.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		return ConfirmationResult{}, err
	}

	if applied {
		log.Info().
			Str("orderId", order.ID).
			Str("paymentId", paymentID).
			Str("orderStatus", string(current.Status)).
			Str("paymentStatus", string(payment.Status)).
			Msg("payment outcome applied")
	}
	return ConfirmationResult{
		OrderID:       order.ID,
		OrderStatus:   current.Status,
		PaymentStatus: payment.Status,
		Applied:       applied,
	}, nil
}

// captureOnClosedOrder handles money captured for an order that is no longer
// awaiting payment. A paid order means another confirmation won; a cancelled
// order needs a manual refund, so the capture is recorded and announced.
func (s *SettlementService) captureOnClosedOrder(ctx context.Context, orderID, paymentID string, charge domain.ChargeResult, now time.Time, applied *bool) error {
	current, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if current.Status == domain.OrderStatusPaid || current.Status == domain.OrderStatusRefunded {
		return nil
	}

	ok, err := s.orders.MarkPaymentSucceeded(ctx, paymentID, charge.ProviderPaymentID, now)
	if err != nil || !ok {
		return err
	}
	*applied = true
	log.Warn().Str("orderId", orderID).Str("orderStatus", string(current.Status)).Msg("payment captured on closed order")
	return enqueue(ctx, s.outbox, domain.EventPaymentCapturedOnClosedOrder, orderID, domain.PaymentCapturedOnClosedOrderPayload{
		OrderID:             orderID,
		OrderNumber:         current.OrderNumber,
		OrderStatus:         current.Status,
		PaymentID:           paymentID,
		ProviderReferenceID: charge.ProviderPaymentID,
	}, now)
}
