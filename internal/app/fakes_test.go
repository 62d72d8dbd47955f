package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type fakeTxKey struct{}

// fakeStore is an in-memory stand-in for every repository. WithTx
// serializes transactions and restores a snapshot when fn fails.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	inventories map[int64]domain.Inventory
	movements   []domain.InventoryMovement
	orders      map[string]domain.Order
	payments    map[string]domain.Payment
	returns     map[string]domain.ReturnRequest
	refunds     map[string]domain.RefundRequest
	outbox      []domain.OutboxMessage
	inbox       map[string]domain.InboxMessage
	coupons     map[string]domain.Coupon
	prices      map[int64]decimal.Decimal

	// beforeSwap runs before every compare-and-swap, outside the lock.
	beforeSwap func(productID int64)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		inventories: map[int64]domain.Inventory{},
		orders:      map[string]domain.Order{},
		payments:    map[string]domain.Payment{},
		returns:     map[string]domain.ReturnRequest{},
		refunds:     map[string]domain.RefundRequest{},
		inbox:       map[string]domain.InboxMessage{},
		coupons:     map[string]domain.Coupon{},
		prices:      map[int64]decimal.Decimal{},
	}
}

type fakeSnapshot struct {
	inventories map[int64]domain.Inventory
	movements   []domain.InventoryMovement
	orders      map[string]domain.Order
	payments    map[string]domain.Payment
	returns     map[string]domain.ReturnRequest
	refunds     map[string]domain.RefundRequest
	outbox      []domain.OutboxMessage
	coupons     map[string]domain.Coupon
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *fakeStore) snapshot() fakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fakeSnapshot{
		inventories: cloneMap(s.inventories),
		movements:   append([]domain.InventoryMovement(nil), s.movements...),
		orders:      cloneMap(s.orders),
		payments:    cloneMap(s.payments),
		returns:     cloneMap(s.returns),
		refunds:     cloneMap(s.refunds),
		outbox:      append([]domain.OutboxMessage(nil), s.outbox...),
		coupons:     cloneMap(s.coupons),
	}
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventories = snap.inventories
	s.movements = snap.movements
	s.orders = snap.orders
	s.payments = snap.payments
	s.returns = snap.returns
	s.refunds = snap.refunds
	s.outbox = snap.outbox
	s.coupons = snap.coupons
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	err := fn(context.WithValue(ctx, fakeTxKey{}, true))
	if err == nil {
		// A cancelled context fails the commit.
		err = ctx.Err()
	}
	if err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// inventory

func (s *fakeStore) GetInventory(_ context.Context, productID int64) (domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.inventories[productID]
	if !ok {
		return domain.Inventory{}, domain.ErrInventoryNotFound
	}
	return inv, nil
}

func (s *fakeStore) CreateInventory(_ context.Context, inv domain.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inventories[inv.ProductID]; ok {
		return domain.ErrInventoryExists
	}
	s.inventories[inv.ProductID] = inv
	return nil
}

func (s *fakeStore) CompareAndSwapInventory(_ context.Context, expectedVersion int64, next domain.Inventory) (bool, error) {
	if s.beforeSwap != nil {
		s.beforeSwap(next.ProductID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.inventories[next.ProductID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	next.Version = expectedVersion + 1
	s.inventories[next.ProductID] = next
	return true, nil
}

func (s *fakeStore) AddMovement(_ context.Context, m domain.InventoryMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = int64(len(s.movements) + 1)
	s.movements = append(s.movements, m)
	return nil
}

// orders and payments

func (s *fakeStore) CreateOrder(_ context.Context, order domain.Order, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if order.CheckoutKey != "" && existing.UserID == order.UserID && existing.CheckoutKey == order.CheckoutKey {
			return domain.ErrIdempotencyConflict
		}
	}
	s.orders[order.ID] = order
	s.payments[payment.ID] = payment
	return nil
}

func (s *fakeStore) FindOrderByCheckoutKey(_ context.Context, userID int64, key string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.UserID == userID && o.CheckoutKey == key {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeStore) GetOrderByNumber(_ context.Context, number string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	if to == domain.OrderStatusCancelled {
		cancelledAt := at
		o.CancelledAt = &cancelledAt
	}
	s.orders[orderID] = o
	return true, nil
}

func (s *fakeStore) ListExpiredPendingOrders(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusPendingPayment && o.CreatedAt.Before(cutoff) {
			expired = append(expired, o)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })
	ids := make([]string, 0, len(expired))
	for _, o := range expired {
		if len(ids) == limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (s *fakeStore) paymentForOrder(orderID string) (domain.Payment, bool) {
	for _, p := range s.payments {
		if p.OrderID == orderID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

func (s *fakeStore) GetPaymentByOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paymentForOrder(orderID)
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (s *fakeStore) GetPaymentByIdempotencyKey(_ context.Context, key string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.IdempotencyKey == key {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ClaimPaymentAttempt(_ context.Context, paymentID, currentKey, newKey string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if id != paymentID && p.IdempotencyKey == newKey {
			return false, domain.ErrIdempotencyConflict
		}
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.IdempotencyKey != currentKey {
		return false, nil
	}
	if p.Status != domain.PaymentStatusFailed && (p.Status != domain.PaymentStatusPending || p.AttemptedAt != nil) {
		return false, nil
	}
	attempted := at
	p.IdempotencyKey = newKey
	p.Status = domain.PaymentStatusPending
	p.ErrorMessage = ""
	p.AttemptedAt = &attempted
	p.UpdatedAt = at
	s.payments[paymentID] = p
	return true, nil
}

func (s *fakeStore) MarkPaymentSucceeded(_ context.Context, paymentID, providerRef string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.payments[paymentID]
	if p.Status != domain.PaymentStatusPending && p.Status != domain.PaymentStatusFailed {
		return false, nil
	}
	p.Status = domain.PaymentStatusSuccess
	p.ProviderReferenceID = providerRef
	p.ErrorMessage = ""
	p.UpdatedAt = at
	s.payments[paymentID] = p
	return true, nil
}

func (s *fakeStore) MarkPaymentFailed(_ context.Context, paymentID, attemptKey, message string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.payments[paymentID]
	if p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	if attemptKey != "" && p.IdempotencyKey != attemptKey {
		return false, nil
	}
	if attemptKey == "" && p.AttemptedAt != nil {
		return false, nil
	}
	p.Status = domain.PaymentStatusFailed
	p.ErrorMessage = message
	p.UpdatedAt = at
	s.payments[paymentID] = p
	return true, nil
}

func (s *fakeStore) MarkPaymentRefunded(_ context.Context, paymentID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.payments[paymentID]
	if p.Status != domain.PaymentStatusSuccess {
		return false, nil
	}
	p.Status = domain.PaymentStatusRefunded
	p.UpdatedAt = at
	s.payments[paymentID] = p
	return true, nil
}

// returns and refunds

func (s *fakeStore) CreateReturnRequest(_ context.Context, rr domain.ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.returns {
		if existing.OrderID == rr.OrderID && existing.Status.Active() {
			return domain.ErrActiveReturnExists
		}
	}
	s.returns[rr.ID] = rr
	return nil
}

func (s *fakeStore) GetReturnRequest(_ context.Context, id string) (domain.ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rr, ok := s.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnRequestNotFound
	}
	return rr, nil
}

func (s *fakeStore) HasActiveReturnRequest(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range s.returns {
		if rr.OrderID == orderID && rr.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ReviewReturnRequest(_ context.Context, rr domain.ReturnRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.returns[rr.ID]
	if !ok || cur.Status != domain.ReturnStatusPending {
		return false, nil
	}
	s.returns[rr.ID] = rr
	return true, nil
}

func (s *fakeStore) MarkReturnRefunded(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rr, ok := s.returns[id]
	if !ok || rr.Status != domain.ReturnStatusRefundPending {
		return false, nil
	}
	rr.Status = domain.ReturnStatusRefunded
	rr.UpdatedAt = at
	s.returns[id] = rr
	return true, nil
}

func (s *fakeStore) CreateRefundRequest(_ context.Context, rf domain.RefundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refunds {
		if existing.ReturnRequestID == rf.ReturnRequestID || existing.IdempotencyKey == rf.IdempotencyKey {
			return domain.ErrIdempotencyConflict
		}
	}
	s.refunds[rf.ID] = rf
	return nil
}

func (s *fakeStore) GetRefundRequest(_ context.Context, id string) (domain.RefundRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf, ok := s.refunds[id]
	if !ok {
		return domain.RefundRequest{}, domain.ErrRefundNotFound
	}
	return rf, nil
}

func (s *fakeStore) ClaimRefund(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.refunds[id]
	if rf.Status != domain.RefundStatusPending && rf.Status != domain.RefundStatusFailed {
		return false, nil
	}
	rf.Status = domain.RefundStatusProcessing
	rf.UpdatedAt = at
	s.refunds[id] = rf
	return true, nil
}

func (s *fakeStore) CompleteRefund(_ context.Context, id, providerRefundID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.refunds[id]
	if rf.Status != domain.RefundStatusProcessing {
		return false, nil
	}
	rf.Status = domain.RefundStatusSucceeded
	rf.ProviderRefundID = providerRefundID
	rf.FailureReason = ""
	rf.ErrorCode = ""
	rf.ProcessedAt = &at
	rf.UpdatedAt = at
	s.refunds[id] = rf
	return true, nil
}

func (s *fakeStore) FailRefund(_ context.Context, id, reason, errorCode string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.refunds[id]
	if rf.Status == domain.RefundStatusSucceeded {
		return nil
	}
	rf.Status = domain.RefundStatusFailed
	rf.FailureReason = reason
	rf.ErrorCode = errorCode
	rf.ProcessedAt = &at
	rf.UpdatedAt = at
	s.refunds[id] = rf
	return nil
}

func (s *fakeStore) ResetRefund(_ context.Context, id, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rf := s.refunds[id]
	if rf.Status != domain.RefundStatusProcessing {
		return nil
	}
	rf.Status = domain.RefundStatusPending
	rf.FailureReason = reason
	rf.UpdatedAt = at
	s.refunds[id] = rf
	return nil
}

func (s *fakeStore) ResetStaleRefunds(_ context.Context, cutoff, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rf := range s.refunds {
		if rf.Status == domain.RefundStatusProcessing && rf.UpdatedAt.Before(cutoff) {
			rf.Status = domain.RefundStatusPending
			rf.UpdatedAt = at
			s.refunds[id] = rf
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListPendingRefunds(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rf := range s.refunds {
		if rf.Status == domain.RefundStatusPending && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// outbox and inbox

func (s *fakeStore) EnqueueOutbox(_ context.Context, msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = int64(len(s.outbox) + 1)
	s.outbox = append(s.outbox, msg)
	return nil
}

func (s *fakeStore) FetchPendingOutbox(_ context.Context, limit, maxRetries int) ([]domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OutboxMessage
	for _, m := range s.outbox {
		if m.ProcessedAt == nil && m.RetryCount < maxRetries && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkOutboxProcessed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	processed := at
	s.outbox[id-1].ProcessedAt = &processed
	return nil
}

func (s *fakeStore) MarkOutboxFailed(_ context.Context, id int64, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[id-1].RetryCount++
	s.outbox[id-1].LastError = lastError
	return nil
}

func (s *fakeStore) InboxSeen(_ context.Context, consumer, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inbox[consumer+"/"+messageID]
	return ok, nil
}

func (s *fakeStore) RecordInbox(_ context.Context, msg domain.InboxMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msg.ConsumerName + "/" + msg.MessageID
	if _, ok := s.inbox[key]; ok {
		return false, nil
	}
	s.inbox[key] = msg
	return true, nil
}

// coupons

func (s *fakeStore) GetCoupon(_ context.Context, code string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return domain.Coupon{}, domain.ErrCouponNotFound
	}
	return c, nil
}

func (s *fakeStore) IncrementCouponUsage(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coupons[code]
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsedCount++
	s.coupons[code] = c
	return true, nil
}

// catalog

func (s *fakeStore) Prices(_ context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		if price, ok := s.prices[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

// helpers

// seedProduct stocks a product and lists it at price.
func (s *fakeStore) seedProduct(productID int64, available int, price string) {
	s.seedInventory(productID, available)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[productID] = decimal.RequireFromString(price)
}

func (s *fakeStore) seedInventory(productID int64, available int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventories[productID] = domain.Inventory{ProductID: productID, QuantityAvailable: available, Version: 1}
}

func (s *fakeStore) seedOrder(order domain.Order, payment domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	s.payments[payment.ID] = payment
}

func (s *fakeStore) inventory(productID int64) domain.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventories[productID]
}

func (s *fakeStore) order(id string) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *fakeStore) paymentOf(orderID string) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.paymentForOrder(orderID)
	return p
}

func (s *fakeStore) refund(id string) domain.RefundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunds[id]
}

func (s *fakeStore) returnRequest(id string) domain.ReturnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returns[id]
}

func (s *fakeStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.outbox))
	for _, m := range s.outbox {
		out = append(out, m.EventType)
	}
	return out
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// fakeLocker is an in-process Locker.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
	releases int
	next     int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.next++
	token := key + "#" + time.Duration(l.next).String()
	l.held[key] = token
	l.acquires++
	return token, true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return domain.ErrLockNotHeld
	}
	delete(l.held, key)
	l.releases++
	return nil
}

// waitingLocker blocks until the key is free, like a Redis lock with a
// long enough wait.
type waitingLocker struct {
	mu    sync.Mutex
	keys  map[string]chan struct{}
	token int
}

func newWaitingLocker() *waitingLocker {
	return &waitingLocker{keys: map[string]chan struct{}{}}
}

func (l *waitingLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

func (l *waitingLocker) Acquire(ctx context.Context, key string, _ time.Duration) (string, bool, error) {
	select {
	case l.slot(key) <- struct{}{}:
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.token++
	return key + "#" + time.Duration(l.token).String(), true, nil
}

func (l *waitingLocker) Release(_ context.Context, key, _ string) error {
	select {
	case <-l.slot(key):
		return nil
	default:
		return domain.ErrLockNotHeld
	}
}

func (l *fakeLocker) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

type fakePaymentGateway struct {
	mu          sync.Mutex
	charges     int
	lookups     int
	result      domain.ChargeResult
	err         error
	formResults map[string]domain.ChargeResult
	lastCharge  domain.ChargeRequest

	// inFlight runs inside CreatePayment before the answer is produced.
	inFlight func()
}

func (g *fakePaymentGateway) CreatePayment(_ context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if g.inFlight != nil {
		g.inFlight()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges++
	g.lastCharge = req
	if g.err != nil {
		return domain.ChargeResult{}, g.err
	}
	return g.result, nil
}

func (g *fakePaymentGateway) RetrieveCheckoutForm(_ context.Context, token, _ string) (domain.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	if g.err != nil {
		return domain.ChargeResult{}, g.err
	}
	return g.formResults[token], nil
}

func (g *fakePaymentGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

type fakeRefundGateway struct {
	mu     sync.Mutex
	calls  int
	result domain.RefundResult
	err    error
	last   domain.RefundCharge
}

func (g *fakeRefundGateway) Refund(_ context.Context, req domain.RefundCharge) (domain.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return domain.RefundResult{}, g.err
	}
	return g.result, nil
}

func (g *fakeRefundGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
