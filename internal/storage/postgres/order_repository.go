package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// checkoutKeyIndex backs checkout idempotency; see 0002_orders.sql.
const checkoutKeyIndex = "orders_user_checkout_key_idx"

// OrderRepository stores orders, their items and the single payment row per
// order.
type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

const orderColumns = `
id, order_number, user_id, status, subtotal, discount, shipping_cost, total, currency,
shipping_address, COALESCE(coupon_code, ''), COALESCE(notes, ''), COALESCE(checkout_key, ''),
created_at, updated_at, cancelled_at`

const paymentColumns = `
id, order_id, amount, currency, status, payment_method, COALESCE(provider_reference_id, ''),
idempotency_key, COALESCE(error_message, ''), attempted_at, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Total, &o.Currency,
		&o.ShippingAddress, &o.CouponCode, &o.Notes, &o.CheckoutKey,
		&o.CreatedAt, &o.UpdatedAt, &o.CancelledAt,
	)
	return o, err
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Currency, &p.Status, &p.PaymentMethod,
		&p.ProviderReferenceID, &p.IdempotencyKey, &p.ErrorMessage, &p.AttemptedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// CreateOrder inserts the order, its items and its pending payment. It joins
// the transaction in ctx or opens its own.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order, payment domain.Payment) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		const orderStmt = `
INSERT INTO orders (
	id, order_number, user_id, status, subtotal, discount, shipping_cost, total, currency,
	shipping_address, coupon_code, notes, checkout_key, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), $14, $15)`

		_, err := r.exec(txCtx, orderStmt,
			order.ID, order.OrderNumber, order.UserID, order.Status,
			order.Subtotal, order.Discount, order.ShippingCost, order.Total, order.Currency,
			order.ShippingAddress, order.CouponCode, order.Notes, order.CheckoutKey,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) && constraintName(err) == checkoutKeyIndex {
				return domain.ErrIdempotencyConflict
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create order: %w", err)
		}

		const itemStmt = `
INSERT INTO order_items (order_id, product_id, quantity, price_snapshot)
VALUES ($1, $2, $3, $4)`
		for _, item := range order.Items {
			if _, err := r.exec(txCtx, itemStmt, order.ID, item.ProductID, item.Quantity, item.PriceSnapshot); err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		const paymentStmt = `
INSERT INTO payments (
	id, order_id, amount, currency, status, payment_method, idempotency_key, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err = r.exec(txCtx, paymentStmt,
			payment.ID, payment.OrderID, payment.Amount, payment.Currency, payment.Status,
			payment.PaymentMethod, payment.IdempotencyKey, payment.CreatedAt, payment.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrIdempotencyConflict
			}
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
}

func (r *OrderRepository) FindOrderByCheckoutKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND checkout_key = $2`

	o, err := scanOrder(r.queryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by checkout key: %w", err)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOrder(ctx, query, id)
}

func (r *OrderRepository) GetOrderByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return r.getOrder(ctx, query, orderNumber)
}

func (r *OrderRepository) getOrder(ctx context.Context, query string, arg any) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, query, arg))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const query = `
SELECT product_id, quantity, price_snapshot
FROM order_items
WHERE order_id = $1
ORDER BY id ASC`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.PriceSnapshot); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate order items: %w", rows.Err())
	}
	return items, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	const stmt = `
UPDATE orders
SET status = $3,
	updated_at = $4,
	cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, orderID, from, to, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) ListExpiredPendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const query = `
SELECT id
FROM orders
WHERE status = 'pending_payment' AND created_at < $1
ORDER BY created_at ASC
LIMIT $2`

	rows, err := r.query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect expired orders: %w", err)
	}
	return ids, nil
}

func (r *OrderRepository) GetPaymentByOrderID(ctx context.Context, orderID string) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	p, err := scanPayment(r.queryRow(ctx, query, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Payment{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *OrderRepository) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`

	p, err := scanPayment(r.queryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by idempotency key: %w", err)
	}
	return &p, nil
}

// ClaimPaymentAttempt binds newKey to the payment and stamps the attempt. It
// only succeeds from a failed payment or from a pending one that has never
// been sent to the gateway.
func (r *OrderRepository) ClaimPaymentAttempt(ctx context.Context, paymentID, currentKey, newKey string, at time.Time) (bool, error) {
	const stmt = `
UPDATE payments
SET idempotency_key = $3, status = 'pending', error_message = NULL, attempted_at = $4, updated_at = $4
WHERE id = $1 AND idempotency_key = $2
	AND (status = 'failed' OR (status = 'pending' AND attempted_at IS NULL))`

	tag, err := r.exec(ctx, stmt, paymentID, currentKey, newKey, at)
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrIdempotencyConflict
		}
		return false, fmt.Errorf("claim payment attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) MarkPaymentSucceeded(ctx context.Context, paymentID, providerRef string, at time.Time) (bool, error) {
	const stmt = `
UPDATE payments
SET status = 'success', provider_reference_id = NULLIF($2, ''), error_message = NULL, updated_at = $3
WHERE id = $1 AND status IN ('pending', 'failed')`

	tag, err := r.exec(ctx, stmt, paymentID, providerRef, at)
	if err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaymentFailed records a decline. With attemptKey set it only settles
// the pending attempt made under that key. Without one the failure cannot be
// tied to an attempt, so it only applies while no charge is outstanding.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, paymentID, attemptKey, message string, at time.Time) (bool, error) {
	const stmt = `
UPDATE payments
SET status = 'failed', error_message = $3, updated_at = $4
WHERE id = $1 AND CASE
	WHEN $2 <> '' THEN idempotency_key = $2 AND status = 'pending'
	ELSE status = 'pending' AND attempted_at IS NULL
END`

	tag, err := r.exec(ctx, stmt, paymentID, attemptKey, message, at)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) MarkPaymentRefunded(ctx context.Context, paymentID string, at time.Time) (bool, error) {
	const stmt = `
UPDATE payments
SET status = 'refunded', updated_at = $2
WHERE id = $1 AND status = 'success'`

	tag, err := r.exec(ctx, stmt, paymentID, at)
	if err != nil {
		return false, fmt.Errorf("mark payment refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
