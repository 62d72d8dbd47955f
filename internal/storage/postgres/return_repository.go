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

// ReturnRepository stores return requests and the refund requests opened
// when a return is approved.
type ReturnRepository struct {
	db
}

func NewReturnRepository(pool *pgxpool.Pool) *ReturnRepository {
	return &ReturnRepository{db: db{pool: pool}}
}

const returnColumns = `
id, order_id, user_id, type, status, reason, COALESCE(request_note, ''), requested_amount,
reviewer_id, COALESCE(review_note, ''), reviewed_at, created_at, updated_at`

const refundColumns = `
id, return_request_id, order_id, payment_id, amount, currency, status, idempotency_key,
COALESCE(provider_refund_id, ''), COALESCE(failure_reason, ''), COALESCE(error_code, ''),
processed_at, created_at, updated_at`

func (r *ReturnRepository) CreateReturnRequest(ctx context.Context, rr domain.ReturnRequest) error {
	const stmt = `
INSERT INTO return_requests (
	id, order_id, user_id, type, status, reason, request_note, requested_amount, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		rr.ID, rr.OrderID, rr.UserID, rr.Type, rr.Status, rr.Reason, rr.RequestNote,
		rr.RequestedAmount, rr.CreatedAt, rr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrActiveReturnExists
		}
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create return request: %w", err)
	}
	return nil
}

func (r *ReturnRepository) GetReturnRequest(ctx context.Context, id string) (domain.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1`

	var rr domain.ReturnRequest
	err := r.queryRow(ctx, query, id).Scan(
		&rr.ID, &rr.OrderID, &rr.UserID, &rr.Type, &rr.Status, &rr.Reason, &rr.RequestNote,
		&rr.RequestedAmount, &rr.ReviewerID, &rr.ReviewNote, &rr.ReviewedAt, &rr.CreatedAt, &rr.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ReturnRequest{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReturnRequest{}, domain.ErrReturnRequestNotFound
		}
		return domain.ReturnRequest{}, fmt.Errorf("get return request: %w", err)
	}
	return rr, nil
}

func (r *ReturnRepository) HasActiveReturnRequest(ctx context.Context, orderID string) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM return_requests
	WHERE order_id = $1 AND status IN ('pending', 'approved', 'refund_pending')
)`

	var exists bool
	if err := r.queryRow(ctx, query, orderID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("check active return request: %w", err)
	}
	return exists, nil
}

func (r *ReturnRepository) ReviewReturnRequest(ctx context.Context, rr domain.ReturnRequest) (bool, error) {
	const stmt = `
UPDATE return_requests
SET status = $2, reviewer_id = $3, review_note = NULLIF($4, ''), reviewed_at = $5, updated_at = $6
WHERE id = $1 AND status = 'pending'`

	tag, err := r.exec(ctx, stmt, rr.ID, rr.Status, rr.ReviewerID, rr.ReviewNote, rr.ReviewedAt, rr.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("review return request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReturnRepository) MarkReturnRefunded(ctx context.Context, id string, at time.Time) (bool, error) {
	const stmt = `
UPDATE return_requests
SET status = 'refunded', updated_at = $2
WHERE id = $1 AND status = 'refund_pending'`

	tag, err := r.exec(ctx, stmt, id, at)
	if err != nil {
		return false, fmt.Errorf("mark return refunded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReturnRepository) CreateRefundRequest(ctx context.Context, rf domain.RefundRequest) error {
	const stmt = `
INSERT INTO refund_requests (
	id, return_request_id, order_id, payment_id, amount, currency, status, idempotency_key, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		rf.ID, rf.ReturnRequestID, rf.OrderID, rf.PaymentID, rf.Amount, rf.Currency,
		rf.Status, rf.IdempotencyKey, rf.CreatedAt, rf.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrReturnRequestNotFound
		}
		return fmt.Errorf("create refund request: %w", err)
	}
	return nil
}

func (r *ReturnRepository) GetRefundRequest(ctx context.Context, id string) (domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`

	var rf domain.RefundRequest
	err := r.queryRow(ctx, query, id).Scan(
		&rf.ID, &rf.ReturnRequestID, &rf.OrderID, &rf.PaymentID, &rf.Amount, &rf.Currency, &rf.Status,
		&rf.IdempotencyKey, &rf.ProviderRefundID, &rf.FailureReason, &rf.ErrorCode,
		&rf.ProcessedAt, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.RefundRequest{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefundRequest{}, domain.ErrRefundNotFound
		}
		return domain.RefundRequest{}, fmt.Errorf("get refund request: %w", err)
	}
	return rf, nil
}

// ClaimRefund moves a pending or failed refund to processing. Only one
// caller can win the claim.
func (r *ReturnRepository) ClaimRefund(ctx context.Context, id string, at time.Time) (bool, error) {
	const stmt = `
UPDATE refund_requests
SET status = 'processing', updated_at = $2
WHERE id = $1 AND status IN ('pending', 'failed')`

	tag, err := r.exec(ctx, stmt, id, at)
	if err != nil {
		return false, fmt.Errorf("claim refund: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReturnRepository) CompleteRefund(ctx context.Context, id, providerRefundID string, at time.Time) (bool, error) {
	const stmt = `
UPDATE refund_requests
SET status = 'succeeded', provider_refund_id = NULLIF($2, ''), failure_reason = NULL, error_code = NULL,
	processed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'processing'`

	tag, err := r.exec(ctx, stmt, id, providerRefundID, at)
	if err != nil {
		return false, fmt.Errorf("complete refund: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReturnRepository) FailRefund(ctx context.Context, id, reason, errorCode string, at time.Time) error {
	const stmt = `
UPDATE refund_requests
SET status = 'failed', failure_reason = $2, error_code = NULLIF($3, ''), processed_at = $4, updated_at = $4
WHERE id = $1 AND status <> 'succeeded'`

	if _, err := r.exec(ctx, stmt, id, reason, errorCode, at); err != nil {
		return fmt.Errorf("fail refund: %w", err)
	}
	return nil
}

func (r *ReturnRepository) ResetRefund(ctx context.Context, id, reason string, at time.Time) error {
	const stmt = `
UPDATE refund_requests
SET status = 'pending', failure_reason = $2, updated_at = $3
WHERE id = $1 AND status = 'processing'`

	if _, err := r.exec(ctx, stmt, id, reason, at); err != nil {
		return fmt.Errorf("reset refund: %w", err)
	}
	return nil
}

func (r *ReturnRepository) ResetStaleRefunds(ctx context.Context, cutoff, at time.Time) (int64, error) {
	const stmt = `
UPDATE refund_requests
SET status = 'pending', updated_at = $2
WHERE status = 'processing' AND updated_at < $1`

	tag, err := r.exec(ctx, stmt, cutoff, at)
	if err != nil {
		return 0, fmt.Errorf("reset stale refunds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ReturnRepository) ListPendingRefunds(ctx context.Context, limit int) ([]string, error) {
	const query = `
SELECT id
FROM refund_requests
WHERE status = 'pending'
ORDER BY updated_at ASC
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending refunds: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect pending refunds: %w", err)
	}
	return ids, nil
}
