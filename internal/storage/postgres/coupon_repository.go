package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type CouponRepository struct {
	db
}

func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: db{pool: pool}}
}

func (r *CouponRepository) GetCoupon(ctx context.Context, code string) (domain.Coupon, error) {
	const query = `
SELECT code, percent_off, amount_off, min_subtotal, usage_limit, used_count, expires_at, active
FROM coupons
WHERE code = $1`

	var c domain.Coupon
	err := r.queryRow(ctx, query, code).
		Scan(&c.Code, &c.PercentOff, &c.AmountOff, &c.MinSubtotal, &c.UsageLimit, &c.UsedCount, &c.ExpiresAt, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Coupon{}, domain.ErrCouponNotFound
		}
		return domain.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// IncrementCouponUsage bumps used_count unless the usage limit is reached.
func (r *CouponRepository) IncrementCouponUsage(ctx context.Context, code string) (bool, error) {
	const stmt = `
UPDATE coupons
SET used_count = used_count + 1
WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

	tag, err := r.exec(ctx, stmt, code)
	if err != nil {
		return false, fmt.Errorf("increment coupon usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
