package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/clock"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// DiscountPolicy prices a coupon against a subtotal and redeems it on the
// transaction carried by ctx.
type DiscountPolicy interface {
	Redeem(ctx context.Context, userID int64, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

type noDiscounts struct{}

func (noDiscounts) Redeem(_ context.Context, _ int64, code string, _ decimal.Decimal) (decimal.Decimal, error) {
	if code != "" {
		return decimal.Zero, domain.ErrCouponInvalid
	}
	return decimal.Zero, nil
}

// CouponDiscounts applies coupons stored by the promotions system.
type CouponDiscounts struct {
	repo  CouponRepository
	clock clock.Clock
}

func NewCouponDiscounts(repo CouponRepository, clk clock.Clock) *CouponDiscounts {
	return &CouponDiscounts{repo: repo, clock: clk}
}

func (d *CouponDiscounts) Redeem(ctx context.Context, _ int64, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	coupon, err := d.repo.GetCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrCouponNotFound) {
			return decimal.Zero, domain.ErrCouponInvalid
		}
		return decimal.Zero, err
	}

	discount, err := coupon.DiscountFor(subtotal, d.clock.Now())
	if err != nil {
		return decimal.Zero, err
	}

	ok, err := d.repo.IncrementCouponUsage(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		// Usage limit reached between read and increment.
		return decimal.Zero, domain.ErrCouponInvalid
	}
	return discount, nil
}
