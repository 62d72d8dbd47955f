package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is owned by the promotions system; checkout only reads it and
// bumps its usage counter.
type Coupon struct {
	Code        string
	PercentOff  decimal.Decimal
	AmountOff   decimal.Decimal
	MinSubtotal decimal.Decimal
	UsageLimit  *int
	UsedCount   int
	ExpiresAt   *time.Time
	Active      bool
}

// DiscountFor returns the discount for subtotal, never more than subtotal.
func (c Coupon) DiscountFor(subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, ErrCouponInvalid
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return decimal.Zero, ErrCouponInvalid
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return decimal.Zero, ErrCouponInvalid
	}
	if subtotal.LessThan(c.MinSubtotal) {
		return decimal.Zero, ErrCouponInvalid
	}

	discount := c.AmountOff
	if c.PercentOff.IsPositive() {
		discount = subtotal.Mul(c.PercentOff).Div(decimal.NewFromInt(100))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return RoundMoney(discount), nil
}
