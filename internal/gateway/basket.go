package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// AllocateBasket spreads paid across the lines in proportion to each line's
// share of the subtotal. Every line is rounded to two places except the
// largest, which takes the remainder so the basket sums to paid exactly.
func AllocateBasket(lines []domain.ChargeLine, paid decimal.Decimal) []decimal.Decimal {
	if len(lines) == 0 {
		return nil
	}

	totals := make([]decimal.Decimal, len(lines))
	subtotal := decimal.Zero
	largest := 0
	for i, l := range lines {
		totals[i] = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(totals[i])
		if totals[i].GreaterThanOrEqual(totals[largest]) {
			largest = i
		}
	}

	out := make([]decimal.Decimal, len(lines))
	allocated := decimal.Zero
	for i := range lines {
		if i == largest || !subtotal.IsPositive() {
			continue
		}
		out[i] = totals[i].Mul(paid).Div(subtotal).Round(2)
		allocated = allocated.Add(out[i])
	}
	out[largest] = paid.Sub(allocated)
	return out
}
