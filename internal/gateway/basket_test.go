package gateway

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

func TestAllocateBasket(t *testing.T) {
	t.Parallel()

	d := decimal.RequireFromString
	tests := []struct {
		name  string
		lines []domain.ChargeLine
		paid  string
		want  []string
	}{
		{
			name:  "empty",
			lines: nil,
			paid:  "10.00",
			want:  nil,
		},
		{
			name:  "single line takes everything",
			lines: []domain.ChargeLine{{ProductID: 1, Quantity: 3, UnitPrice: d("10.00")}},
			paid:  "59.90",
			want:  []string{"59.90"},
		},
		{
			name: "shipping spread proportionally",
			lines: []domain.ChargeLine{
				{ProductID: 1, Quantity: 2, UnitPrice: d("50.00")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("100.00")},
			},
			paid: "229.90",
			want: []string{"114.95", "114.95"},
		},
		{
			name: "discount below subtotal",
			lines: []domain.ChargeLine{
				{ProductID: 1, Quantity: 1, UnitPrice: d("100.00")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("200.00")},
			},
			paid: "270.00",
			want: []string{"90.00", "180.00"},
		},
		{
			name: "remainder lands on the largest line",
			lines: []domain.ChargeLine{
				{ProductID: 1, Quantity: 1, UnitPrice: d("1.00")},
				{ProductID: 2, Quantity: 1, UnitPrice: d("1.00")},
				{ProductID: 3, Quantity: 1, UnitPrice: decimal.Zero},
			},
			paid: "0.01",
			want: []string{"0.01", "0.00", "0.00"},
		},
		{
			name: "largest line first",
			lines: []domain.ChargeLine{
				{ProductID: 1, Quantity: 1, UnitPrice: d("200.00")},
				{ProductID: 2, Quantity: 3, UnitPrice: d("0.10")},
			},
			paid: "229.90",
			want: []string{"229.56", "0.34"},
		},
		{
			name: "zero subtotal",
			lines: []domain.ChargeLine{
				{ProductID: 1, Quantity: 1, UnitPrice: decimal.Zero},
				{ProductID: 2, Quantity: 1, UnitPrice: decimal.Zero},
			},
			paid: "29.90",
			want: []string{"0.00", "29.90"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			paid := d(tt.paid)
			got := AllocateBasket(tt.lines, paid)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d amounts, got %d", len(tt.want), len(got))
			}
			sum := decimal.Zero
			for i, amount := range got {
				if amount.StringFixed(2) != tt.want[i] {
					t.Fatalf("line %d: expected %s, got %s", i, tt.want[i], amount.StringFixed(2))
				}
				sum = sum.Add(amount)
			}
			if len(got) > 0 && !sum.Equal(paid) {
				t.Fatalf("expected basket to sum to %s, got %s", paid, sum)
			}
		})
	}
}
