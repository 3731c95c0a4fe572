package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLineTotal_Exact(t *testing.T) {
	got := LineTotal(dec("0.10"), 3)
	assert.True(t, got.Equal(dec("0.30")), "got %s", got)

	got = LineTotal(dec("19.99"), 7)
	assert.True(t, got.Equal(dec("139.93")), "got %s", got)
}

func TestCompute_DocumentedExample(t *testing.T) {
	lines := []orders.OrderLine{
		{VariantID: "A", Quantity: 2, UnitPrice: dec("50.00")},
		{VariantID: "B", Quantity: 1, UnitPrice: dec("30.00")},
	}
	cart := []orders.CartEntry{
		{VariantID: "C", Quantity: 4, UnitPrice: dec("250.00")},
	}

	got := NewEngine().Compute(lines, cart)

	assert.True(t, got.LinesTotal.Equal(dec("130.00")), "lines %s", got.LinesTotal)
	assert.True(t, got.CartSubtotal.Equal(dec("1000.00")), "cart %s", got.CartSubtotal)
	assert.True(t, got.AdditionalFee.Equal(dec("50.00")), "fee %s", got.AdditionalFee)
	assert.True(t, got.Total.Equal(dec("180.00")), "total %s", got.Total)
}

func TestCompute_EmptyCartHasNoFee(t *testing.T) {
	lines := []orders.OrderLine{{VariantID: "A", Quantity: 1, UnitPrice: dec("12.34")}}

	got := NewEngine().Compute(lines, nil)

	assert.True(t, got.AdditionalFee.IsZero())
	assert.True(t, got.Total.Equal(dec("12.34")))
}

func TestAdditionalFee_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		subtotal string
		want     string
	}{
		{"0.10", "0.01"},
		{"0.30", "0.02"},
		{"0.09", "0.00"},
		{"10.10", "0.51"},
		{"33.33", "1.67"},
		{"1000.00", "50.00"},
		{"0", "0"},
	}
	e := NewEngine()
	for _, c := range cases {
		got := e.AdditionalFee(dec(c.subtotal))
		assert.Truef(t, got.Equal(dec(c.want)), "subtotal %s: got %s want %s", c.subtotal, got, c.want)
	}
}

func TestEngine_ZeroRateFallsBackToDefault(t *testing.T) {
	got := Engine{}.AdditionalFee(dec("200"))
	assert.True(t, got.Equal(dec("10")), "got %s", got)
}
