// Package pricing computes order totals with exact decimal arithmetic.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// DefaultFeeRate is the share of the user's cart subtotal charged as additional fee.
var DefaultFeeRate = decimal.RequireFromString("0.05")

const feePlaces = 2

type Engine struct {
	FeeRate decimal.Decimal
}

func NewEngine() Engine {
	return Engine{FeeRate: DefaultFeeRate}
}

// Totals is the price breakdown persisted on a new order.
type Totals struct {
	LinesTotal    decimal.Decimal
	CartSubtotal  decimal.Decimal
	AdditionalFee decimal.Decimal
	Total         decimal.Decimal
}

func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

func OrderTotal(lines []orders.OrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	return sum
}

func CartSubtotal(entries []orders.CartEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(LineTotal(e.UnitPrice, e.Quantity))
	}
	return sum
}

// AdditionalFee rounds half up to cents. Round in shopspring/decimal rounds half away
// from zero, which is half up for the non-negative subtotals seen here.
func (e Engine) AdditionalFee(cartSubtotal decimal.Decimal) decimal.Decimal {
	return cartSubtotal.Mul(e.rate()).Round(feePlaces)
}

// Compute prices lines of the new order and adds the fee derived from the cart.
// The cart is independent of the order's own lines.
func (e Engine) Compute(lines []orders.OrderLine, cart []orders.CartEntry) Totals {
	linesTotal := OrderTotal(lines)
	subtotal := CartSubtotal(cart)
	fee := e.AdditionalFee(subtotal)
	return Totals{
		LinesTotal:    linesTotal,
		CartSubtotal:  subtotal,
		AdditionalFee: fee,
		Total:         linesTotal.Add(fee),
	}
}

func (e Engine) rate() decimal.Decimal {
	if e.FeeRate.IsZero() {
		return DefaultFeeRate
	}
	return e.FeeRate
}
