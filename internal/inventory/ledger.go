package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// Reservation is one successful check-and-decrement.
type Reservation struct {
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	Available int // after the decrement
}

// Restoration is one increment issued on cancellation or compensation.
type Restoration struct {
	VariantID string
	Quantity  int
	Available int // after the increment
}

// Ledger reserves and restores variant stock. Atomicity of a single reservation is
// delegated to VariantStore.Decrement; ReserveAll adds all-or-nothing semantics
// across the lines of one order.
type Ledger struct {
	variants orders.VariantStore
}

func NewLedger(variants orders.VariantStore) *Ledger {
	return &Ledger{variants: variants}
}

// Reserve decrements the variant by qty and returns the unit price read in the same
// atomic step. On *orders.InsufficientStockError nothing was changed.
func (l *Ledger) Reserve(ctx context.Context, variantID string, qty int) (Reservation, error) {
	if qty < 1 {
		return Reservation{}, fmt.Errorf("%w: variant %s qty %d", orders.ErrInvalidQuantity, variantID, qty)
	}
	v, err := l.variants.Decrement(ctx, variantID, qty)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		VariantID: variantID,
		Quantity:  qty,
		UnitPrice: v.Price,
		Available: v.Available,
	}, nil
}

func (l *Ledger) Restore(ctx context.Context, variantID string, qty int) (Restoration, error) {
	if qty < 1 {
		return Restoration{}, fmt.Errorf("%w: variant %s qty %d", orders.ErrInvalidQuantity, variantID, qty)
	}
	v, err := l.variants.Increment(ctx, variantID, qty)
	if err != nil {
		return Restoration{}, err
	}
	return Restoration{VariantID: variantID, Quantity: qty, Available: v.Available}, nil
}

// ReserveAll reserves items in the given order. If item N fails, items 1..N-1 are
// restored before the error is returned, so the store ends where it started even
// when it is not running inside a transaction.
func (l *Ledger) ReserveAll(ctx context.Context, items []orders.ItemInput) ([]Reservation, error) {
	out := make([]Reservation, 0, len(items))
	for _, it := range items {
		r, err := l.Reserve(ctx, it.VariantID, it.Qty)
		if err != nil {
			if cerr := l.compensate(ctx, out); cerr != nil {
				return nil, fmt.Errorf("%w (compensation failed: %v)", err, cerr)
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *Ledger) compensate(ctx context.Context, done []Reservation) error {
	for i := len(done) - 1; i >= 0; i-- {
		if _, err := l.Restore(ctx, done[i].VariantID, done[i].Quantity); err != nil {
			return err
		}
	}
	return nil
}
