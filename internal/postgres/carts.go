package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type cartRepo struct{ q querier }

// EntriesForUser prices the cart at current variant prices.
func (r cartRepo) EntriesForUser(ctx context.Context, userID string) ([]orders.CartEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT c.variant_id, c.quantity, v.price::text
		  FROM cart_entries c
		  JOIN variants v ON v.id = c.variant_id
		 WHERE c.user_id = $1
		 ORDER BY c.variant_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.CartEntry
	for rows.Next() {
		var (
			e     orders.CartEntry
			price string
		)
		if err := rows.Scan(&e.VariantID, &e.Quantity, &price); err != nil {
			return nil, err
		}
		if e.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
