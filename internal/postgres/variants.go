package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

const variantCols = `id, product_id, price::text, available, is_available`

type variantRepo struct{ q querier }

func scanVariant(row pgx.Row) (orders.Variant, error) {
	var (
		v     orders.Variant
		price string
	)
	if err := row.Scan(&v.ID, &v.ProductID, &price, &v.Available, &v.IsAvailable); err != nil {
		return orders.Variant{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Variant{}, err
	}
	v.Price = p
	return v, nil
}

func (r variantRepo) Get(ctx context.Context, id string) (orders.Variant, error) {
	v, err := scanVariant(r.q.QueryRow(ctx, `SELECT `+variantCols+` FROM variants WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Variant{}, &orders.VariantNotFoundError{VariantID: id}
	}
	return v, err
}

// Decrement is a single conditional UPDATE; the row lock it takes serializes
// concurrent decrements of the same variant. When no row matches, a follow-up read
// tells a missing variant apart from a shortage.
func (r variantRepo) Decrement(ctx context.Context, id string, qty int) (orders.Variant, error) {
	v, err := scanVariant(r.q.QueryRow(ctx, `
		UPDATE variants
		   SET available = available - $2, version = version + 1
		 WHERE id = $1 AND is_available AND available >= $2
		RETURNING `+variantCols, id, qty))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return orders.Variant{}, err
	}

	cur, err := r.Get(ctx, id)
	if err != nil {
		return orders.Variant{}, err
	}
	if !cur.IsAvailable {
		return orders.Variant{}, &orders.VariantNotFoundError{VariantID: id}
	}
	return orders.Variant{}, &orders.InsufficientStockError{VariantID: id, Requested: qty, Available: cur.Available}
}

func (r variantRepo) Increment(ctx context.Context, id string, qty int) (orders.Variant, error) {
	v, err := scanVariant(r.q.QueryRow(ctx, `
		UPDATE variants
		   SET available = available + $2, version = version + 1
		 WHERE id = $1
		RETURNING `+variantCols, id, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Variant{}, &orders.VariantNotFoundError{VariantID: id}
	}
	return v, err
}
