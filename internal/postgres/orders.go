package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

const orderCols = `id, COALESCE(external_id, ''), user_id, status, total_price::text, additional_fee::text,
	shipping_address, phone_number, payment_method, created_at, updated_at, version`

type orderRepo struct{ q querier }

func (r orderRepo) Create(ctx context.Context, o orders.Order) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, total_price, additional_fee,
		                   shipping_address, phone_number, payment_method, created_at, updated_at, version)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.ExternalID, o.UserID, string(o.Status), o.TotalPrice.String(), o.AdditionalFee.String(),
		o.ShippingAddress, o.PhoneNumber, o.PaymentMethod, o.CreatedAt, o.UpdatedAt, o.Version,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", orders.ErrDuplicateOrder, o.ID)
	}
	if err != nil {
		return err
	}

	for _, l := range o.Lines {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, variant_id, position, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			l.ID, o.ID, l.VariantID, l.Position, l.Quantity, l.UnitPrice.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, id string) (orders.Order, error) {
	return r.findOne(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
}

// FindByIDForUpdate holds the row lock until the transaction ends, so a competing
// cancel or status change waits and then sees the new version.
func (r orderRepo) FindByIDForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return r.findOne(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r orderRepo) FindByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	return r.findOne(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id=$1`, externalID)
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, expectedVersion int64, to orders.Status, at time.Time) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `
		UPDATE orders
		   SET status = $3, updated_at = $4, version = version + 1
		 WHERE id = $1 AND version = $2
		RETURNING `+orderCols, id, expectedVersion, string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return orders.Order{}, ferr
		}
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrConcurrentUpdate, id)
	}
	if err != nil {
		return orders.Order{}, err
	}
	if err := r.attachLines(ctx, []*orders.Order{&o}); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r orderRepo) FindByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return r.findMany(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r orderRepo) FindByUserAndStatus(ctx context.Context, userID string, status orders.Status) ([]orders.Order, error) {
	return r.findMany(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 AND status=$2 ORDER BY created_at DESC, id DESC`,
		userID, string(status))
}

func (r orderRepo) FindByVariant(ctx context.Context, variantID string) ([]orders.Order, error) {
	return r.findMany(ctx, `
		SELECT `+orderCols+` FROM orders
		 WHERE id IN (SELECT order_id FROM order_lines WHERE variant_id=$1)
		 ORDER BY created_at DESC, id DESC`, variantID)
}

func (r orderRepo) FindByStatusAndDateRange(ctx context.Context, f orders.DateRangeFilter) ([]orders.Order, error) {
	return r.findMany(ctx, `
		SELECT `+orderCols+` FROM orders
		 WHERE ($1 = '' OR status = $1) AND created_at BETWEEN $2 AND $3
		 ORDER BY created_at DESC, id DESC`, string(f.Status), f.From, f.To)
}

func (r orderRepo) findOne(ctx context.Context, sql string, arg string) (orders.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, arg)
	}
	if err != nil {
		return orders.Order{}, err
	}
	if err := r.attachLines(ctx, []*orders.Order{&o}); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r orderRepo) findMany(ctx context.Context, sql string, args ...any) ([]orders.Order, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*orders.Order, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.attachLines(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLines loads the lines of all given orders in one query.
func (r orderRepo) attachLines(ctx context.Context, list []*orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	byID := make(map[string]*orders.Order, len(list))
	for i, o := range list {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, variant_id, position, quantity, unit_price::text
		  FROM order_lines
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l     orders.OrderLine
			price string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.VariantID, &l.Position, &l.Quantity, &price); err != nil {
			return err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return err
		}
		o := byID[l.OrderID]
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o          orders.Order
		status     string
		total, fee string
	)
	if err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &status, &total, &fee,
		&o.ShippingAddress, &o.PhoneNumber, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt, &o.Version,
	); err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	var err error
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return orders.Order{}, err
	}
	if o.AdditionalFee, err = decimal.NewFromString(fee); err != nil {
		return orders.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}
