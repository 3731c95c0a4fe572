package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type userRepo struct{ q querier }

func (r userRepo) FindByID(ctx context.Context, id string) (orders.User, error) {
	return r.findOne(ctx, `SELECT id, email, display_name FROM app_users WHERE id=$1`, id)
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (orders.User, error) {
	return r.findOne(ctx, `SELECT id, email, display_name FROM app_users WHERE lower(email)=lower($1)`, email)
}

func (r userRepo) findOne(ctx context.Context, sql, arg string) (orders.User, error) {
	var u orders.User
	err := r.q.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Email, &u.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.User{}, fmt.Errorf("%w: %s", orders.ErrUserNotFound, arg)
	}
	return u, err
}
