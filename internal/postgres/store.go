// Package postgres implements the order persistence contracts on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct{ DB *pgxpool.Pool }

var _ orders.Store = (*Store)(nil)

func (s *Store) Stores() orders.Stores {
	return bind(s.DB)
}

// maxTxAttempts bounds reruns of a transaction Postgres aborted as a deadlock
// victim or serialization failure.
const maxTxAttempts = 3

// WithinTx commits only when fn returns nil. fn may run more than once: two orders
// that reserve the same variants in opposite order can deadlock, and Postgres aborts
// one of them. If every attempt is aborted that way the error is
// orders.ErrConcurrentUpdate.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	return retryAborted(ctx, maxTxAttempts, func() error { return s.runTx(ctx, fn) })
}

func retryAborted(ctx context.Context, attempts int, run func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = run(); !isTxAborted(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", orders.ErrConcurrentUpdate, err)
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func bind(q querier) orders.Stores {
	return orders.Stores{
		Users:    userRepo{q},
		Variants: variantRepo{q},
		Carts:    cartRepo{q},
		Orders:   orderRepo{q},
	}
}

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func isTxAborted(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}
