package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

func seeded() *Store {
	s := New()
	s.PutUser(orders.User{ID: "u-1", Email: "ana@example.com", DisplayName: "Ana"})
	s.PutVariant(orders.Variant{ID: "v-1", Price: decimal.RequireFromString("9.50"), Available: 5, IsAvailable: true})
	s.PutVariant(orders.Variant{ID: "v-off", Price: decimal.RequireFromString("1.00"), Available: 5, IsAvailable: false})
	return s
}

func TestDecrement_Guard(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	vs := s.Stores().Variants

	v, err := vs.Decrement(ctx, "v-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Available)

	_, err = vs.Decrement(ctx, "v-1", 1)
	var se *orders.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Available)
	assert.Equal(t, 0, s.Available("v-1"))

	_, err = vs.Decrement(ctx, "v-off", 1)
	assert.ErrorIs(t, err, orders.ErrVariantNotFound)

	_, err = vs.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, orders.ErrVariantNotFound)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Stores) error {
		if _, err := tx.Variants.Decrement(ctx, "v-1", 3); err != nil {
			return err
		}
		if err := tx.Orders.Create(ctx, orders.Order{ID: "o-1", UserID: "u-1", Status: orders.StatusPending}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, s.Available("v-1"))
	assert.Equal(t, 0, s.OrderCount())
}

func TestWithinTx_Commits(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Stores) error {
		_, err := tx.Variants.Decrement(ctx, "v-1", 2)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 3, s.Available("v-1"))
}

func TestUpdateStatus_VersionGuard(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	repo := s.Stores().Orders
	require.NoError(t, repo.Create(ctx, orders.Order{ID: "o-1", UserID: "u-1", Status: orders.StatusPending}))

	o, err := repo.UpdateStatus(ctx, "o-1", 0, orders.StatusProcessing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.Version)

	_, err = repo.UpdateStatus(ctx, "o-1", 0, orders.StatusCancelled, time.Now())
	assert.ErrorIs(t, err, orders.ErrConcurrentUpdate)
}

func TestCreate_DuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	repo := s.Stores().Orders

	require.NoError(t, repo.Create(ctx, orders.Order{ID: "o-1", ExternalID: "ext-1"}))
	err := repo.Create(ctx, orders.Order{ID: "o-2", ExternalID: "ext-1"})
	assert.ErrorIs(t, err, orders.ErrDuplicateOrder)

	got, err := repo.FindByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)
}

func TestReadsDoNotAliasStoredLines(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	repo := s.Stores().Orders
	require.NoError(t, repo.Create(ctx, orders.Order{
		ID:    "o-1",
		Lines: []orders.OrderLine{{VariantID: "v-1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	}))

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	got.Lines[0].Quantity = 99

	again, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Quantity)
}

func TestCartEntriesUseCurrentVariantPrice(t *testing.T) {
	s := seeded()
	s.SetCart("u-1", map[string]int{"v-1": 2})

	entries, err := s.Stores().Carts.EntriesForUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].UnitPrice.Equal(decimal.RequireFromString("9.50")))
	assert.Equal(t, 2, entries[0].Quantity)
}

func TestFindByEmail(t *testing.T) {
	u, err := seeded().Stores().Users.FindByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	_, err = seeded().Stores().Users.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, orders.ErrUserNotFound)
}
