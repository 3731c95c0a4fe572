// Package memstore is an in-process implementation of the order persistence
// contracts. Transactions take the store lock for their whole duration and roll
// back by restoring a snapshot.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type cartRow struct {
	variantID string
	qty       int
}

type state struct {
	users       map[string]orders.User
	variants    map[string]orders.Variant
	carts       map[string][]cartRow
	orders      map[string]orders.Order
	externalIDs map[string]string
}

func newState() *state {
	return &state{
		users:       map[string]orders.User{},
		variants:    map[string]orders.Variant{},
		carts:       map[string][]cartRow{},
		orders:      map[string]orders.Order{},
		externalIDs: map[string]string{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.variants {
		out.variants[k] = v
	}
	for k, v := range s.carts {
		out.carts[k] = append([]cartRow(nil), v...)
	}
	for k, v := range s.orders {
		out.orders[k] = v.Clone()
	}
	for k, v := range s.externalIDs {
		out.externalIDs[k] = v
	}
	return out
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// Stores returns repositories that lock per call.
func (s *Store) Stores() orders.Stores {
	return s.view(false)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Stores) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.view(true))
}

func (s *Store) view(inTx bool) orders.Stores {
	v := &view{s: s, inTx: inTx}
	return orders.Stores{
		Users:    userRepo{v},
		Variants: variantRepo{v},
		Carts:    cartRepo{v},
		Orders:   orderRepo{v},
	}
}

// view is shared by the repositories of one Stores value. Inside a transaction
// the store lock is already held.
type view struct {
	s    *Store
	inTx bool
}

func (v *view) do(fn func(st *state) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

// ---- seeding helpers ----

func (s *Store) PutUser(u orders.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutVariant(v orders.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

// SetCart replaces the cart of userID. Keys are variant ids, values quantities.
func (s *Store) SetCart(userID string, entries map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]cartRow, 0, len(entries))
	for id, qty := range entries {
		rows = append(rows, cartRow{variantID: id, qty: qty})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].variantID < rows[j].variantID })
	s.st.carts[userID] = rows
}

// Available returns the current quantity of a variant, or -1 when unknown.
func (s *Store) Available(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.variants[variantID]
	if !ok {
		return -1
	}
	return v.Available
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// ---- users ----

type userRepo struct{ v *view }

func (r userRepo) FindByID(_ context.Context, id string) (orders.User, error) {
	var out orders.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("%w: %s", orders.ErrUserNotFound, id)
		}
		out = u
		return nil
	})
	return out, err
}

func (r userRepo) FindByEmail(_ context.Context, email string) (orders.User, error) {
	var out orders.User
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				out = u
				return nil
			}
		}
		return fmt.Errorf("%w: %s", orders.ErrUserNotFound, email)
	})
	return out, err
}

// ---- variants ----

type variantRepo struct{ v *view }

func (r variantRepo) Get(_ context.Context, id string) (orders.Variant, error) {
	var out orders.Variant
	err := r.v.do(func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return &orders.VariantNotFoundError{VariantID: id}
		}
		out = v
		return nil
	})
	return out, err
}

func (r variantRepo) Decrement(_ context.Context, id string, qty int) (orders.Variant, error) {
	var out orders.Variant
	err := r.v.do(func(st *state) error {
		v, ok := st.variants[id]
		if !ok || !v.IsAvailable {
			return &orders.VariantNotFoundError{VariantID: id}
		}
		if v.Available < qty {
			return &orders.InsufficientStockError{VariantID: id, Requested: qty, Available: v.Available}
		}
		v.Available -= qty
		st.variants[id] = v
		out = v
		return nil
	})
	return out, err
}

func (r variantRepo) Increment(_ context.Context, id string, qty int) (orders.Variant, error) {
	var out orders.Variant
	err := r.v.do(func(st *state) error {
		v, ok := st.variants[id]
		if !ok {
			return &orders.VariantNotFoundError{VariantID: id}
		}
		v.Available += qty
		st.variants[id] = v
		out = v
		return nil
	})
	return out, err
}

// ---- carts ----

type cartRepo struct{ v *view }

func (r cartRepo) EntriesForUser(_ context.Context, userID string) ([]orders.CartEntry, error) {
	var out []orders.CartEntry
	err := r.v.do(func(st *state) error {
		for _, row := range st.carts[userID] {
			price := decimal.Zero
			if v, ok := st.variants[row.variantID]; ok {
				price = v.Price
			}
			out = append(out, orders.CartEntry{VariantID: row.variantID, Quantity: row.qty, UnitPrice: price})
		}
		return nil
	})
	return out, err
}

// ---- orders ----

type orderRepo struct{ v *view }

func (r orderRepo) Create(_ context.Context, o orders.Order) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return fmt.Errorf("%w: id %s", orders.ErrDuplicateOrder, o.ID)
		}
		if o.ExternalID != "" {
			if _, ok := st.externalIDs[o.ExternalID]; ok {
				return fmt.Errorf("%w: external id %s", orders.ErrDuplicateOrder, o.ExternalID)
			}
			st.externalIDs[o.ExternalID] = o.ID
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r orderRepo) FindByID(_ context.Context, id string) (orders.Order, error) {
	var out orders.Order
	err := r.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

// FindByIDForUpdate needs no extra locking: transactions already hold the store lock.
func (r orderRepo) FindByIDForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return r.FindByID(ctx, id)
}

func (r orderRepo) FindByExternalID(_ context.Context, externalID string) (orders.Order, error) {
	var out orders.Order
	err := r.v.do(func(st *state) error {
		id, ok := st.externalIDs[externalID]
		if !ok {
			return fmt.Errorf("%w: external id %s", orders.ErrOrderNotFound, externalID)
		}
		out = st.orders[id].Clone()
		return nil
	})
	return out, err
}

func (r orderRepo) UpdateStatus(_ context.Context, id string, expectedVersion int64, to orders.Status, at time.Time) (orders.Order, error) {
	var out orders.Order
	err := r.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
		}
		if o.Version != expectedVersion {
			return fmt.Errorf("%w: %s", orders.ErrConcurrentUpdate, id)
		}
		o.Status = to
		o.Version++
		o.UpdatedAt = at
		st.orders[id] = o
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r orderRepo) FindByUser(_ context.Context, userID string) ([]orders.Order, error) {
	return r.filter(func(o orders.Order) bool { return o.UserID == userID })
}

func (r orderRepo) FindByUserAndStatus(_ context.Context, userID string, status orders.Status) ([]orders.Order, error) {
	return r.filter(func(o orders.Order) bool { return o.UserID == userID && o.Status == status })
}

func (r orderRepo) FindByVariant(_ context.Context, variantID string) ([]orders.Order, error) {
	return r.filter(func(o orders.Order) bool {
		for _, l := range o.Lines {
			if l.VariantID == variantID {
				return true
			}
		}
		return false
	})
}

func (r orderRepo) FindByStatusAndDateRange(_ context.Context, f orders.DateRangeFilter) ([]orders.Order, error) {
	return r.filter(func(o orders.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		return !o.CreatedAt.Before(f.From) && !o.CreatedAt.After(f.To)
	})
}

// filter returns matches newest first.
func (r orderRepo) filter(match func(orders.Order) bool) ([]orders.Order, error) {
	var out []orders.Order
	err := r.v.do(func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				out = append(out, o.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}
