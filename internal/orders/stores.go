package orders

import (
	"context"
	"time"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}

// VariantStore owns available quantities. Decrement must be a single atomic
// check-and-decrement: it fails with *InsufficientStockError and changes nothing
// when fewer than qty units are available.
type VariantStore interface {
	Get(ctx context.Context, id string) (Variant, error)
	Decrement(ctx context.Context, id string, qty int) (Variant, error)
	Increment(ctx context.Context, id string, qty int) (Variant, error)
}

type CartStore interface {
	EntriesForUser(ctx context.Context, userID string) ([]CartEntry, error)
}

type OrderStore interface {
	// Create persists the order together with its lines.
	Create(ctx context.Context, o Order) error
	FindByID(ctx context.Context, id string) (Order, error)
	// FindByIDForUpdate locks the order row until the enclosing transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (Order, error)
	FindByExternalID(ctx context.Context, externalID string) (Order, error)
	// UpdateStatus writes the new status only if the stored version still equals
	// expectedVersion, otherwise it returns ErrConcurrentUpdate.
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, to Status, at time.Time) (Order, error)
	FindByUser(ctx context.Context, userID string) ([]Order, error)
	FindByUserAndStatus(ctx context.Context, userID string, status Status) ([]Order, error)
	FindByVariant(ctx context.Context, variantID string) ([]Order, error)
	FindByStatusAndDateRange(ctx context.Context, f DateRangeFilter) ([]Order, error)
}

// Stores groups the repositories bound to one connection or transaction.
type Stores struct {
	Users    UserStore
	Variants VariantStore
	Carts    CartStore
	Orders   OrderStore
}

// Store is a persistence backend. WithinTx runs fn in a single all-or-nothing
// transaction: any returned error discards every write fn made.
type Store interface {
	Stores() Stores
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
