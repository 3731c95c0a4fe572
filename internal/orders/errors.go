package orders

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCannotCancel      = errors.New("only PENDING orders can be cancelled")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidDateRange  = errors.New("start date must not be after end date")
	// ErrConcurrentUpdate is returned when an order changed between read and write, or
	// when the store kept aborting the transaction over lock conflicts.
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
	// ErrDuplicateOrder signals a second order with an already used external id.
	ErrDuplicateOrder = errors.New("order already exists")
)

// InsufficientStockError names the variant that could not be reserved.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type VariantNotFoundError struct {
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant not found: %s", e.VariantID)
}

func (e *VariantNotFoundError) Is(target error) bool { return target == ErrVariantNotFound }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

var domainErrors = []error{
	ErrUserNotFound,
	ErrVariantNotFound,
	ErrOrderNotFound,
	ErrEmptyOrder,
	ErrInvalidQuantity,
	ErrInsufficientStock,
	ErrInvalidTransition,
	ErrCannotCancel,
	ErrInvalidStatus,
	ErrInvalidDateRange,
	ErrConcurrentUpdate,
	ErrDuplicateOrder,
}

// IsDomainError reports whether err is one of the recoverable order errors above,
// as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
