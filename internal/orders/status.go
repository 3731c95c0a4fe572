package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipping   Status = "SHIPPING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses lists the lifecycle states in their natural order.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipping,
	StatusDelivered,
	StatusCancelled,
}

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipping: true, StatusCancelled: true},
	StatusShipping:   {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// AssertTransition returns an *InvalidTransitionError when the table has no from->to edge.
func AssertTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// AssertCancellable is the precondition of an explicit cancellation. It is stricter than
// the transition table: only PENDING orders can be cancelled, PROCESSING ones cannot.
func AssertCancellable(s Status) error {
	if s != StatusPending {
		return fmt.Errorf("%w: order is %s", ErrCannotCancel, s)
	}
	return nil
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
