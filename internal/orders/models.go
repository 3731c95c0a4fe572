package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const PaymentMethodCOD = "COD"

type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Variant is the purchasable SKU as owned by the catalog.
type Variant struct {
	ID          string
	ProductID   string
	Price       decimal.Decimal
	Available   int
	IsAvailable bool
}

// CartEntry is one row of a user's cart joined with the variant's current price.
type CartEntry struct {
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Order struct {
	ID              string
	ExternalID      string
	UserID          string
	Status          Status
	TotalPrice      decimal.Decimal
	AdditionalFee   decimal.Decimal
	ShippingAddress string
	PhoneNumber     string
	PaymentMethod   string
	Lines           []OrderLine
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLine snapshots the unit price at order time; it is never re-read from the catalog.
type OrderLine struct {
	ID        string
	OrderID   string
	VariantID string
	Position  int
	Quantity  int
	UnitPrice decimal.Decimal
}

type ItemInput struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

// DateRangeFilter selects orders created within [From, To]. An empty Status matches all.
type DateRangeFilter struct {
	Status Status
	From   time.Time
	To     time.Time
}

// Clone returns a copy that shares no line slice with o.
func (o Order) Clone() Order {
	out := o
	if o.Lines != nil {
		out.Lines = make([]OrderLine, len(o.Lines))
		copy(out.Lines, o.Lines)
	}
	return out
}

func (o Order) ItemCount() int { return len(o.Lines) }
