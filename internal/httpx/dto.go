package httpx

import (
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// Amounts are fixed two-decimal strings so clients never see float rounding.
type lineResp struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Position  int    `json:"position"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type orderResp struct {
	ID              string        `json:"id"`
	ExternalID      string        `json:"external_id,omitempty"`
	UserID          string        `json:"user_id"`
	Status          orders.Status `json:"status"`
	TotalPrice      string        `json:"total_price"`
	AdditionalFee   string        `json:"additional_fee"`
	ShippingAddress string        `json:"shipping_address,omitempty"`
	PhoneNumber     string        `json:"phone_number,omitempty"`
	PaymentMethod   string        `json:"payment_method"`
	ItemCount       int           `json:"item_count"`
	Lines           []lineResp    `json:"lines"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type createOrderResp struct {
	Order      orderResp `json:"order"`
	Idempotent bool      `json:"idempotent"`
}

type listResp struct {
	Orders []orderResp `json:"orders"`
	Count  int         `json:"count"`
}

type statusResp struct {
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
	Cached    bool          `json:"cached"`
}

func toOrderResp(o orders.Order) orderResp {
	lines := make([]lineResp, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, lineResp{
			ID:        l.ID,
			VariantID: l.VariantID,
			Position:  l.Position,
			Qty:       l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		})
	}
	return orderResp{
		ID:              o.ID,
		ExternalID:      o.ExternalID,
		UserID:          o.UserID,
		Status:          o.Status,
		TotalPrice:      o.TotalPrice.StringFixed(2),
		AdditionalFee:   o.AdditionalFee.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		PhoneNumber:     o.PhoneNumber,
		PaymentMethod:   o.PaymentMethod,
		ItemCount:       o.ItemCount(),
		Lines:           lines,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toListResp(list []orders.Order) listResp {
	out := listResp{Orders: make([]orderResp, 0, len(list)), Count: len(list)}
	for _, o := range list {
		out.Orders = append(out.Orders, toOrderResp(o))
	}
	return out
}
