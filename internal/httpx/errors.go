package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type errorResp struct {
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	VariantID string        `json:"variant_id,omitempty"`
	Requested *int          `json:"requested,omitempty"`
	Available *int          `json:"available,omitempty"`
	From      orders.Status `json:"from,omitempty"`
	To        orders.Status `json:"to,omitempty"`
}

// errorStatus maps domain errors to 4xx; everything else is a 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, orders.ErrVariantNotFound):
		return http.StatusNotFound, "variant_not_found"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrEmptyOrder):
		return http.StatusBadRequest, "empty_order"
	case errors.Is(err, orders.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, orders.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, orders.ErrInvalidDateRange):
		return http.StatusBadRequest, "invalid_date_range"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, orders.ErrCannotCancel):
		return http.StatusConflict, "cannot_cancel"
	case errors.Is(err, orders.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, kind := errorStatus(err)
	resp := errorResp{Error: kind, Message: err.Error()}
	if code == http.StatusInternalServerError {
		resp.Message = "internal error"
	}

	var se *orders.InsufficientStockError
	if errors.As(err, &se) {
		resp.VariantID = se.VariantID
		resp.Requested = &se.Requested
		resp.Available = &se.Available
	}
	var vn *orders.VariantNotFoundError
	if errors.As(err, &vn) {
		resp.VariantID = vn.VariantID
	}
	var te *orders.InvalidTransitionError
	if errors.As(err, &te) {
		resp.From, resp.To = te.From, te.To
	}
	writeJSON(w, code, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: "bad_request", Message: msg})
}
