package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/ordering"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

// OrderService is implemented by *ordering.Service.
type OrderService interface {
	CreateOrder(ctx context.Context, in ordering.CreateOrderInput) (orders.Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Order, error)
	CancelOrder(ctx context.Context, orderID string) (orders.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListOrdersByUserAndStatus(ctx context.Context, userID string, status orders.Status) ([]orders.Order, error)
	ListOrdersByVariant(ctx context.Context, variantID string) ([]orders.Order, error)
	ListOrdersByStatusAndDateRange(ctx context.Context, f orders.DateRangeFilter) ([]orders.Order, error)
}

type StatusReader interface {
	GetStatus(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	SetStatus(ctx context.Context, orderID string, status orders.Status, at time.Time) error
}

type IdempotencyIndex interface {
	Lookup(ctx context.Context, externalID string) (string, bool, error)
	Remember(ctx context.Context, externalID, orderID string) error
}

// OrdersHandler exposes the order operations. Status and Idem are optional.
type OrdersHandler struct {
	Service OrderService
	Status  StatusReader
	Idem    IdempotencyIndex
	Logger  *zap.Logger
	Timeout time.Duration
}

type CreateOrderReq struct {
	ExternalID      string             `json:"external_id"`
	UserID          string             `json:"user_id"`
	Items           []orders.ItemInput `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PhoneNumber     string             `json:"phone_number"`
	PaymentMethod   string             `json:"payment_method"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listByStatusAndDateRange)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/users/{userID}/orders", h.listByUser)
	r.Get("/variants/{variantID}/orders", h.listByVariant)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		badRequest(w, "user_id is required")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	// fast path for replays; the database remains the source of truth
	if req.ExternalID != "" && h.Idem != nil {
		if id, ok, err := h.Idem.Lookup(ctx, req.ExternalID); err == nil && ok {
			if o, err := h.Service.GetOrder(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, createOrderResp{Order: toOrderResp(o), Idempotent: true})
				return
			}
		} else if err != nil {
			h.log().Warn("idempotency lookup failed", zap.String("external_id", req.ExternalID), zap.Error(err))
		}
	}

	o, existed, err := h.Service.CreateOrder(ctx, ordering.CreateOrderInput{
		UserID:          req.UserID,
		ExternalID:      req.ExternalID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if o.ExternalID != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, o.ExternalID, o.ID); err != nil {
			h.log().Warn("idempotency remember failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, createOrderResp{Order: toOrderResp(o), Idempotent: existed})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// getStatus reads through the status cache.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	if h.Status != nil {
		e, ok, err := h.Status.GetStatus(ctx, orderID)
		if err != nil {
			h.log().Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: orderID, Status: e.Status, UpdatedAt: e.UpdatedAt, Cached: true})
			return
		}
	}

	o, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Status != nil {
		_ = h.Status.SetStatus(ctx, o.ID, o.Status, o.UpdatedAt)
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, chi.URLParam(r, "id"), to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

func (h *OrdersHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx, cancel := h.ctx(r)
	defer cancel()

	var (
		list []orders.Order
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, perr := orders.ParseStatus(raw)
		if perr != nil {
			writeError(w, perr)
			return
		}
		list, err = h.Service.ListOrdersByUserAndStatus(ctx, userID, status)
	} else {
		list, err = h.Service.ListOrdersByUser(ctx, userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResp(list))
}

func (h *OrdersHandler) listByVariant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.ListOrdersByVariant(ctx, chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResp(list))
}

// listByStatusAndDateRange takes RFC3339 from/to; status is optional.
func (h *OrdersHandler) listByStatusAndDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		badRequest(w, "from must be RFC3339")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		badRequest(w, "to must be RFC3339")
		return
	}
	f := orders.DateRangeFilter{From: from.UTC(), To: to.UTC()}
	if raw := q.Get("status"); raw != "" {
		if f.Status, err = orders.ParseStatus(raw); err != nil {
			writeError(w, err)
			return
		}
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.ListOrdersByStatusAndDateRange(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResp(list))
}
