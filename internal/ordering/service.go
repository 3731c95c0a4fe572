// Package ordering coordinates order creation, status changes, and cancellation
// over the order, variant, cart, and user stores.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	"github.com/ariefcatur/go-retail-orders/internal/metrics"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/pricing"
)

// StatusCache receives the latest status after each committed change.
type StatusCache interface {
	SetStatus(ctx context.Context, orderID string, status orders.Status, at time.Time) error
}

type Deps struct {
	Store       orders.Store
	Events      EventPublisher
	StatusCache StatusCache
	Metrics     *metrics.OrderMetrics
	Pricing     pricing.Engine
	Logger      *zap.Logger
	Clock       func() time.Time
	IDGenerator func() string
	ServiceName string
}

type Service struct {
	store   orders.Store
	events  *eventEmitter
	cache   StatusCache
	metrics *metrics.OrderMetrics
	pricing pricing.Engine
	logger  *zap.Logger
	clock   func() time.Time
	newID   func() string
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("ordering: store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	engine := deps.Pricing
	if engine.FeeRate.IsZero() {
		engine = pricing.NewEngine()
	}
	utc := func() time.Time { return clock().UTC() }
	return &Service{
		store:   deps.Store,
		events:  newEventEmitter(deps.Events, deps.ServiceName, newID, utc, logger),
		cache:   deps.StatusCache,
		metrics: deps.Metrics,
		pricing: engine,
		logger:  logger,
		clock:   utc,
		newID:   newID,
	}, nil
}

type CreateOrderInput struct {
	UserID          string
	ExternalID      string
	Items           []orders.ItemInput
	ShippingAddress string
	PhoneNumber     string
	PaymentMethod   string
}

// CreateOrder reserves stock for every item, prices the order, and persists it in one
// transaction. existed is true when ExternalID matched an order created earlier; that
// order is returned unchanged and no stock is reserved.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (order orders.Order, existed bool, err error) {
	externalID := strings.TrimSpace(in.ExternalID)
	var reservations []inventory.Reservation

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx orders.Stores) error {
		user, err := tx.Users.FindByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if len(in.Items) == 0 {
			return orders.ErrEmptyOrder
		}
		if externalID != "" {
			prev, err := tx.Orders.FindByExternalID(ctx, externalID)
			if err == nil {
				order, existed = prev, true
				return nil
			}
			if !errors.Is(err, orders.ErrOrderNotFound) {
				return err
			}
		}

		now := s.clock()
		shell := orders.Order{
			ID:              s.newID(),
			ExternalID:      externalID,
			UserID:          user.ID,
			Status:          orders.StatusPending,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			PhoneNumber:     strings.TrimSpace(in.PhoneNumber),
			PaymentMethod:   paymentMethod(in.PaymentMethod),
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		reservations, err = inventory.NewLedger(tx.Variants).ReserveAll(ctx, in.Items)
		if err != nil {
			return err
		}

		shell.Lines = make([]orders.OrderLine, 0, len(reservations))
		for i, r := range reservations {
			shell.Lines = append(shell.Lines, orders.OrderLine{
				ID:        s.newID(),
				OrderID:   shell.ID,
				VariantID: r.VariantID,
				Position:  i + 1,
				Quantity:  r.Quantity,
				UnitPrice: r.UnitPrice,
			})
		}

		cart, err := tx.Carts.EntriesForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		totals := s.pricing.Compute(shell.Lines, cart)
		shell.AdditionalFee = totals.AdditionalFee
		shell.TotalPrice = totals.Total

		if err := tx.Orders.Create(ctx, shell); err != nil {
			return err
		}
		order = shell
		return nil
	})

	if errors.Is(err, orders.ErrDuplicateOrder) && externalID != "" {
		// lost a race against a create with the same external id
		prev, ferr := s.store.Stores().Orders.FindByExternalID(ctx, externalID)
		if ferr == nil {
			return prev, true, nil
		}
	}
	if err != nil {
		s.metrics.OrderRejected(rejectReason(err))
		s.logFailure(ctx, "create order failed", err, zap.String("user_id", in.UserID), zap.String("external_id", externalID))
		return orders.Order{}, false, err
	}
	if existed {
		return order, true, nil
	}

	units := 0
	for _, l := range order.Lines {
		units += l.Quantity
	}
	s.metrics.OrderCreated(units)
	s.events.orderCreated(order)
	for _, r := range reservations {
		s.events.stockChanged(order.ID, r.VariantID, -r.Quantity, r.Available)
	}
	s.cacheStatus(ctx, order)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
		zap.String("additional_fee", order.AdditionalFee.StringFixed(2)),
	)
	return order, false, nil
}

// UpdateStatus applies one edge of the transition table. It never touches stock.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Order, error) {
	if !to.Valid() {
		return orders.Order{}, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, to)
	}

	var (
		from    orders.Status
		updated orders.Order
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx orders.Stores) error {
		o, err := tx.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := orders.AssertTransition(o.Status, to); err != nil {
			return err
		}
		from = o.Status
		updated, err = tx.Orders.UpdateStatus(ctx, o.ID, o.Version, to, s.clock())
		return err
	})
	if err != nil {
		s.logFailure(ctx, "update status failed", err, zap.String("order_id", orderID), zap.String("to", to.String()))
		return orders.Order{}, err
	}

	s.metrics.Transition(from.String(), to.String())
	s.events.statusChanged(updated.ID, from, to)
	s.cacheStatus(ctx, updated)
	s.logger.Info("order status updated",
		zap.String("order_id", updated.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return updated, nil
}

// CancelOrder is allowed from PENDING only and restores every line's quantity.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (orders.Order, error) {
	var (
		cancelled orders.Order
		restored  []inventory.Restoration
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx orders.Stores) error {
		o, err := tx.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := orders.AssertCancellable(o.Status); err != nil {
			return err
		}

		ledger := inventory.NewLedger(tx.Variants)
		restored = make([]inventory.Restoration, 0, len(o.Lines))
		for _, l := range o.Lines {
			r, err := ledger.Restore(ctx, l.VariantID, l.Quantity)
			if err != nil {
				return fmt.Errorf("restore line %d: %w", l.Position, err)
			}
			restored = append(restored, r)
		}

		cancelled, err = tx.Orders.UpdateStatus(ctx, o.ID, o.Version, orders.StatusCancelled, s.clock())
		return err
	})
	if err != nil {
		s.logFailure(ctx, "cancel order failed", err, zap.String("order_id", orderID))
		return orders.Order{}, err
	}

	units := 0
	for _, r := range restored {
		units += r.Quantity
		s.events.stockChanged(cancelled.ID, r.VariantID, r.Quantity, r.Available)
	}
	s.metrics.Restored(units)
	s.metrics.Transition(orders.StatusPending.String(), orders.StatusCancelled.String())
	s.events.orderCancelled(cancelled)
	s.cacheStatus(ctx, cancelled)
	s.logger.Info("order cancelled", zap.String("order_id", cancelled.ID), zap.Int("units_restored", units))
	return cancelled, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	return s.store.Stores().Orders.FindByID(ctx, orderID)
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return s.store.Stores().Orders.FindByUser(ctx, userID)
}

func (s *Service) ListOrdersByUserAndStatus(ctx context.Context, userID string, status orders.Status) ([]orders.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, status)
	}
	return s.store.Stores().Orders.FindByUserAndStatus(ctx, userID, status)
}

func (s *Service) ListOrdersByVariant(ctx context.Context, variantID string) ([]orders.Order, error) {
	return s.store.Stores().Orders.FindByVariant(ctx, variantID)
}

// ListOrdersByStatusAndDateRange matches every status when f.Status is empty.
func (s *Service) ListOrdersByStatusAndDateRange(ctx context.Context, f orders.DateRangeFilter) ([]orders.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, f.Status)
	}
	if f.From.After(f.To) {
		return nil, orders.ErrInvalidDateRange
	}
	return s.store.Stores().Orders.FindByStatusAndDateRange(ctx, f)
}

func (s *Service) cacheStatus(ctx context.Context, o orders.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStatus(ctx, o.ID, o.Status, o.UpdatedAt); err != nil {
		s.logger.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Service) logFailure(_ context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if orders.IsDomainError(err) {
		s.logger.Info(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}

func paymentMethod(raw string) string {
	if m := strings.ToUpper(strings.TrimSpace(raw)); m != "" {
		return m
	}
	return orders.PaymentMethodCOD
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, orders.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, orders.ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, orders.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, orders.ErrVariantNotFound):
		return "variant_not_found"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, orders.ErrConcurrentUpdate):
		return "concurrent_update"
	default:
		return "internal"
	}
}
