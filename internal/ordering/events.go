package ordering

import (
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// EventPublisher is satisfied by *kafka.Producer. Publish may block while the
// producer's buffer is full and returns false once the producer is closed.
type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) bool
}

// eventEmitter publishes after commit. A rejected publish is logged and the
// committed change stands.
type eventEmitter struct {
	pub      EventPublisher
	producer string
	newID    func() string
	logger   *zap.Logger
	clock    func() time.Time
}

func newEventEmitter(pub EventPublisher, producer string, newID func() string, clock func() time.Time, logger *zap.Logger) *eventEmitter {
	if producer == "" {
		producer = "order-service"
	}
	return &eventEmitter{pub: pub, producer: producer, newID: newID, logger: logger, clock: clock}
}

func (e *eventEmitter) orderCreated(o orders.Order) {
	e.emit(orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, o.ID, orders.OrderCreatedPayload{
		OrderID:       o.ID,
		ExternalID:    o.ExternalID,
		UserID:        o.UserID,
		Lines:         linePayloads(o.Lines),
		AdditionalFee: o.AdditionalFee.StringFixed(2),
		TotalPrice:    o.TotalPrice.StringFixed(2),
	})
}

func (e *eventEmitter) statusChanged(orderID string, from, to orders.Status) {
	e.emit(orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, orderID, orderID, orders.OrderStatusChangedPayload{
		OrderID: orderID,
		From:    from,
		To:      to,
	})
}

func (e *eventEmitter) orderCancelled(o orders.Order) {
	e.emit(orders.TopicOrderCancelled, orders.EventOrderCancelled, o.ID, o.ID, orders.OrderCancelledPayload{
		OrderID:  o.ID,
		Restored: linePayloads(o.Lines),
	})
}

// stockChanged is keyed by variant so the projector sees one variant's changes in order.
func (e *eventEmitter) stockChanged(orderID, variantID string, delta, available int) {
	e.emit(orders.TopicStockChanged, orders.EventStockChanged, variantID, variantID, orders.StockChangedPayload{
		VariantID: variantID,
		Delta:     delta,
		Available: available,
		OrderID:   orderID,
	})
}

func (e *eventEmitter) emit(topic, eventType, key, correlationID string, payload any) {
	if e.pub == nil {
		return
	}
	env, err := orders.NewEnvelope(e.newID(), eventType, e.producer, correlationID, e.clock(), payload)
	if err != nil {
		e.logger.Error("build event failed", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	value, err := env.Marshal()
	if err != nil {
		e.logger.Error("encode event failed", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	ok := e.pub.Publish(topic, orders.PartitionKey(key), value,
		kafkago.Header{Key: "event_type", Value: []byte(eventType)},
	)
	if !ok {
		e.logger.Warn("event dropped, producer closed",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.String("key", key),
		)
	}
}

func linePayloads(lines []orders.OrderLine) []orders.LinePayload {
	out := make([]orders.LinePayload, 0, len(lines))
	for _, l := range lines {
		out = append(out, orders.LinePayload{
			VariantID: l.VariantID,
			Qty:       l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		})
	}
	return out
}
