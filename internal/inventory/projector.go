package inventory

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// StockCache is the read model the projector keeps current.
type StockCache interface {
	Processed(ctx context.Context, service, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, service, eventID string) error
	SetStockLevel(ctx context.Context, variantID string, available int) error
}

// Projector mirrors StockChanged events into the cache and flags low stock.
type Projector struct {
	Cache             StockCache
	Logger            *zap.Logger
	LowStockThreshold int
	ServiceName       string
}

// HandleStockChanged is installed as the kafka consumer handler. The event is
// marked processed only after the level is written, so a failed write is retried
// on redelivery.
func (p *Projector) HandleStockChanged(ctx context.Context, m kafkago.Message) error {
	env, err := orders.DecodeEnvelope(m.Value)
	if err != nil {
		return err
	}
	if env.EventType != orders.EventStockChanged {
		return nil
	}

	seen, err := p.Cache.Processed(ctx, p.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	payload, err := orders.DecodePayload[orders.StockChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	if err := p.Cache.SetStockLevel(ctx, payload.VariantID, payload.Available); err != nil {
		return err
	}
	if err := p.Cache.MarkProcessed(ctx, p.ServiceName, env.EventID); err != nil {
		return err
	}

	if payload.Available <= p.LowStockThreshold {
		p.logger().Warn("low stock",
			zap.String("variant_id", payload.VariantID),
			zap.Int("available", payload.Available),
			zap.Int("threshold", p.LowStockThreshold),
			zap.String("order_id", payload.OrderID),
		)
	}
	return nil
}

func (p *Projector) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
