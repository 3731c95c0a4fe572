package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

type fakeCache struct {
	seen    map[string]bool
	levels  map[string]int
	err     error
	setErrs []error // returned by successive SetStockLevel calls
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: map[string]bool{}, levels: map[string]int{}}
}

func (c *fakeCache) Processed(_ context.Context, service, eventID string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.seen[service+":"+eventID], nil
}

func (c *fakeCache) MarkProcessed(_ context.Context, service, eventID string) error {
	c.seen[service+":"+eventID] = true
	return nil
}

func (c *fakeCache) SetStockLevel(_ context.Context, variantID string, available int) error {
	if len(c.setErrs) > 0 {
		err := c.setErrs[0]
		c.setErrs = c.setErrs[1:]
		if err != nil {
			return err
		}
	}
	c.levels[variantID] = available
	return nil
}

func stockMessage(t *testing.T, eventID string, p orders.StockChangedPayload) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(eventID, orders.EventStockChanged, "test", p.VariantID, time.Now(), p)
	require.NoError(t, err)
	b, err := env.Marshal()
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestProjector_WritesLevelAndWarnsOnLowStock(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cache := newFakeCache()
	p := &Projector{Cache: cache, Logger: zap.New(core), LowStockThreshold: 2, ServiceName: "stock"}

	err := p.HandleStockChanged(context.Background(), stockMessage(t, "e-1", orders.StockChangedPayload{
		VariantID: "A", Delta: -3, Available: 1, OrderID: "o-1",
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, cache.levels["A"])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "low stock", logs.All()[0].Message)
}

func TestProjector_SkipsDuplicates(t *testing.T) {
	cache := newFakeCache()
	p := &Projector{Cache: cache, LowStockThreshold: 0, ServiceName: "stock"}
	ctx := context.Background()

	require.NoError(t, p.HandleStockChanged(ctx, stockMessage(t, "e-1", orders.StockChangedPayload{VariantID: "A", Available: 7})))
	require.NoError(t, p.HandleStockChanged(ctx, stockMessage(t, "e-1", orders.StockChangedPayload{VariantID: "A", Available: 3})))

	assert.Equal(t, 7, cache.levels["A"])
}

func TestProjector_IgnoresOtherEvents(t *testing.T) {
	cache := newFakeCache()
	p := &Projector{Cache: cache}
	env, err := orders.NewEnvelope("e-2", orders.EventOrderCreated, "test", "o-1", time.Now(), orders.OrderCreatedPayload{OrderID: "o-1"})
	require.NoError(t, err)
	b, err := env.Marshal()
	require.NoError(t, err)

	require.NoError(t, p.HandleStockChanged(context.Background(), kafkago.Message{Value: b}))
	assert.Empty(t, cache.seen)
}

func TestProjector_Errors(t *testing.T) {
	p := &Projector{Cache: newFakeCache()}
	assert.Error(t, p.HandleStockChanged(context.Background(), kafkago.Message{Value: []byte("{")}))

	failing := newFakeCache()
	failing.err = errors.New("redis down")
	p = &Projector{Cache: failing}
	err := p.HandleStockChanged(context.Background(), stockMessage(t, "e-3", orders.StockChangedPayload{VariantID: "A"}))
	assert.EqualError(t, err, "redis down")
}

func TestProjector_FailedWriteIsRetriedOnRedelivery(t *testing.T) {
	cache := newFakeCache()
	cache.setErrs = []error{errors.New("redis timeout")}
	p := &Projector{Cache: cache, ServiceName: "stock"}
	ctx := context.Background()
	msg := stockMessage(t, "e-4", orders.StockChangedPayload{VariantID: "A", Available: 6})

	assert.EqualError(t, p.HandleStockChanged(ctx, msg), "redis timeout")
	assert.False(t, cache.seen["stock:e-4"])
	_, written := cache.levels["A"]
	assert.False(t, written)

	require.NoError(t, p.HandleStockChanged(ctx, msg))
	assert.Equal(t, 6, cache.levels["A"])
	assert.True(t, cache.seen["stock:e-4"])
}
