package ordering

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type closedPublisher struct{ calls int }

func (p *closedPublisher) Publish(string, []byte, []byte, ...kafkago.Header) bool {
	p.calls++
	return false
}

func TestEventEmitter_LogsRejectedPublish(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &closedPublisher{}
	e := newEventEmitter(pub, "svc", func() string { return "e-1" }, time.Now, zap.New(core))

	e.statusChanged("o-1", "PENDING", "PROCESSING")

	assert.Equal(t, 1, pub.calls)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "event dropped, producer closed", entry.Message)
	assert.Equal(t, "order.status.changed", entry.ContextMap()["topic"])
}

func TestEventEmitter_NilPublisherIsNoop(t *testing.T) {
	e := newEventEmitter(nil, "", func() string { return "e-1" }, time.Now, zap.NewNop())

	assert.NotPanics(t, func() { e.stockChanged("o-1", "A", -1, 4) })
	assert.Equal(t, "order-service", e.producer)
}
