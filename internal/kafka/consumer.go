package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 10 * time.Second
)

type Consumer struct {
	r       MessageReader
	workers int
	logger  *zap.Logger
	backoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers, logger)
}

func NewConsumerWithReader(r MessageReader, workers int, logger *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, logger: logger, backoff: defaultRetryBackoff}
}

// Start dispatches messages to a pool of workers until ctx is cancelled or the
// reader fails. Messages with the same key always go to the same worker, so they
// are handled in offset order. A failing message is retried by its worker until it
// succeeds or ctx ends. Start returns after every worker has exited.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	slots := make([]int, c.workers)
	offsets := newOffsetTracker()
	var wg sync.WaitGroup

	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		slots[i] = i
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, id, h, m) {
					// shutting down; the offset stays uncommitted
					continue
				}
				err := offsets.done(m, func(commit kafka.Message) error {
					return c.r.CommitMessages(ctx, commit)
				})
				if err != nil && ctx.Err() == nil {
					c.logger.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, queues[i])
	}

	err := c.dispatch(ctx, queues, slots, offsets)
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	return err
}

func (c *Consumer) dispatch(ctx context.Context, queues []chan kafka.Message, slots []int, offsets *offsetTracker) error {
	// same hash as the producer's balancer, applied to workers instead of partitions
	balancer := &kafka.Hash{}
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// quiet on shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		offsets.track(m)
		select {
		case queues[balancer.Balance(m, slots...)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries m with exponential backoff and reports whether it succeeded.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("handler failed",
			zap.Int("worker", worker),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if backoff *= 2; backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

type partitionKey struct {
	topic     string
	partition int
}

type trackedOffset struct {
	msg  kafka.Message
	done bool
}

// offsetTracker releases a commit only when every earlier fetched offset of the same
// partition has been handled, so workers finishing out of order never commit past
// an unfinished message.
type offsetTracker struct {
	mu      sync.Mutex
	pending map[partitionKey][]*trackedOffset
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{pending: map[partitionKey][]*trackedOffset{}}
}

func (t *offsetTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partitionKey{m.Topic, m.Partition}
	t.pending[k] = append(t.pending[k], &trackedOffset{msg: m})
}

// done marks m handled and commits the highest message that is now safe to
// commit. Commits run under the lock so offsets never move backwards.
func (t *offsetTracker) done(m kafka.Message, commit func(kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partitionKey{m.Topic, m.Partition}
	queue := t.pending[k]
	for _, o := range queue {
		if o.msg.Offset == m.Offset {
			o.done = true
			break
		}
	}

	var (
		last kafka.Message
		ok   bool
	)
	for len(queue) > 0 && queue[0].done {
		last, ok = queue[0].msg, true
		queue = queue[1:]
	}
	if len(queue) == 0 {
		delete(t.pending, k)
	} else {
		t.pending[k] = queue
	}
	if !ok {
		return nil
	}
	return commit(last)
}
