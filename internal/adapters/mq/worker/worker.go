// Package worker drains the event queue on a single goroutine and fans each
// event out to the registered subscribers in subscription order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/barrace/internal/domain/model"
	"github.com/okian/barrace/pkg/logger"
	"github.com/okian/barrace/pkg/metrics"
)

const defaultShutdownTimeout = 5 * time.Second

// Handler consumes one event. Handlers run on the dispatcher goroutine and
// should return quickly.
type Handler func(ctx context.Context, e model.Event)

// Queue is the part of the event queue the dispatcher depends on.
type Queue interface {
	Enqueue(ctx context.Context, e model.Event) bool
	Dequeue(ctx context.Context) <-chan model.Event
	Close() error
}

type subscription struct {
	id string
	fn Handler
}

// Dispatcher delivers queued events to subscribers.
type Dispatcher struct {
	queue  Queue
	name   string
	logger logger.Logger

	mu   sync.RWMutex
	subs []subscription

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	done      chan struct{}
}

// NewDispatcher creates a dispatcher reading from q.
func NewDispatcher(q Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   q,
		name:    "dispatcher",
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named(d.name)
	}
	metrics.UpdateSubscribers(0)
	return d
}

// Subscribe registers h and returns its subscription id.
func (d *Dispatcher) Subscribe(h Handler) string {
	id := uuid.NewString()
	d.mu.Lock()
	d.subs = append(d.subs, subscription{id: id, fn: h})
	n := len(d.subs)
	d.mu.Unlock()
	metrics.UpdateSubscribers(n)
	return id
}

// Unsubscribe removes a subscription. It reports whether id was known.
func (d *Dispatcher) Unsubscribe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			metrics.UpdateSubscribers(len(d.subs))
			return true
		}
	}
	return false
}

// Subscribers returns the number of registered handlers.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Publish enqueues e without blocking. It returns false when the event was
// dropped.
func (d *Dispatcher) Publish(ctx context.Context, e model.Event) bool { //nolint:gocritic // hugeParam: events travel by value
	return d.queue.Enqueue(ctx, e)
}

// Start launches the delivery loop. Later calls do nothing.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		close(d.started)
		go d.run(ctx)
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for e := range d.queue.Dequeue(ctx) {
		d.deliver(ctx, e)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	d.mu.RLock()
	subs := append([]subscription(nil), d.subs...)
	d.mu.RUnlock()

	for _, s := range subs {
		d.call(ctx, s, e)
	}
	metrics.RecordDispatchLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func (d *Dispatcher) call(ctx context.Context, s subscription, e model.Event) { //nolint:gocritic // hugeParam: events travel by value
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerPanic()
			d.logger.Error(ctx, "subscriber panicked",
				logger.String("subscription", s.id),
				logger.String("kind", e.Kind.String()),
				logger.Any("panic", r),
			)
		}
	}()
	s.fn(ctx, e)
}

// Shutdown closes the queue and waits until every queued event has been
// delivered or ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		if err := d.queue.Close(); err != nil {
			d.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	})

	select {
	case <-d.started:
	default:
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}
