// Package queue buffers presentation effects between the tick loop and the
// dispatchers that deliver them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Effect is the payload flowing through the queue.
type Effect = model.Effect

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an effect without blocking. It fails with ErrFull or
	// ErrClosed and the effect is dropped.
	Enqueue(ctx context.Context, e Effect) error

	// Dequeue returns the channel effects are read from. It is closed by Close.
	Dequeue(ctx context.Context) <-chan Effect

	// Len returns the current backlog.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	effects  chan Effect
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.effects = make(chan Effect, q.capacity)
	metrics.UpdateEffectQueueSize(0)
	return q
}

// Enqueue implements Queue. A full queue never blocks the caller.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Effect) error { //nolint:gocritic // hugeParam: Effect is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordEffectDropped()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordEffectDropped()
		return err
	}

	select {
	case q.effects <- e:
		metrics.RecordEffectEnqueued()
		metrics.UpdateEffectQueueSize(len(q.effects))
		return nil
	default:
		metrics.RecordEffectDropped()
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Effect {
	return q.effects
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.effects)
	metrics.UpdateEffectQueueSize(n)
	return n
}

// Close stops accepting effects. Buffered effects can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.effects)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
