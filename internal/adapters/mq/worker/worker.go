// Package worker delivers queued presentation effects to the host.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/waypoint/internal/adapters/mq/queue"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Presenter renders effects: chat lines, sounds, particles.
type Presenter interface {
	Present(ctx context.Context, e model.Effect) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, e model.Effect) error

// Present implements Presenter.
func (f PresenterFunc) Present(ctx context.Context, e model.Effect) error { return f(ctx, e) }

// Queue defines how dispatchers receive effects.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Effect
}

// Dispatcher hands effects from the queue to the presenter until the queue
// is closed and drained, or ctx is cancelled and the buffer is empty.
type Dispatcher struct {
	queue     Queue
	presenter Presenter
	name      string
	done      chan struct{}
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(q Queue, p Presenter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     q,
		presenter: p,
		name:      "dispatcher",
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named(d.name)
	return d
}

// Run delivers effects until the queue channel closes or ctx is done. On
// cancellation the effects already buffered are still delivered.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	effects := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), effects)
			return
		case e, ok := <-effects:
			if !ok {
				return
			}
			d.deliver(ctx, e)
		}
	}
}

// drain delivers what is buffered without waiting for more.
func (d *Dispatcher) drain(ctx context.Context, effects <-chan queue.Effect) {
	n := 0
	defer func() {
		if n > 0 {
			d.logger.Info(ctx, "drained buffered effects", logger.Int("count", n))
		}
	}()
	for {
		select {
		case e, ok := <-effects:
			if !ok {
				return
			}
			d.deliver(ctx, e)
			n++
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e model.Effect) { //nolint:gocritic // hugeParam: Effect is passed by value for channel semantics
	if err := d.present(ctx, e); err != nil {
		d.logger.Error(ctx, "present effect", logger.Error(err))
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) present(ctx context.Context, e model.Effect) error { //nolint:gocritic // hugeParam: Effect is passed by value for channel semantics
	if err := d.presenter.Present(ctx, e); err != nil {
		metrics.RecordEffectError()
		return fmt.Errorf("%s effect for %s in %s/%s: %w", e.Kind, e.Player, e.Event, e.Variant, err)
	}
	metrics.RecordEffectDispatched()
	return nil
}

// Pool manages multiple dispatchers over one queue.
type Pool struct {
	dispatchers []*Dispatcher
	queue       Queue
	logger      logger.Logger
}

// NewPool creates count dispatchers. A non-positive count uses one per CPU.
func NewPool(count int, q Queue, p Presenter, log logger.Logger) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Nop()
	}
	pool := &Pool{
		dispatchers: make([]*Dispatcher, count),
		queue:       q,
		logger:      log.Named("dispatch-pool"),
	}
	for i := range count {
		pool.dispatchers[i] = NewDispatcher(q, p,
			WithName("dispatcher-"+strconv.Itoa(i)),
			WithLogger(log),
		)
	}
	metrics.UpdateDispatcherCount(count)
	return pool
}

// Start launches every dispatcher.
func (p *Pool) Start(ctx context.Context) {
	for _, d := range p.dispatchers {
		go d.Run(ctx)
	}
}

// Size returns the number of dispatchers.
func (p *Pool) Size() int { return len(p.dispatchers) }

// Shutdown closes the queue and waits for the dispatchers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, d := range p.dispatchers {
		select {
		case <-d.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "dispatcher shutdown timed out", logger.Int("dispatcher_id", i))
			return fmt.Errorf("dispatcher %d: %w", i, shutdownCtx.Err())
		}
	}
	metrics.UpdateDispatcherCount(0)
	return nil
}
