// Package service owns one checkpoint engine per event type and exposes the
// tick and command operations the HTTP API is built on.
package service

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/okian/waypoint/internal/adapters/docstore"
	eventqueue "github.com/okian/waypoint/internal/adapters/mq/queue"
	workerpool "github.com/okian/waypoint/internal/adapters/mq/worker"
	"github.com/okian/waypoint/internal/adapters/repository"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
	"github.com/okian/waypoint/internal/engine"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

const (
	defaultTicksPerSecond = 20
	defaultQueueSize      = 10_000
	defaultMaxRankLimit   = 100
)

// eventRuntime is the engine and progress store of one event type.
type eventRuntime struct {
	engine   *engine.Engine
	progress *repository.ProgressStore
}

// Service serialises ticks and commands over the engines it owns. The HTTP
// server is concurrent; the engines never are.
type Service struct {
	mu sync.Mutex

	// Core components
	docs     docstore.Store
	variants *repository.VariantStore
	events   map[string]*eventRuntime
	ranker   *ranking.Ranker
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	// Configuration
	eventTypes      []string
	ticksPerSecond  int
	queueSize       int
	dispatcherCount int
	maxRankLimit    int
	presenter       workerpool.Presenter
	oracle          geom.Oracle

	// State
	started  bool
	stopped  bool
	ticks    int64
	lastTick map[string]int64
	dropped  int64

	logger logger.Logger
}

// New builds the stores and engines over docs. Effects are buffered until
// Start launches the dispatchers.
func New(docs docstore.Store, opts ...Option) *Service {
	s := &Service{
		docs:            docs,
		eventTypes:      []string{"parkour"},
		ticksPerSecond:  defaultTicksPerSecond,
		queueSize:       defaultQueueSize,
		dispatcherCount: runtime.NumCPU(),
		maxRankLimit:    defaultMaxRankLimit,
		oracle:          geom.BlockOracle{},
		lastTick:        make(map[string]int64),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presenter == nil {
		s.presenter = NewLogPresenter(s.logger.Named("presenter"))
	}

	s.variants = repository.NewVariantStore(docs, repository.WithVariantLogger(s.logger.Named("variants")))
	s.ranker = ranking.NewRanker(ranking.WithTicksPerSecond(s.ticksPerSecond))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.events = make(map[string]*eventRuntime, len(s.eventTypes))
	for _, et := range s.eventTypes {
		progress := repository.NewProgressStore(docs, et,
			repository.WithProgressLogger(s.logger.Named("progress").With(logger.String("event", et))))
		s.events[et] = &eventRuntime{
			progress: progress,
			engine: engine.New(et, s.variants, progress,
				engine.WithOracle(s.oracle),
				engine.WithTicksPerSecond(s.ticksPerSecond),
				engine.WithLogger(s.logger.Named("engine").With(logger.String("event", et))),
			),
		}
	}
	return s
}

// Start launches the effect dispatchers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return fmt.Errorf("service cannot be restarted: %w", eventqueue.ErrClosed)
	}

	// Dispatchers outlive ctx; Stop ends them by closing the queue so the
	// backlog is delivered.
	s.pool = workerpool.NewPool(s.dispatcherCount, s.queue, s.presenter, s.logger)
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "waypoint service started",
		logger.Any("event_types", s.eventTypes),
		logger.Int("dispatchers", s.dispatcherCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("ticks_per_second", s.ticksPerSecond),
	)
	return nil
}

// Stop closes the effect queue and waits for the dispatchers to drain it.
// The document store belongs to the caller and stays open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping waypoint service...")

	err := s.pool.Shutdown(ctx)
	s.started = false
	s.stopped = true
	if err != nil {
		return fmt.Errorf("stop dispatchers: %w", err)
	}
	s.logger.Info(ctx, "waypoint service stopped")
	return nil
}

// EventTypes returns the configured event types.
func (s *Service) EventTypes() []string {
	return slices.Clone(s.eventTypes)
}

// TickReport summarises one evaluated tick.
type TickReport struct {
	Event   string         `json:"event"`
	Tick    int64          `json:"tick"`
	Players int            `json:"players"`
	Effects []model.Effect `json:"effects"`
	Dropped int            `json:"dropped"`
}

// Tick evaluates the online players of event and queues the resulting
// effects. Effects that do not fit the queue are dropped and counted. A
// transition that could not be persisted is reported in the error while the
// report still carries everything else the tick produced.
func (s *Service) Tick(ctx context.Context, event string, tick int64, players []engine.Player) (TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := TickReport{Event: event, Tick: tick, Players: len(players), Effects: []model.Effect{}}
	rt, err := s.runtime(event)
	if err != nil {
		return report, err
	}

	effects, tickErr := rt.engine.Tick(ctx, tick, players)
	for _, e := range effects {
		if err := s.queue.Enqueue(ctx, e); err != nil {
			report.Dropped++
			s.dropped++
			s.logger.Debug(ctx, "effect dropped", logger.String("event", event), logger.Error(err))
		}
	}
	if effects != nil {
		report.Effects = effects
	}
	s.ticks++
	s.lastTick[event] = tick
	metrics.UpdateCachedPlayers(event, rt.progress.Cached())

	if tickErr != nil {
		return report, fmt.Errorf("tick %s/%d: %w", event, tick, tickErr)
	}
	return report, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached := make(map[string]int, len(s.events))
	for et, rt := range s.events {
		cached[et] = rt.progress.Cached()
	}
	lastTick := make(map[string]int64, len(s.lastTick))
	for et, t := range s.lastTick {
		lastTick[et] = t
	}

	return map[string]any{
		"started":          s.started,
		"event_types":      slices.Clone(s.eventTypes),
		"ticks_per_second": s.ticksPerSecond,
		"dispatchers":      s.dispatcherCount,
		"queue_size":       s.queueSize,
		"queue_length":     s.queue.Len(ctx),
		"ticks":            s.ticks,
		"last_tick":        lastTick,
		"effects_dropped":  s.dropped,
		"cached_players":   cached,
	}
}

func (s *Service) runtime(event string) (*eventRuntime, error) {
	rt, ok := s.events[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return rt, nil
}
