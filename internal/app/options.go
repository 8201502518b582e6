package service

import (
	workerpool "github.com/okian/waypoint/internal/adapters/mq/worker"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEventTypes sets the event types the service runs an engine for.
func WithEventTypes(types ...string) Option {
	return func(s *Service) {
		if len(types) > 0 {
			s.eventTypes = append([]string(nil), types...)
		}
	}
}

// WithTicksPerSecond sets the tick rate used for elapsed time and ranking.
func WithTicksPerSecond(tps int) Option {
	return func(s *Service) {
		if tps > 0 {
			s.ticksPerSecond = tps
		}
	}
}

// WithEffectQueueSize sets the capacity of the effect queue.
func WithEffectQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDispatcherCount sets the number of effect dispatchers.
func WithDispatcherCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.dispatcherCount = count
		}
	}
}

// WithMaxRankLimit caps the number of standings a ranking returns.
func WithMaxRankLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxRankLimit = limit
		}
	}
}

// WithPresenter sets where effects are delivered.
func WithPresenter(p workerpool.Presenter) Option {
	return func(s *Service) {
		if p != nil {
			s.presenter = p
		}
	}
}

// WithOracle sets the zone containment oracle used by every engine.
func WithOracle(o geom.Oracle) Option {
	return func(s *Service) {
		if o != nil {
			s.oracle = o
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
