// Package engine evaluates checkpoint zones for online players once per tick
// and drives each player's progress through a variant.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/adapters/repository"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
	"github.com/okian/waypoint/pkg/metrics"
)

const defaultTicksPerSecond = 20

// Player is an online player and where it stands this tick.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Position geom.Vec3 `json:"position"`
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithOracle sets the zone containment oracle.
func WithOracle(o geom.Oracle) Option {
	return func(e *Engine) {
		if o != nil {
			e.oracle = o
		}
	}
}

// WithTicksPerSecond sets the tick rate used for elapsed seconds.
func WithTicksPerSecond(tps int) Option {
	return func(e *Engine) {
		if tps > 0 {
			e.ticksPerSecond = tps
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine runs the checkpoint state machine of one event type.
type Engine struct {
	eventType      string
	variants       repository.Variants
	progress       repository.Progress
	oracle         geom.Oracle
	ticksPerSecond int
	log            logger.Logger
}

// New creates the engine of eventType.
func New(eventType string, variants repository.Variants, progress repository.Progress, opts ...Option) *Engine {
	e := &Engine{
		eventType:      eventType,
		variants:       variants,
		progress:       progress,
		oracle:         geom.BlockOracle{},
		ticksPerSecond: defaultTicksPerSecond,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EventType returns the tag the engine serves.
func (e *Engine) EventType() string { return e.eventType }

// TicksPerSecond returns the configured tick rate.
func (e *Engine) TicksPerSecond() int { return e.ticksPerSecond }

// Tick evaluates every player against every variant and checkpoint.
//
// A transition that cannot be persisted leaves the record as it was, produces
// no presentation and is reported in the returned error; the scan carries on
// with the remaining players. A variant document that cannot be loaded
// aborts the tick.
func (e *Engine) Tick(ctx context.Context, tick int64, players []Player) ([]model.Effect, error) {
	start := time.Now()
	defer func() {
		metrics.RecordTickDuration(e.eventType, float64(time.Since(start).Microseconds())/1000.0)
	}()

	variants, err := e.variants.List(ctx, e.eventType)
	if err != nil {
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}
	for i := range variants {
		variants[i].Checkpoints = variants[i].Ordered()
	}

	var (
		effects []model.Effect
		errs    []error
		running int
	)
	for _, p := range players {
		for _, v := range variants {
			fx, isRunning, err := e.evaluate(ctx, tick, p, v)
			effects = append(effects, fx...)
			if isRunning {
				running++
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	metrics.AddPlayersEvaluated(e.eventType, len(players))
	metrics.UpdateActiveParticipants(e.eventType, running)
	return effects, errors.Join(errs...)
}

// evaluate runs one player against one variant whose checkpoints are ordered.
func (e *Engine) evaluate(ctx context.Context, tick int64, p Player, v model.Variant) ([]model.Effect, bool, error) {
	rec, err := e.progress.Get(ctx, p.ID, v.Name)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", v.Name, p.ID, err)
	}

	var (
		effects []model.Effect
		errs    []error
	)
	for _, cp := range v.Checkpoints {
		if !e.oracle.Contains(p.Position, cp.Zone()) {
			continue
		}
		outcome, next := transition(v, cp, rec, tick)
		if next != nil {
			if err := e.progress.Apply(ctx, p.ID, *next); err != nil {
				errs = append(errs, e.transitionFailed(ctx, p, v, cp, err))
				continue
			}
			rec = *next
		}
		metrics.RecordTransition(e.eventType, string(cp.Type), outcome.String())
		effects = append(effects, e.present(p.ID, v, cp, outcome, rec)...)
	}

	if rec.IsParticipating() && !e.oracle.Contains(p.Position, v.Bounds()) {
		left := rec.Clone()
		left.Participating = model.Ptr(false)
		if err := e.progress.Apply(ctx, p.ID, left); err != nil {
			errs = append(errs, e.transitionFailed(ctx, p, v, model.Checkpoint{}, err))
		} else {
			rec = left
			metrics.RecordAutoLeave(e.eventType)
			e.log.Debug(ctx, "player left variant bounds",
				logger.String("variant", v.Name), logger.Stringer("player", p.ID))
		}
	}

	if rec.Running() {
		effects = append(effects, model.Effect{
			Event:   e.eventType,
			Variant: v.Name,
			Player:  p.ID,
			Kind:    model.EffectElapsed,
			Text:    fmt.Sprintf("Elapsed time: %d seconds", e.seconds(tick-rec.StartTick)),
			Overlay: true,
			Seconds: e.seconds(tick - rec.StartTick),
		})
	}
	return effects, rec.Running(), errors.Join(errs...)
}

func (e *Engine) transitionFailed(ctx context.Context, p Player, v model.Variant, cp model.Checkpoint, err error) error {
	metrics.RecordTransitionError(e.eventType)
	e.log.Error(ctx, "persist transition",
		logger.String("variant", v.Name),
		logger.Stringer("player", p.ID),
		logger.Int("checkpoint", cp.Index),
		logger.Error(err))
	return fmt.Errorf("%w: %s/%s: %w", ErrTransition, v.Name, p.ID, err)
}

// present maps an outcome to presentation effects.
func (e *Engine) present(player uuid.UUID, v model.Variant, cp model.Checkpoint, outcome model.Outcome, rec model.Progress) []model.Effect {
	base := model.Effect{Event: e.eventType, Variant: v.Name, Player: player}
	switch outcome {
	case model.GoodPath:
		msg, sound, particle := base, base, base
		msg.Kind, msg.Text, msg.Overlay = model.EffectMessage, cp.SuccessMessage, true
		sound.Kind, sound.Sound = model.EffectSound, cp.Sound
		particle.Kind, particle.Particle = model.EffectParticle, model.SuccessParticle
		out := []model.Effect{msg, sound, particle}
		if cp.Type == model.PortalEnd {
			finish := base
			finish.Kind = model.EffectMessage
			finish.Seconds = e.seconds(rec.ElapsedTicks())
			finish.Text = fmt.Sprintf("You have finished the %s, with a time of %d seconds", e.eventType, finish.Seconds)
			out = append(out, finish)
		}
		return out
	case model.NotGoodPath:
		fail := base
		fail.Kind, fail.Text, fail.Overlay = model.EffectMessage, v.FailMessage, true
		return []model.Effect{fail}
	}
	return nil
}

func (e *Engine) seconds(ticks int64) int64 {
	return ticks / int64(e.ticksPerSecond)
}
