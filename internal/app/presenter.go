package service

import (
	"context"

	workerpool "github.com/okian/waypoint/internal/adapters/mq/worker"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
)

// NewLogPresenter returns a presenter that writes every effect to log. It
// stands in for the game host when none is attached.
func NewLogPresenter(log logger.Logger) workerpool.Presenter {
	if log == nil {
		log = logger.Nop()
	}
	return workerpool.PresenterFunc(func(ctx context.Context, e model.Effect) error {
		fields := []logger.Field{
			logger.String("event", e.Event),
			logger.String("variant", e.Variant),
			logger.Stringer("player", e.Player),
			logger.String("kind", string(e.Kind)),
		}
		switch e.Kind {
		case model.EffectSound:
			fields = append(fields, logger.String("sound", e.Sound))
		case model.EffectParticle:
			fields = append(fields, logger.String("particle", e.Particle))
		case model.EffectElapsed:
			fields = append(fields, logger.Int64("seconds", e.Seconds))
		default:
			fields = append(fields, logger.String("text", e.Text), logger.Bool("overlay", e.Overlay))
		}
		log.Debug(ctx, "effect", fields...)
		return nil
	})
}
