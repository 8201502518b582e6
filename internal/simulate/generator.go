package simulate

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/waypoint/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	noSkip             = -1
)

// Plan is the schedule of one synthetic player: the tick at which it enters
// each zone of the course. A skipped zone has no arrival and the player is
// expected to be refused at every zone after it.
type Plan struct {
	Player   uuid.UUID `json:"player"`
	Arrivals []int64   `json:"arrivals"`
	Skipped  int       `json:"skipped"`
}

// Finishes reports whether the plan reaches the end legitimately.
func (p Plan) Finishes() bool { return p.Skipped == noSkip }

// StartTick is the tick the player enters the start zone.
func (p Plan) StartTick() int64 { return p.Arrivals[0] }

// FinishTick is the tick the player enters the end zone.
func (p Plan) FinishTick() int64 { return p.Arrivals[len(p.Arrivals)-1] }

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n).
func getRandomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generatePlans creates one plan per player. Every leg takes between one and
// cfg.MaxPace ticks, and about cfg.SkipRate of the players leave out one
// intermediate checkpoint.
func generatePlans(ctx context.Context, cfg *Config, course Course, stats *Stats) []Plan {
	plans := make([]Plan, cfg.Players)
	for i := range plans {
		p := Plan{
			Player:   uuid.New(),
			Arrivals: make([]int64, len(course.Zones)),
			Skipped:  noSkip,
		}
		if getRandomFloat() < cfg.SkipRate {
			// Only intermediate zones; the start and end are never skipped.
			p.Skipped = 1 + getRandomInt(len(course.Zones)-2)
			stats.Skippers++
		}

		var tick int64
		for z := range course.Zones {
			tick += int64(1 + getRandomInt(cfg.MaxPace))
			p.Arrivals[z] = tick
		}
		plans[i] = p
	}
	stats.Players = len(plans)

	logger.Get().Info(ctx, "generated player plans",
		logger.Int("players", stats.Players),
		logger.Int("skippers", stats.Skippers))
	return plans
}
