package simulate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
	"github.com/okian/waypoint/pkg/logger"
)

// ErrMismatch reports a ranking or effect count that differs from the plans.
var ErrMismatch = errors.New("result mismatch")

const topN = 10

// expectedOrder ranks plans the way the service should: finishers first,
// ordered by the win condition, then everyone else. Ties fall back to the
// player id.
func expectedOrder(plans []Plan, win model.WinCondition) []Plan {
	out := slices.Clone(plans)
	slices.SortFunc(out, func(a, b Plan) int {
		if a.Finishes() != b.Finishes() {
			if a.Finishes() {
				return -1
			}
			return 1
		}
		if a.Finishes() {
			var c int
			if win == model.FastestTime {
				c = cmp.Compare(a.FinishTick()-a.StartTick(), b.FinishTick()-b.StartTick())
			} else {
				c = cmp.Compare(a.FinishTick(), b.FinishTick())
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.Player.String(), b.Player.String())
	})
	return out
}

// expectedFails counts the refusals of the skippers: one for every zone
// after the skipped one, end included.
func expectedFails(plans []Plan, zones int) int {
	n := 0
	for _, p := range plans {
		if !p.Finishes() {
			n += zones - 1 - p.Skipped
		}
	}
	return n
}

// verifyResults checks the effects counted during the race and the fetched
// standings against the plans.
func verifyResults(ctx context.Context, cfg *Config, course Course, plans []Plan, standings []ranking.Standing, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	var errs []error
	finishers := stats.Players - stats.Skippers
	if stats.FinishMessages != finishers {
		errs = append(errs, fmt.Errorf("%w: %d finish messages for %d finishers", ErrMismatch, stats.FinishMessages, finishers))
	}
	if want := expectedFails(plans, len(course.Zones)); stats.FailMessages != want {
		errs = append(errs, fmt.Errorf("%w: %d fail messages, want %d", ErrMismatch, stats.FailMessages, want))
	}

	if len(standings) == 0 {
		errs = append(errs, fmt.Errorf("%w: empty ranking", ErrMismatch))
	}
	if len(standings) > len(plans) {
		errs = append(errs, fmt.Errorf("%w: %d standings for %d players", ErrMismatch, len(standings), len(plans)))
	}

	win := cfg.WinCondition
	if win == "" {
		win = model.FirstToFinish
	}
	expected := expectedOrder(plans, win)
	for i := 0; i < len(standings) && i < len(expected); i++ {
		if err := compareStanding(standings[i], expected[i], i+1, cfg.TicksPerSecond); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	displayTopPerformers(ctx, standings, cfg.Verbose)
	log.Info(ctx, "result verification completed")
	return nil
}

func compareStanding(got ranking.Standing, want Plan, position, tps int) error {
	switch {
	case got.Position != position:
		return fmt.Errorf("%w: standing %d reports position %d", ErrMismatch, position, got.Position)
	case got.Player != want.Player:
		return fmt.Errorf("%w: position %d is %s, want %s", ErrMismatch, position, got.Player, want.Player)
	case got.Finished != want.Finishes():
		return fmt.Errorf("%w: position %d finished=%t, want %t", ErrMismatch, position, got.Finished, want.Finishes())
	}
	if !want.Finishes() {
		return nil
	}
	elapsed := want.FinishTick() - want.StartTick()
	if got.StartTick != want.StartTick() || got.FinishTick != want.FinishTick() {
		return fmt.Errorf("%w: position %d ran %d..%d, want %d..%d", ErrMismatch, position,
			got.StartTick, got.FinishTick, want.StartTick(), want.FinishTick())
	}
	if got.Seconds != elapsed/int64(tps) {
		return fmt.Errorf("%w: position %d took %d seconds, want %d", ErrMismatch, position, got.Seconds, elapsed/int64(tps))
	}
	return nil
}

// displayTopPerformers logs the head of the ranking.
func displayTopPerformers(ctx context.Context, standings []ranking.Standing, verbose bool) {
	log := logger.Get()
	n := min(topN, len(standings))
	if verbose {
		n = len(standings)
	}
	for _, st := range standings[:n] {
		log.Info(ctx, "standing",
			logger.Int("position", st.Position),
			logger.Stringer("player", st.Player),
			logger.Bool("finished", st.Finished),
			logger.Int64("seconds", st.Seconds))
	}
}
