// Package ranking orders the players of a variant by finishing performance.
package ranking

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/google/uuid"

	"github.com/okian/waypoint/internal/domain/model"
)

const defaultTicksPerSecond = 20

// Standing is one row of a ranking.
type Standing struct {
	Position     int       `json:"position"`
	Player       uuid.UUID `json:"player"`
	Finished     bool      `json:"finished"`
	StartTick    int64     `json:"start_tick"`
	FinishTick   int64     `json:"finish_tick"`
	ElapsedTicks int64     `json:"elapsed_ticks"`
	Seconds      int64     `json:"seconds"`
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithTicksPerSecond sets the tick rate used to report seconds.
func WithTicksPerSecond(tps int) Option {
	return func(r *Ranker) {
		if tps > 0 {
			r.ticksPerSecond = tps
		}
	}
}

// Ranker turns player records into standings.
type Ranker struct {
	ticksPerSecond int
}

// NewRanker returns a Ranker with the given options.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{ticksPerSecond: defaultTicksPerSecond}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compare orders records of one variant. Finished players come first. Among
// finishers FirstToFinish compares finish ticks and FastestTime compares
// elapsed ticks; any other value is treated as FirstToFinish. Unfinished
// players have no time to compare. Remaining ties are broken by player id.
func Compare(w model.WinCondition) func(a, b model.PlayerRecord) int {
	return func(a, b model.PlayerRecord) int {
		if a.Progress.Finished != b.Progress.Finished {
			if a.Progress.Finished {
				return -1
			}
			return 1
		}
		if a.Progress.Finished {
			var c int
			if w == model.FastestTime {
				c = cmp.Compare(a.Progress.ElapsedTicks(), b.Progress.ElapsedTicks())
			} else {
				c = cmp.Compare(a.Progress.FinishTick, b.Progress.FinishTick)
			}
			if c != 0 {
				return c
			}
		}
		return bytes.Compare(a.Player[:], b.Player[:])
	}
}

// Rank sorts records and returns the first limit standings. A non-positive
// limit yields no standings.
func (r *Ranker) Rank(records []model.PlayerRecord, w model.WinCondition, limit int) []Standing {
	if limit <= 0 || len(records) == 0 {
		return []Standing{}
	}
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, Compare(w))
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Standing, len(sorted))
	for i, rec := range sorted {
		elapsed := rec.Progress.ElapsedTicks()
		out[i] = Standing{
			Position:     i + 1,
			Player:       rec.Player,
			Finished:     rec.Progress.Finished,
			StartTick:    rec.Progress.StartTick,
			FinishTick:   rec.Progress.FinishTick,
			ElapsedTicks: elapsed,
			Seconds:      elapsed / int64(r.ticksPerSecond),
		}
	}
	return out
}
