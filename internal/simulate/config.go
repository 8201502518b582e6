// Package simulate drives a running waypoint service through a synthetic
// race: it builds a course over HTTP, moves players through it with ticks,
// fetches the ranking and checks it against the expected order.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/waypoint/internal/domain/model"
)

// ErrInvalidConfig reports an unusable simulation configuration.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string             // Base URL of the service
	Event          string             // Event type to race in
	Variant        string             // Variant created for the run
	Players        int                // Number of synthetic players
	Checkpoints    int                // Intermediate checkpoints between start and end
	SkipRate       float64            // Share of players that skip a checkpoint
	WinCondition   model.WinCondition // Optional win condition patched onto the variant
	TicksPerSecond int                // Tick rate the service is configured with
	MaxPace        int                // Upper bound of ticks between two zones
	Timeout        time.Duration      // HTTP request timeout
	OutputFile     string             // Optional JSON report
	Verbose        bool               // Enable verbose logging
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.Event == "" || c.Variant == "":
		return fmt.Errorf("%w: event and variant are required", ErrInvalidConfig)
	case c.Players < 1:
		return fmt.Errorf("%w: players must be positive", ErrInvalidConfig)
	case c.Checkpoints < 1:
		return fmt.Errorf("%w: at least one intermediate checkpoint is required", ErrInvalidConfig)
	case c.SkipRate < 0 || c.SkipRate > 1:
		return fmt.Errorf("%w: skip rate must be within [0,1]", ErrInvalidConfig)
	case c.TicksPerSecond < 1:
		return fmt.Errorf("%w: ticks per second must be positive", ErrInvalidConfig)
	case c.MaxPace < 1:
		return fmt.Errorf("%w: max pace must be positive", ErrInvalidConfig)
	}
	if c.WinCondition != "" {
		w, err := model.ParseWinCondition(string(c.WinCondition))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		c.WinCondition = w
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Players         int           `json:"players"`
	Skippers        int           `json:"skippers"`
	TicksSent       int           `json:"ticks_sent"`
	Effects         int           `json:"effects"`
	FinishMessages  int           `json:"finish_messages"`
	FailMessages    int           `json:"fail_messages"`
	StandingsScored int           `json:"standings"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Duration        time.Duration `json:"duration"`
}
