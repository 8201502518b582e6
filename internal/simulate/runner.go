package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/waypoint/internal/app"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/domain/ranking"
	"github.com/okian/waypoint/internal/engine"
	"github.com/okian/waypoint/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	reportPermission    = 0600
)

// staleBatch is the rank page used when clearing records of earlier runs.
const staleBatch = 100

const finishPrefix = "You have finished"

// Report is the outcome of a run.
type Report struct {
	Config    *Config            `json:"config"`
	Course    Course             `json:"course"`
	Plans     []Plan             `json:"plans"`
	Standings []ranking.Standing `json:"standings"`
	Stats     *Stats             `json:"stats"`
}

// Run executes the complete race simulation.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout)

	log.Info(ctx, "starting waypoint race simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("event", cfg.Event),
		logger.String("variant", cfg.Variant),
		logger.Int("players", cfg.Players),
		logger.Int("checkpoints", cfg.Checkpoints),
		logger.Float64("skipRate", cfg.SkipRate),
		logger.String("timeout", cfg.Timeout.String()))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Build the course
	course := NewCourse(cfg.Checkpoints)
	if err := buildCourse(ctx, client, cfg, course); err != nil {
		return nil, fmt.Errorf("course setup failed: %w", err)
	}

	// Step 3: Clear records left by earlier runs on the same variant
	if err := clearStale(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("clearing stale records failed: %w", err)
	}

	// Step 4: Generate players and enrol them
	plans := generatePlans(ctx, cfg, course, stats)
	if err := joinPlayers(ctx, client, cfg, plans); err != nil {
		return nil, fmt.Errorf("joining players failed: %w", err)
	}

	// Step 5: Race
	if err := race(ctx, client, cfg, course, plans, stats); err != nil {
		return nil, fmt.Errorf("race failed: %w", err)
	}

	// Step 6: Fetch and verify the ranking
	standings, err := fetchRanking(ctx, client, cfg, cfg.Players)
	if err != nil {
		return nil, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.StandingsScored = len(standings)
	if err := verifyResults(ctx, cfg, course, plans, standings, stats); err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	report := &Report{Config: cfg, Course: course, Plans: plans, Standings: standings, Stats: stats}
	if cfg.OutputFile != "" {
		if err := saveReport(ctx, cfg.OutputFile, report); err != nil {
			return report, fmt.Errorf("failed to save report: %w", err)
		}
	}

	displayFinalStats(ctx, stats)
	return report, nil
}

func eventPath(cfg *Config) string {
	return "/events/" + url.PathEscape(cfg.Event)
}

func variantPath(cfg *Config) string {
	return eventPath(cfg) + "/variants/" + url.PathEscape(cfg.Variant)
}

// clearStale resets every player still ranked on the variant.
func clearStale(ctx context.Context, client *Client, cfg *Config) error {
	cleared := 0
	for {
		standings, err := fetchRanking(ctx, client, cfg, staleBatch)
		if err != nil {
			return err
		}
		if len(standings) == 0 {
			break
		}
		for _, st := range standings {
			path := eventPath(cfg) + "/players/" + st.Player.String() + "?variant=" + url.QueryEscape(cfg.Variant)
			if _, err := client.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
				return fmt.Errorf("reset %s: %w", st.Player, err)
			}
			cleared++
		}
	}
	if cleared > 0 {
		logger.Get().Info(ctx, "cleared stale records", logger.Int("players", cleared))
	}
	return nil
}

func joinPlayers(ctx context.Context, client *Client, cfg *Config, plans []Plan) error {
	for _, p := range plans {
		env, err := client.do(ctx, http.MethodPost, variantPath(cfg)+"/players/"+p.Player.String()+"/join", nil, nil)
		if err != nil {
			return err
		}
		if !env.OK {
			return fmt.Errorf("join %s: %s", p.Player, env.Message)
		}
	}
	logger.Get().Info(ctx, "players joined", logger.Int("players", len(plans)))
	return nil
}

// race sends one tick for every tick at which some player reaches a zone.
// Players not arriving stand in the corridor behind the last zone they
// passed, so each zone is entered exactly once.
func race(ctx context.Context, client *Client, cfg *Config, course Course, plans []Plan, stats *Stats) error {
	var ticks []int64
	for _, p := range plans {
		ticks = append(ticks, p.Arrivals...)
	}
	slices.Sort(ticks)
	ticks = slices.Compact(ticks)

	log := logger.Get()
	players := make([]engine.Player, len(plans))
	for _, tick := range ticks {
		for i, p := range plans {
			players[i] = engine.Player{ID: p.Player, Position: positionAt(course, p, tick)}
		}

		var report service.TickReport
		if _, err := client.do(ctx, http.MethodPost, eventPath(cfg)+"/tick", map[string]any{
			"tick":    tick,
			"players": players,
		}, &report); err != nil {
			return err
		}
		stats.TicksSent++
		stats.Effects += len(report.Effects)
		for _, fx := range report.Effects {
			if fx.Kind != model.EffectMessage {
				continue
			}
			switch {
			case strings.HasPrefix(fx.Text, finishPrefix):
				stats.FinishMessages++
			case fx.Text == model.DefaultFailMessage:
				stats.FailMessages++
			}
		}
		log.Debug(ctx, "tick evaluated",
			logger.Int64("tick", tick),
			logger.Int("effects", len(report.Effects)),
			logger.Int("dropped", report.Dropped))
	}
	log.Info(ctx, "race completed",
		logger.Int("ticks", stats.TicksSent),
		logger.Int("effects", stats.Effects),
		logger.Int("finishMessages", stats.FinishMessages),
		logger.Int("failMessages", stats.FailMessages))
	return nil
}

// positionAt places the player of p at tick: inside the zone it enters, or
// in the corridor after the last zone it reached.
func positionAt(course Course, p Plan, tick int64) geom.Vec3 {
	last := -1
	for z, at := range p.Arrivals {
		if at > tick {
			break
		}
		if at == tick && z != p.Skipped {
			return course.At(z)
		}
		last = z
	}
	return course.After(last)
}

func fetchRanking(ctx context.Context, client *Client, cfg *Config, limit int) ([]ranking.Standing, error) {
	var standings []ranking.Standing
	path := variantPath(cfg) + "/rank?limit=" + strconv.Itoa(limit)
	if _, err := client.do(ctx, http.MethodGet, path, nil, &standings); err != nil {
		return nil, err
	}
	return standings, nil
}

// saveReport writes the report as indented JSON.
func saveReport(ctx context.Context, name string, report *Report) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(name, data, reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved", logger.String("file", name))
	return nil
}

// displayFinalStats logs a summary of the run.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "simulation finished",
		logger.Int("players", stats.Players),
		logger.Int("skippers", stats.Skippers),
		logger.Int("ticks", stats.TicksSent),
		logger.Int("effects", stats.Effects),
		logger.Int("standings", stats.StandingsScored),
		logger.String("duration", stats.Duration.String()))
}
