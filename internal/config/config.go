// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"strings"
)

// Storage backends understood by the document store factory.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// StorageBackend selects the document store: file or sqlite.
	StorageBackend string `koanf:"storage_backend"`

	// StorageDir is the root directory of the file backend.
	StorageDir string `koanf:"storage_dir"`

	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// TicksPerSecond converts tick deltas into seconds for feedback.
	TicksPerSecond int `koanf:"ticks_per_second"`

	// EventTypes lists the event type tags served, one engine each.
	EventTypes []string `koanf:"event_types"`

	// EffectQueueSize bounds the presentation effect queue.
	EffectQueueSize int `koanf:"effect_queue_size"`

	// DispatcherCount sets the number of effect dispatchers.
	DispatcherCount int `koanf:"dispatcher_count"`

	// MaxRankLimit caps GET .../rank?limit.
	MaxRankLimit int `koanf:"max_rank_limit"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsConstLabels are attached to every metric, e.g. server=lobby.
	MetricsConstLabels map[string]string `koanf:"metrics_const_labels"`

	// MetricsBuckets replaces the latency histogram buckets (milliseconds).
	MetricsBuckets []float64 `koanf:"metrics_buckets"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9090",
		StorageBackend:   BackendFile,
		StorageDir:       "events",
		SQLitePath:       "waypoint.db",
		TicksPerSecond:   20,
		EventTypes:       []string{"parkour", "elytra"},
		EffectQueueSize:  10_000,
		DispatcherCount:  runtime.NumCPU(),
		MaxRankLimit:     100,
		MetricsNamespace: "waypoint",
		MetricsSubsystem: "engine",
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageBackend != BackendFile && c.StorageBackend != BackendSQLite:
		return fmt.Errorf("%w: unknown storage_backend %q", ErrInvalidConfig, c.StorageBackend)
	case c.StorageBackend == BackendFile && c.StorageDir == "":
		return fmt.Errorf("%w: storage_dir must not be empty", ErrInvalidConfig)
	case c.StorageBackend == BackendSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.TicksPerSecond <= 0:
		return fmt.Errorf("%w: ticks_per_second must be positive", ErrInvalidConfig)
	case len(c.EventTypes) == 0:
		return fmt.Errorf("%w: event_types must not be empty", ErrInvalidConfig)
	case c.EffectQueueSize <= 0:
		return fmt.Errorf("%w: effect_queue_size must be positive", ErrInvalidConfig)
	case c.DispatcherCount <= 0:
		return fmt.Errorf("%w: dispatcher_count must be positive", ErrInvalidConfig)
	case c.MaxRankLimit <= 0:
		return fmt.Errorf("%w: max_rank_limit must be positive", ErrInvalidConfig)
	}

	if err := c.validateMetrics(); err != nil {
		return err
	}

	seen := make([]string, 0, len(c.EventTypes))
	for _, et := range c.EventTypes {
		if et == "" {
			return fmt.Errorf("%w: empty event type", ErrInvalidConfig)
		}
		if slices.Contains(seen, et) {
			return fmt.Errorf("%w: duplicate event type %q", ErrInvalidConfig, et)
		}
		seen = append(seen, et)
	}
	return nil
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (c *Config) validateMetrics() error {
	for _, part := range []struct{ key, value string }{
		{"metrics_namespace", c.MetricsNamespace},
		{"metrics_subsystem", c.MetricsSubsystem},
	} {
		if part.value != "" && !metricName.MatchString(part.value) {
			return fmt.Errorf("%w: %s %q is not a metric name", ErrInvalidConfig, part.key, part.value)
		}
	}
	for name := range c.MetricsConstLabels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_const_labels: bad label name %q", ErrInvalidConfig, name)
		}
	}
	for i := 1; i < len(c.MetricsBuckets); i++ {
		if c.MetricsBuckets[i] <= c.MetricsBuckets[i-1] {
			return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}
