package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "WAYPOINT_"
	envConfigPath = "WAYPOINT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if WAYPOINT_CONFIG is set
//  3. env (prefix WAYPOINT_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// WAYPOINT_STORAGE_DIR -> storage_dir (flat keys, underscores kept).
	// List values are comma separated: WAYPOINT_EVENT_TYPES=parkour,elytra.
	// Maps are comma separated pairs: WAYPOINT_METRICS_CONST_LABELS=server=lobby.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		switch key {
		case "event_types", "metrics_buckets":
			return key, splitList(value)
		case "metrics_const_labels":
			return key, splitPairs(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// mapstructure merges into an existing slice instead of replacing it.
	if k.Exists("event_types") {
		cfg.EventTypes = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitPairs(v string) map[string]any {
	out := make(map[string]any)
	for _, p := range splitList(v) {
		name, value, _ := strings.Cut(p, "=")
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}
