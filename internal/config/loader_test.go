package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/waypoint/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorageBackend, convey.ShouldEqual, "file")
				convey.So(cfg.EventTypes, convey.ShouldResemble, []string{"parkour", "elytra"})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("WAYPOINT_ADDR", ":8080")
			_ = os.Setenv("WAYPOINT_STORAGE_BACKEND", "sqlite")
			_ = os.Setenv("WAYPOINT_TICKS_PER_SECOND", "10")
			_ = os.Setenv("WAYPOINT_EVENT_TYPES", "parkour, boat")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StorageBackend, convey.ShouldEqual, "sqlite")
				convey.So(cfg.TicksPerSecond, convey.ShouldEqual, 10)
				convey.So(cfg.EventTypes, convey.ShouldResemble, []string{"parkour", "boat"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":7000"
storage_dir: "/tmp/waypoint-data"
effect_queue_size: 500
event_types:
  - elytra
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WAYPOINT_CONFIG", tmpFile)
			_ = os.Setenv("WAYPOINT_ADDR", ":8081")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")                    // env
				convey.So(cfg.StorageDir, convey.ShouldEqual, "/tmp/waypoint-data") // file
				convey.So(cfg.EffectQueueSize, convey.ShouldEqual, 500)             // file
				convey.So(cfg.EventTypes, convey.ShouldResemble, []string{"elytra"})
				convey.So(cfg.MaxRankLimit, convey.ShouldEqual, 100) // default
			})
		})

		convey.Convey("When metrics settings come from the environment", func() {
			_ = os.Setenv("WAYPOINT_METRICS_NAMESPACE", "lobby")
			_ = os.Setenv("WAYPOINT_METRICS_CONST_LABELS", "server=lobby-1, region=eu")
			_ = os.Setenv("WAYPOINT_METRICS_BUCKETS", "0.5,1,5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then labels and buckets are parsed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "lobby")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "engine")
				convey.So(cfg.MetricsConstLabels, convey.ShouldResemble, map[string]string{"server": "lobby-1", "region": "eu"})
				convey.So(cfg.MetricsBuckets, convey.ShouldResemble, []float64{0.5, 1, 5})
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WAYPOINT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("WAYPOINT_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file empties addr", func() {
			tmpFile := createTempConfigFile(`addr: ""`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("WAYPOINT_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"WAYPOINT_CONFIG",
		"WAYPOINT_ADDR",
		"WAYPOINT_STORAGE_BACKEND",
		"WAYPOINT_TICKS_PER_SECOND",
		"WAYPOINT_EVENT_TYPES",
		"WAYPOINT_METRICS_NAMESPACE",
		"WAYPOINT_METRICS_CONST_LABELS",
		"WAYPOINT_METRICS_BUCKETS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "waypoint-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
