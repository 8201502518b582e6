package simulate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/waypoint/internal/adapters/docstore"
	"github.com/okian/waypoint/internal/adapters/http/api"
	service "github.com/okian/waypoint/internal/app"
	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
)

func newTarget(t *testing.T) *httptest.Server {
	docs, err := docstore.NewSQLiteStore(context.Background(), "")
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	svc := service.New(docs, service.WithEventTypes("parkour"), service.WithDispatcherCount(1))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
		_ = docs.Close()
	})
	return srv
}

func baseConfig(url string) *Config {
	return &Config{
		BaseURL:        url,
		Event:          "parkour",
		Variant:        "sim",
		Players:        12,
		Checkpoints:    3,
		SkipRate:       0.3,
		TicksPerSecond: 20,
		MaxPace:        30,
		Timeout:        5 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("Given simulation configs", t, func() {
		Convey("A complete config is accepted", func() {
			cfg := baseConfig("http://localhost:9080")
			cfg.WinCondition = "fastest_time"
			So(cfg.Validate(), ShouldBeNil)
			So(cfg.WinCondition, ShouldEqual, model.FastestTime)
		})

		Convey("Unusable values are rejected", func() {
			broken := []func(*Config){
				func(c *Config) { c.BaseURL = "" },
				func(c *Config) { c.Variant = "" },
				func(c *Config) { c.Players = 0 },
				func(c *Config) { c.Checkpoints = 0 },
				func(c *Config) { c.SkipRate = 1.5 },
				func(c *Config) { c.TicksPerSecond = 0 },
				func(c *Config) { c.MaxPace = 0 },
				func(c *Config) { c.WinCondition = "SLOWEST" },
			}
			for _, mutate := range broken {
				cfg := baseConfig("http://localhost:9080")
				mutate(cfg)
				So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			}
		})
	})
}

func TestCourse(t *testing.T) {
	Convey("Given a course with three intermediate checkpoints", t, func() {
		course := NewCourse(3)
		oracle := geom.BlockOracle{}

		So(len(course.Zones), ShouldEqual, 5)
		So(course.Zones[0].Type, ShouldEqual, model.PortalStart)
		So(course.Zones[2].Type, ShouldEqual, model.PortalCheckpoint)
		So(course.Zones[4].Type, ShouldEqual, model.PortalEnd)
		So(course.Zones[4].Index, ShouldEqual, 40)

		Convey("Zone positions fall in their own zone only", func() {
			for i := range course.Zones {
				pos := course.At(i)
				for j, z := range course.Zones {
					So(oracle.Contains(pos, z.Box), ShouldEqual, i == j)
				}
				So(oracle.Contains(pos, course.Bounds), ShouldBeTrue)
			}
		})

		Convey("Corridor positions are inside the bounds and outside every zone", func() {
			for i := -1; i < len(course.Zones); i++ {
				pos := course.After(i)
				So(oracle.Contains(pos, course.Bounds), ShouldBeTrue)
				for _, z := range course.Zones {
					So(oracle.Contains(pos, z.Box), ShouldBeFalse)
				}
			}
		})

		Convey("A skipper passes its skipped zone in the corridor", func() {
			p := Plan{Player: uuid.New(), Arrivals: []int64{5, 10, 15, 20, 25}, Skipped: 2}
			So(positionAt(course, p, 1), ShouldResemble, course.After(-1))
			So(positionAt(course, p, 10), ShouldResemble, course.At(1))
			So(positionAt(course, p, 12), ShouldResemble, course.After(1))
			So(positionAt(course, p, 15), ShouldResemble, course.After(2))
			So(positionAt(course, p, 20), ShouldResemble, course.At(3))
			So(positionAt(course, p, 99), ShouldResemble, course.After(4))
		})
	})
}

func TestExpectedOrder(t *testing.T) {
	Convey("Given finished and unfinished plans", t, func() {
		early := Plan{Player: uuid.MustParse("00000000-0000-0000-0000-000000000003"), Arrivals: []int64{50, 60}, Skipped: noSkip}
		quick := Plan{Player: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Arrivals: []int64{1, 70}, Skipped: noSkip}
		tieA := Plan{Player: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Arrivals: []int64{1, 2, 3}, Skipped: 1}
		tieB := Plan{Player: uuid.MustParse("00000000-0000-0000-0000-000000000004"), Arrivals: []int64{1, 2, 3}, Skipped: 1}
		plans := []Plan{tieB, quick, tieA, early}

		Convey("First to finish orders by finish tick", func() {
			out := expectedOrder(plans, model.FirstToFinish)
			So(out[0].Player, ShouldEqual, early.Player)
			So(out[1].Player, ShouldEqual, quick.Player)
			So(out[2].Player, ShouldEqual, tieA.Player)
			So(out[3].Player, ShouldEqual, tieB.Player)
		})

		Convey("Fastest time orders by elapsed ticks", func() {
			out := expectedOrder(plans, model.FastestTime)
			So(out[0].Player, ShouldEqual, early.Player)
			So(out[1].Player, ShouldEqual, quick.Player)
		})

		Convey("Skippers are refused at every later zone", func() {
			So(expectedFails(plans, 3), ShouldEqual, 2)
		})
	})
}

func TestRun(t *testing.T) {
	_ = logger.InitWith(logger.Options{Writer: io.Discard})

	Convey("Given a running service", t, func() {
		srv := newTarget(t)
		ctx := context.Background()

		Convey("A race completes and its ranking verifies", func() {
			cfg := baseConfig(srv.URL)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "report.json")

			report, err := Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(len(report.Standings), ShouldEqual, 12)
			So(report.Stats.FinishMessages, ShouldEqual, 12-report.Stats.Skippers)
			So(report.Stats.TicksSent, ShouldBeGreaterThan, 0)

			_, statErr := os.Stat(cfg.OutputFile)
			So(statErr, ShouldBeNil)

			Convey("A second run replaces the course and clears the old players", func() {
				again := baseConfig(srv.URL)
				again.WinCondition = model.FastestTime
				report, err := Run(ctx, again)
				So(err, ShouldBeNil)
				So(len(report.Standings), ShouldEqual, 12)
				for _, st := range report.Standings {
					found := false
					for _, p := range report.Plans {
						found = found || p.Player == st.Player
					}
					So(found, ShouldBeTrue)
				}
			})
		})

		Convey("An unknown event type fails the course setup", func() {
			cfg := baseConfig(srv.URL)
			cfg.Event = "boat"
			_, err := Run(ctx, cfg)
			So(errors.Is(err, ErrRequest), ShouldBeTrue)
		})
	})

	Convey("Given no service", t, func() {
		cfg := baseConfig("http://127.0.0.1:1")
		cfg.Timeout = time.Second
		_, err := Run(context.Background(), cfg)
		So(err, ShouldNotBeNil)
	})
}
