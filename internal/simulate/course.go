package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/pkg/logger"
)

// Course layout constants. Zones sit on the x axis, zoneSpacing blocks
// apart, and the corridor between two zones belongs to no zone.
const (
	zoneSpacing  = 20
	indexStep    = 10
	corridorGap  = zoneSpacing / 2
	boundsMargin = 10
	zoneHeight   = 2
)

// Zone is one portal of the simulated course.
type Zone struct {
	Index int              `json:"index"`
	Type  model.PortalType `json:"type"`
	Box   geom.Box         `json:"box"`
}

// Course is the layout a run races through: a start, the intermediate
// checkpoints and an end.
type Course struct {
	Zones  []Zone   `json:"zones"`
	Bounds geom.Box `json:"bounds"`
}

// NewCourse lays out checkpoints intermediate zones between start and end.
func NewCourse(checkpoints int) Course {
	zones := make([]Zone, 0, checkpoints+2)
	for i := 0; i < checkpoints+2; i++ {
		typ := model.PortalCheckpoint
		switch i {
		case 0:
			typ = model.PortalStart
		case checkpoints + 1:
			typ = model.PortalEnd
		}
		x := i * zoneSpacing
		zones = append(zones, Zone{
			Index: i * indexStep,
			Type:  typ,
			Box:   geom.Box{A: geom.Point{X: x, Y: 0, Z: -1}, B: geom.Point{X: x, Y: zoneHeight, Z: 1}},
		})
	}
	last := (checkpoints + 1) * zoneSpacing
	return Course{
		Zones: zones,
		Bounds: geom.Box{
			A: geom.Point{X: -boundsMargin, Y: -boundsMargin, Z: -boundsMargin},
			B: geom.Point{X: last + boundsMargin, Y: boundsMargin, Z: boundsMargin},
		},
	}
}

// At is the position of a player standing in zone i.
func (c Course) At(i int) geom.Vec3 {
	return geom.Vec3{X: float64(c.Zones[i].Box.A.X) + 0.5, Y: 0.5, Z: 0.5}
}

// After is the corridor position past zone i. A negative i is the lobby in
// front of the start.
func (c Course) After(i int) geom.Vec3 {
	if i < 0 {
		return geom.Vec3{X: -corridorGap / 2, Y: 0.5, Z: 0.5}
	}
	return geom.Vec3{X: float64(c.Zones[i].Box.A.X+corridorGap) + 0.5, Y: 0.5, Z: 0.5}
}

// buildCourse replaces cfg.Variant with a fresh variant laid out as course.
func buildCourse(ctx context.Context, client *Client, cfg *Config, course Course) error {
	log := logger.Get()
	base := "/events/" + url.PathEscape(cfg.Event) + "/variants"
	variant := base + "/" + url.PathEscape(cfg.Variant)

	if env, err := client.do(ctx, http.MethodDelete, variant, nil, nil); err != nil {
		if !errors.Is(err, ErrRequest) || env.Code != codeNotFound {
			return fmt.Errorf("remove previous variant: %w", err)
		}
		log.Debug(ctx, "no previous variant to remove", logger.String("variant", cfg.Variant))
	}

	env, err := client.do(ctx, http.MethodPost, base, map[string]any{
		"name":  cfg.Variant,
		"start": course.Bounds.A,
		"end":   course.Bounds.B,
	}, nil)
	if err != nil {
		return fmt.Errorf("create variant: %w", err)
	}
	log.Info(ctx, env.Message)

	if cfg.WinCondition != "" {
		env, err = client.do(ctx, http.MethodPatch, variant, map[string]string{
			"field": "win_condition",
			"value": string(cfg.WinCondition),
		}, nil)
		if err != nil {
			return fmt.Errorf("set win condition: %w", err)
		}
		log.Info(ctx, env.Message)
	}

	for _, z := range course.Zones {
		env, err := client.do(ctx, http.MethodPost, variant+"/checkpoints", map[string]any{
			"index": z.Index,
			"type":  z.Type,
			"start": z.Box.A,
			"end":   z.Box.B,
		}, nil)
		if err != nil {
			return fmt.Errorf("add checkpoint %d: %w", z.Index, err)
		}
		log.Debug(ctx, env.Message)
	}
	log.Info(ctx, "course built",
		logger.String("variant", cfg.Variant),
		logger.Int("zones", len(course.Zones)))
	return nil
}
