// Package geom holds block coordinates, boxes and the zone containment oracle.
package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidPoint reports a coordinate that is not exactly three integers.
var ErrInvalidPoint = errors.New("invalid point")

// Point is an integer block coordinate. It is persisted as [x, y, z].
type Point struct {
	X, Y, Z int
}

// Origin is the zero point.
var Origin = Point{}

func (p Point) String() string {
	return fmt.Sprintf("%d %d %d", p.X, p.Y, p.Z)
}

// MarshalJSON encodes the point as a 3-integer array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{p.X, p.Y, p.Z})
}

// UnmarshalJSON accepts exactly three integers.
func (p *Point) UnmarshalJSON(b []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("%w: want 3 coordinates, got %d", ErrInvalidPoint, len(raw))
	}
	var c [3]int
	for i, n := range raw {
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("%w: coordinate %d: %w", ErrInvalidPoint, i, err)
		}
		c[i] = int(v)
	}
	*p = Point{X: c[0], Y: c[1], Z: c[2]}
	return nil
}

// ParsePoint reads "x y z" or "x,y,z".
func ParsePoint(s string) (Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 3 {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
	}
	var c [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Point{}, fmt.Errorf("%w: %q", ErrInvalidPoint, s)
		}
		c[i] = v
	}
	return Point{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Box is an axis-aligned region spanned by two corners in any order.
type Box struct {
	A, B Point
}

// Contains reports whether block p lies inside the box, corners inclusive.
func (b Box) Contains(p Point) bool {
	return between(p.X, b.A.X, b.B.X) &&
		between(p.Y, b.A.Y, b.B.Y) &&
		between(p.Z, b.A.Z, b.B.Z)
}

func between(v, a, b int) bool {
	return v >= min(a, b) && v <= max(a, b)
}

// Vec3 is an entity position in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Block returns the block the position stands in.
func (v Vec3) Block() Point {
	return Point{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Oracle answers zone containment for entity positions.
type Oracle interface {
	Contains(pos Vec3, box Box) bool
}

// BlockOracle tests the block an entity stands in against the box.
type BlockOracle struct{}

// Contains implements Oracle.
func (BlockOracle) Contains(pos Vec3, box Box) bool {
	return box.Contains(pos.Block())
}
