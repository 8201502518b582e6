// Package model contains the checkpoint event models passed between layers.
package model

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/waypoint/internal/domain/geom"
)

// Defaults applied to new variants and checkpoints.
const (
	DefaultFailMessage    = "Is not the correct portal"
	DefaultSound          = "entity.experience_orb.pickup"
	DefaultSuccessMessage = "Continue to the next checkpoint!"
	SuccessParticle       = "happy_villager"
)

// PortalType classifies a checkpoint within its variant.
type PortalType string

const (
	PortalStart      PortalType = "START"
	PortalCheckpoint PortalType = "CHECKPOINT"
	PortalEnd        PortalType = "END"
)

// ParsePortalType accepts any case.
func ParsePortalType(s string) (PortalType, error) {
	switch t := PortalType(strings.ToUpper(strings.TrimSpace(s))); t {
	case PortalStart, PortalCheckpoint, PortalEnd:
		return t, nil
	}
	return "", fmt.Errorf("%w: portal type %q", ErrInvalidValue, s)
}

// UnmarshalText reads the same spellings as ParsePortalType.
func (t *PortalType) UnmarshalText(b []byte) error {
	v, err := ParsePortalType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// WinCondition decides how finishers are ordered.
type WinCondition string

const (
	FirstToFinish WinCondition = "FIRST_TO_FINISH"
	FastestTime   WinCondition = "FASTEST_TIME"
)

// ParseWinCondition accepts any case.
func ParseWinCondition(s string) (WinCondition, error) {
	switch w := WinCondition(strings.ToUpper(strings.TrimSpace(s))); w {
	case FirstToFinish, FastestTime:
		return w, nil
	}
	return "", fmt.Errorf("%w: win condition %q", ErrInvalidValue, s)
}

// UnmarshalText reads the same spellings as ParseWinCondition.
func (w *WinCondition) UnmarshalText(b []byte) error {
	v, err := ParseWinCondition(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Checkpoint is one zone of a variant.
type Checkpoint struct {
	Start          geom.Point `json:"start"`
	End            geom.Point `json:"end"`
	Respawn        geom.Point `json:"respawn"`
	Index          int        `json:"index"`
	Type           PortalType `json:"type"`
	Sound          string     `json:"sound"`
	SuccessMessage string     `json:"success_message"`
}

// NewCheckpoint builds a checkpoint with default sound, message and respawn.
func NewCheckpoint(index int, typ PortalType, start, end geom.Point) Checkpoint {
	return Checkpoint{
		Start:          start,
		End:            end,
		Respawn:        start,
		Index:          index,
		Type:           typ,
		Sound:          DefaultSound,
		SuccessMessage: DefaultSuccessMessage,
	}
}

// Zone is the entry box of the checkpoint.
func (c Checkpoint) Zone() geom.Box {
	return geom.Box{A: c.Start, B: c.End}
}

// Variant is one configured course of an event type.
type Variant struct {
	Name         string       `json:"variant"`
	FailMessage  string       `json:"fail_message"`
	Checkpoints  []Checkpoint `json:"checkpoints"` // ascending index once stored
	WinCondition WinCondition `json:"win_condition"`
	Start        geom.Point   `json:"start"`
	End          geom.Point   `json:"end"`
}

// NewVariant builds a variant with default messaging and no checkpoints.
func NewVariant(name string, bounds geom.Box) Variant {
	return Variant{
		Name:         name,
		FailMessage:  DefaultFailMessage,
		Checkpoints:  []Checkpoint{},
		WinCondition: FirstToFinish,
		Start:        bounds.A,
		End:          bounds.B,
	}
}

// Bounds is the outer box; leaving it forces a leave.
func (v Variant) Bounds() geom.Box {
	return geom.Box{A: v.Start, B: v.End}
}

// Clone returns a copy that shares no checkpoint storage with v.
func (v Variant) Clone() Variant {
	v.Checkpoints = slices.Clone(v.Checkpoints)
	if v.Checkpoints == nil {
		v.Checkpoints = []Checkpoint{}
	}
	return v
}

// Ordered returns the checkpoints by ascending index.
func (v Variant) Ordered() []Checkpoint {
	out := slices.Clone(v.Checkpoints)
	slices.SortStableFunc(out, func(a, b Checkpoint) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// Checkpoint returns the position of the checkpoint with index in v.Checkpoints.
func (v Variant) Checkpoint(index int) (int, bool) {
	for i, c := range v.Checkpoints {
		if c.Index == index {
			return i, true
		}
	}
	return -1, false
}

// NextIndex is the smallest configured index greater than after.
func (v Variant) NextIndex(after int) (int, bool) {
	next, found := 0, false
	for _, c := range v.Checkpoints {
		if c.Index > after && (!found || c.Index < next) {
			next, found = c.Index, true
		}
	}
	return next, found
}

// Penultimate is the second-highest configured index. It does not exist with
// fewer than two checkpoints.
func (v Variant) Penultimate() (int, bool) {
	if len(v.Checkpoints) < 2 {
		return 0, false
	}
	ordered := v.Ordered()
	return ordered[len(ordered)-2].Index, true
}
