package model

import (
	"fmt"
	"strings"

	"github.com/okian/waypoint/internal/domain/geom"
)

// Overlay copies *src into *dst when src is set.
func Overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// VariantPatch carries the variant fields a modification supplies.
type VariantPatch struct {
	FailMessage  *string       `json:"fail_message,omitempty"`
	WinCondition *WinCondition `json:"win_condition,omitempty"`
	Start        *geom.Point   `json:"start,omitempty"`
	End          *geom.Point   `json:"end,omitempty"`
}

// Apply merges the set fields onto v.
func (p VariantPatch) Apply(v Variant) Variant {
	Overlay(&v.FailMessage, p.FailMessage)
	Overlay(&v.WinCondition, p.WinCondition)
	Overlay(&v.Start, p.Start)
	Overlay(&v.End, p.End)
	return v
}

// CheckpointPatch carries the checkpoint fields a modification supplies.
type CheckpointPatch struct {
	Start          *geom.Point `json:"start,omitempty"`
	End            *geom.Point `json:"end,omitempty"`
	Respawn        *geom.Point `json:"respawn,omitempty"`
	Type           *PortalType `json:"type,omitempty"`
	Sound          *string     `json:"sound,omitempty"`
	SuccessMessage *string     `json:"success_message,omitempty"`
}

// Apply merges the set fields onto c. The index is never patched.
func (p CheckpointPatch) Apply(c Checkpoint) Checkpoint {
	Overlay(&c.Start, p.Start)
	Overlay(&c.End, p.End)
	Overlay(&c.Respawn, p.Respawn)
	Overlay(&c.Type, p.Type)
	Overlay(&c.Sound, p.Sound)
	Overlay(&c.SuccessMessage, p.SuccessMessage)
	return c
}

// ParseVariantField turns a command's field/value pair into a patch.
func ParseVariantField(field, value string) (VariantPatch, error) {
	var p VariantPatch
	switch normalizeField(field) {
	case "fail_message":
		p.FailMessage = Ptr(value)
	case "win_condition":
		w, err := ParseWinCondition(value)
		if err != nil {
			return p, err
		}
		p.WinCondition = &w
	case "start":
		pt, err := parsePoint(value)
		if err != nil {
			return p, err
		}
		p.Start = &pt
	case "end":
		pt, err := parsePoint(value)
		if err != nil {
			return p, err
		}
		p.End = &pt
	default:
		return p, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return p, nil
}

// ParseCheckpointField turns a command's field/value pair into a patch.
func ParseCheckpointField(field, value string) (CheckpointPatch, error) {
	var p CheckpointPatch
	switch normalizeField(field) {
	case "start", "end", "respawn":
		pt, err := parsePoint(value)
		if err != nil {
			return p, err
		}
		switch normalizeField(field) {
		case "start":
			p.Start = &pt
		case "end":
			p.End = &pt
		default:
			p.Respawn = &pt
		}
	case "type":
		t, err := ParsePortalType(value)
		if err != nil {
			return p, err
		}
		p.Type = &t
	case "sound":
		if strings.TrimSpace(value) == "" {
			return p, fmt.Errorf("%w: empty sound", ErrInvalidValue)
		}
		p.Sound = Ptr(strings.TrimSpace(value))
	case "success_message", "message":
		p.SuccessMessage = Ptr(value)
	default:
		return p, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return p, nil
}

// fail-message, failMessage and FAIL_MESSAGE all read as fail_message.
func normalizeField(f string) string {
	f = strings.TrimSpace(f)
	var b strings.Builder
	for i, r := range f {
		switch {
		case r == '-':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && f[i-1] >= 'a' && f[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parsePoint(s string) (geom.Point, error) {
	p, err := geom.ParsePoint(s)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return p, nil
}
