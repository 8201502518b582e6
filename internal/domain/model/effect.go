package model

import "github.com/google/uuid"

// EffectKind names a presentation request.
type EffectKind string

const (
	EffectMessage  EffectKind = "message"
	EffectSound    EffectKind = "sound"
	EffectParticle EffectKind = "particle"
	EffectElapsed  EffectKind = "elapsed"
)

// Effect is a presentation request produced by a tick. The engine never
// renders anything itself.
type Effect struct {
	Event    string     `json:"event"`
	Variant  string     `json:"variant"`
	Player   uuid.UUID  `json:"player"`
	Kind     EffectKind `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Sound    string     `json:"sound,omitempty"`
	Particle string     `json:"particle,omitempty"`
	Overlay  bool       `json:"overlay,omitempty"`
	Seconds  int64      `json:"seconds,omitempty"`
}

// Outcome is the result of one checkpoint zone evaluation.
type Outcome int

const (
	Same Outcome = iota
	GoodPath
	NotGoodPath
)

func (o Outcome) String() string {
	switch o {
	case GoodPath:
		return "good_path"
	case NotGoodPath:
		return "not_good_path"
	default:
		return "same"
	}
}

// Feedback is the human-readable result of a command.
type Feedback struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Ok builds a successful feedback line.
func Ok(msg string) Feedback { return Feedback{OK: true, Message: msg} }

// Fail builds a failed feedback line.
func Fail(msg string) Feedback { return Feedback{OK: false, Message: msg} }
