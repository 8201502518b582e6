package repository

import (
	"encoding/json"
	"fmt"

	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
)

// Wire shapes with pointer fields so missing keys can be told apart from zero
// values. Every field of a variant and checkpoint is required.

type variantWire struct {
	Variant      *string             `json:"variant"`
	FailMessage  *string             `json:"fail_message"`
	Checkpoints  *[]checkpointWire   `json:"checkpoints"`
	WinCondition *model.WinCondition `json:"win_condition"`
	Start        *geom.Point         `json:"start"`
	End          *geom.Point         `json:"end"`
}

type checkpointWire struct {
	Start          *geom.Point       `json:"start"`
	End            *geom.Point       `json:"end"`
	Respawn        *geom.Point       `json:"respawn"`
	Index          *int              `json:"index"`
	Type           *model.PortalType `json:"type"`
	Sound          *string           `json:"sound"`
	SuccessMessage *string           `json:"success_message"`
}

type progressWire struct {
	Variant         *string `json:"variant"`
	Checkpoints     *int    `json:"checkpoints"`
	IsFinished      *bool   `json:"isFinished"`
	StartTicks      *int64  `json:"startTicks"`
	FinishTicks     *int64  `json:"finishTicks"`
	IsParticipating *bool   `json:"isParticipating"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

func decodeVariants(doc []byte) ([]model.Variant, error) {
	var raw []variantWire
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	out := make([]model.Variant, 0, len(raw))
	names := make(map[string]struct{}, len(raw))
	for i, w := range raw {
		switch {
		case w.Variant == nil || *w.Variant == "":
			return nil, malformed("variant %d: missing name", i)
		case w.FailMessage == nil:
			return nil, malformed("variant %q: missing fail_message", *w.Variant)
		case w.Checkpoints == nil:
			return nil, malformed("variant %q: missing checkpoints", *w.Variant)
		case w.WinCondition == nil:
			return nil, malformed("variant %q: missing win_condition", *w.Variant)
		case w.Start == nil || w.End == nil:
			return nil, malformed("variant %q: missing bounds", *w.Variant)
		}
		if _, dup := names[*w.Variant]; dup {
			return nil, malformed("duplicate variant %q", *w.Variant)
		}
		names[*w.Variant] = struct{}{}

		v := model.Variant{
			Name:         *w.Variant,
			FailMessage:  *w.FailMessage,
			WinCondition: *w.WinCondition,
			Start:        *w.Start,
			End:          *w.End,
			Checkpoints:  make([]model.Checkpoint, 0, len(*w.Checkpoints)),
		}
		for j, cw := range *w.Checkpoints {
			c, err := decodeCheckpoint(cw)
			if err != nil {
				return nil, fmt.Errorf("variant %q checkpoint %d: %w", v.Name, j, err)
			}
			if _, dup := v.Checkpoint(c.Index); dup {
				return nil, malformed("variant %q: duplicate checkpoint index %d", v.Name, c.Index)
			}
			v.Checkpoints = append(v.Checkpoints, c)
		}
		v.Checkpoints = v.Ordered()
		out = append(out, v)
	}
	return out, nil
}

func decodeCheckpoint(w checkpointWire) (model.Checkpoint, error) {
	switch {
	case w.Start == nil, w.End == nil, w.Respawn == nil:
		return model.Checkpoint{}, malformed("missing position")
	case w.Index == nil:
		return model.Checkpoint{}, malformed("missing index")
	case *w.Index < 0:
		return model.Checkpoint{}, malformed("negative index %d", *w.Index)
	case w.Type == nil:
		return model.Checkpoint{}, malformed("missing type")
	case w.Sound == nil:
		return model.Checkpoint{}, malformed("missing sound")
	case w.SuccessMessage == nil:
		return model.Checkpoint{}, malformed("missing success_message")
	}
	return model.Checkpoint{
		Start:          *w.Start,
		End:            *w.End,
		Respawn:        *w.Respawn,
		Index:          *w.Index,
		Type:           *w.Type,
		Sound:          *w.Sound,
		SuccessMessage: *w.SuccessMessage,
	}, nil
}

func encodeVariants(vs []model.Variant) ([]byte, error) {
	if vs == nil {
		vs = []model.Variant{}
	}
	for i := range vs {
		if vs[i].Checkpoints == nil {
			vs[i].Checkpoints = []model.Checkpoint{}
		}
	}
	return json.Marshal(vs)
}

// decodeProgress reads one player's document. The last checkpoint and the
// participation flag may be null or absent.
func decodeProgress(doc []byte) ([]model.Progress, error) {
	var raw []progressWire
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	out := make([]model.Progress, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, w := range raw {
		switch {
		case w.Variant == nil || *w.Variant == "":
			return nil, malformed("record %d: missing variant", i)
		case w.IsFinished == nil:
			return nil, malformed("record %q: missing isFinished", *w.Variant)
		case w.StartTicks == nil || w.FinishTicks == nil:
			return nil, malformed("record %q: missing ticks", *w.Variant)
		}
		if _, dup := seen[*w.Variant]; dup {
			return nil, malformed("duplicate record for variant %q", *w.Variant)
		}
		seen[*w.Variant] = struct{}{}

		out = append(out, model.Progress{
			Variant:        *w.Variant,
			LastCheckpoint: w.Checkpoints,
			Finished:       *w.IsFinished,
			StartTick:      *w.StartTicks,
			FinishTick:     *w.FinishTicks,
			Participating:  w.IsParticipating,
		})
	}
	return out, nil
}

func encodeProgress(rs []model.Progress) ([]byte, error) {
	if rs == nil {
		rs = []model.Progress{}
	}
	return json.Marshal(rs)
}
