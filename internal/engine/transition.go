package engine

import "github.com/okian/waypoint/internal/domain/model"

// transition evaluates entering cp for rec at tick. It returns the outcome
// and, when the record must change, the updated record. It never mutates rec.
func transition(v model.Variant, cp model.Checkpoint, rec model.Progress, tick int64) (model.Outcome, *model.Progress) {
	switch cp.Type {
	case model.PortalStart:
		return enterStart(cp, rec, tick)
	case model.PortalCheckpoint:
		return enterCheckpoint(v, cp, rec)
	case model.PortalEnd:
		return enterEnd(v, cp, rec, tick)
	}
	return model.Same, nil
}

// Start (re)initialises anyone not currently running it.
func enterStart(cp model.Checkpoint, rec model.Progress, tick int64) (model.Outcome, *model.Progress) {
	if rec.HasCheckpoint() && !rec.Finished && rec.IsParticipating() {
		return model.Same, nil
	}
	next := rec.Clone()
	next.Participating = model.Ptr(true)
	next.Finished = false
	next.FinishTick = -1
	next.LastCheckpoint = model.Ptr(cp.Index)
	next.StartTick = tick
	return model.GoodPath, &next
}

// Checkpoints must be taken strictly in ascending index order.
func enterCheckpoint(v model.Variant, cp model.Checkpoint, rec model.Progress) (model.Outcome, *model.Progress) {
	if !rec.HasCheckpoint() || rec.Finished || cp.Index == rec.Last() {
		return model.Same, nil
	}
	nearest, ok := v.NextIndex(rec.Last())
	if !ok {
		return model.Same, nil
	}
	if cp.Index != nearest {
		return model.NotGoodPath, nil
	}
	next := rec.Clone()
	next.LastCheckpoint = model.Ptr(cp.Index)
	return model.GoodPath, &next
}

// End is valid only from the penultimate checkpoint.
func enterEnd(v model.Variant, cp model.Checkpoint, rec model.Progress, tick int64) (model.Outcome, *model.Progress) {
	if !rec.HasCheckpoint() || rec.Finished {
		return model.Same, nil
	}
	penultimate, ok := v.Penultimate()
	if !ok || rec.Last() != penultimate {
		return model.NotGoodPath, nil
	}
	next := rec.Clone()
	next.Finished = true
	next.FinishTick = tick
	next.LastCheckpoint = model.Ptr(cp.Index)
	return model.GoodPath, &next
}
