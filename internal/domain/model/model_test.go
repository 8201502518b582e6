package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/waypoint/internal/domain/geom"
	"github.com/okian/waypoint/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func race() model.Variant {
	v := model.NewVariant("race1", geom.Box{A: geom.Point{X: -10, Y: 0, Z: -10}, B: geom.Point{X: 100, Y: 10, Z: 10}})
	v.Checkpoints = []model.Checkpoint{
		model.NewCheckpoint(20, model.PortalEnd, geom.Point{X: 40}, geom.Point{X: 41, Y: 2, Z: 1}),
		model.NewCheckpoint(0, model.PortalStart, geom.Point{}, geom.Point{X: 1, Y: 2, Z: 1}),
		model.NewCheckpoint(10, model.PortalCheckpoint, geom.Point{X: 20}, geom.Point{X: 21, Y: 2, Z: 1}),
	}
	return v
}

func TestVariant(t *testing.T) {
	convey.Convey("Given a variant with checkpoints inserted out of order", t, func() {
		v := race()

		convey.Convey("Then defaults are applied", func() {
			convey.So(v.FailMessage, convey.ShouldEqual, model.DefaultFailMessage)
			convey.So(v.WinCondition, convey.ShouldEqual, model.FirstToFinish)
			convey.So(v.Checkpoints[0].Sound, convey.ShouldEqual, model.DefaultSound)
			convey.So(v.Checkpoints[0].Respawn, convey.ShouldResemble, v.Checkpoints[0].Start)
		})

		convey.Convey("Then ordering is by index, not insertion", func() {
			ordered := v.Ordered()
			convey.So(ordered[0].Index, convey.ShouldEqual, 0)
			convey.So(ordered[1].Index, convey.ShouldEqual, 10)
			convey.So(ordered[2].Index, convey.ShouldEqual, 20)
			convey.So(v.Checkpoints[0].Index, convey.ShouldEqual, 20)
		})

		convey.Convey("Then the next and penultimate indices are found", func() {
			next, ok := v.NextIndex(0)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(next, convey.ShouldEqual, 10)

			_, ok = v.NextIndex(20)
			convey.So(ok, convey.ShouldBeFalse)

			pen, ok := v.Penultimate()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(pen, convey.ShouldEqual, 10)
		})

		convey.Convey("Then a single checkpoint has no penultimate", func() {
			v.Checkpoints = v.Checkpoints[:1]
			_, ok := v.Penultimate()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then clones do not share checkpoints", func() {
			c := v.Clone()
			c.Checkpoints[0].Sound = "other"
			convey.So(v.Checkpoints[0].Sound, convey.ShouldEqual, model.DefaultSound)
		})
	})
}

func TestVariantJSON(t *testing.T) {
	convey.Convey("Given a variant", t, func() {
		v := race()
		v.WinCondition = model.FastestTime

		convey.Convey("It round-trips through its persisted shape", func() {
			b, err := json.Marshal(v)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldContainSubstring, `"win_condition":"FASTEST_TIME"`)
			convey.So(string(b), convey.ShouldContainSubstring, `"start":[-10,0,-10]`)

			var back model.Variant
			convey.So(json.Unmarshal(b, &back), convey.ShouldBeNil)
			convey.So(back, convey.ShouldResemble, v)
		})

		convey.Convey("It reads enums in any case", func() {
			var back model.Variant
			err := json.Unmarshal([]byte(`{"variant":"x","win_condition":"fastest_time","checkpoints":[{"index":0,"type":"start"}]}`), &back)
			convey.So(err, convey.ShouldBeNil)
			convey.So(back.WinCondition, convey.ShouldEqual, model.FastestTime)
			convey.So(back.Checkpoints[0].Type, convey.ShouldEqual, model.PortalStart)
		})

		convey.Convey("It rejects unknown enum spellings", func() {
			var back model.Variant
			err := json.Unmarshal([]byte(`{"variant":"x","win_condition":"SLOWEST"}`), &back)
			convey.So(errors.Is(err, model.ErrInvalidValue), convey.ShouldBeTrue)
		})
	})
}

func TestProgress(t *testing.T) {
	convey.Convey("Given a default progress record", t, func() {
		p := model.NewProgress("race1")

		convey.So(p.FinishTick, convey.ShouldEqual, -1)
		convey.So(p.HasCheckpoint(), convey.ShouldBeFalse)
		convey.So(p.IsParticipating(), convey.ShouldBeFalse)
		convey.So(p.Last(), convey.ShouldEqual, -1)

		convey.Convey("It round-trips with its persisted field names", func() {
			p.LastCheckpoint = model.Ptr(10)
			p.Participating = model.Ptr(true)
			p.StartTick = 5

			b, err := json.Marshal(p)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual,
				`{"variant":"race1","checkpoints":10,"isFinished":false,"startTicks":5,"finishTicks":-1,"isParticipating":true}`)

			var back model.Progress
			convey.So(json.Unmarshal(b, &back), convey.ShouldBeNil)
			convey.So(back, convey.ShouldResemble, p)
			convey.So(back.Running(), convey.ShouldBeTrue)
		})

		convey.Convey("Clones do not share pointers", func() {
			p.LastCheckpoint = model.Ptr(0)
			c := p.Clone()
			*c.LastCheckpoint = 10
			convey.So(*p.LastCheckpoint, convey.ShouldEqual, 0)
		})
	})
}

func TestPatches(t *testing.T) {
	convey.Convey("Given a variant patch with only some fields", t, func() {
		v := race()
		patch, err := model.ParseVariantField("win_condition", "fastest_time")
		convey.So(err, convey.ShouldBeNil)

		out := patch.Apply(v)

		convey.Convey("Only the supplied field changes", func() {
			convey.So(out.WinCondition, convey.ShouldEqual, model.FastestTime)
			convey.So(out.FailMessage, convey.ShouldEqual, v.FailMessage)
			convey.So(out.Start, convey.ShouldResemble, v.Start)
		})
	})

	convey.Convey("Given field/value pairs for variants", t, func() {
		p, err := model.ParseVariantField("failMessage", "Wrong way")
		convey.So(err, convey.ShouldBeNil)
		convey.So(*p.FailMessage, convey.ShouldEqual, "Wrong way")

		p, err = model.ParseVariantField("start", "1,2,3")
		convey.So(err, convey.ShouldBeNil)
		convey.So(*p.Start, convey.ShouldResemble, geom.Point{X: 1, Y: 2, Z: 3})

		_, err = model.ParseVariantField("colour", "red")
		convey.So(errors.Is(err, model.ErrInvalidField), convey.ShouldBeTrue)

		_, err = model.ParseVariantField("end", "1 2")
		convey.So(errors.Is(err, model.ErrInvalidValue), convey.ShouldBeTrue)
	})

	convey.Convey("Given field/value pairs for checkpoints", t, func() {
		c := model.NewCheckpoint(10, model.PortalCheckpoint, geom.Point{}, geom.Point{X: 1})

		p, err := model.ParseCheckpointField("respawn", "5 6 7")
		convey.So(err, convey.ShouldBeNil)
		out := p.Apply(c)
		convey.So(out.Respawn, convey.ShouldResemble, geom.Point{X: 5, Y: 6, Z: 7})
		convey.So(out.Start, convey.ShouldResemble, c.Start)
		convey.So(out.Index, convey.ShouldEqual, 10)

		p, err = model.ParseCheckpointField("type", "end")
		convey.So(err, convey.ShouldBeNil)
		convey.So(*p.Type, convey.ShouldEqual, model.PortalEnd)

		p, err = model.ParseCheckpointField("success-message", "Nice")
		convey.So(err, convey.ShouldBeNil)
		convey.So(*p.SuccessMessage, convey.ShouldEqual, "Nice")

		p, err = model.ParseCheckpointField("message", "Well done")
		convey.So(err, convey.ShouldBeNil)
		convey.So(*p.SuccessMessage, convey.ShouldEqual, "Well done")

		_, err = model.ParseCheckpointField("type", "portal")
		convey.So(errors.Is(err, model.ErrInvalidValue), convey.ShouldBeTrue)

		_, err = model.ParseCheckpointField("index", "3")
		convey.So(errors.Is(err, model.ErrInvalidField), convey.ShouldBeTrue)
	})
}
