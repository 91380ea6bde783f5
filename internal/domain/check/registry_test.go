package check_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type stubCheck struct {
	id     string
	types  []model.EventType
	amount float64
	calls  *[]string
	panics bool
}

func (s *stubCheck) ID() string                              { return s.id }
func (s *stubCheck) InterestedEventTypes() []model.EventType { return s.types }
func (s *stubCheck) Evaluate(_ model.ParticipantEvent, v check.View) model.ScoreDelta {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.id)
	}
	if s.panics {
		panic("boom")
	}
	n := check.ScratchOf(v, func() *int { return new(int) })
	*n++
	return model.ScoreDelta{CheckID: "spoofed", Amount: s.amount, Confidence: 2}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a registry with three checks", t, func() {
		var calls []string
		r := check.NewRegistry()
		So(r.Register(&stubCheck{id: "a", types: []model.EventType{model.ActionPerformed}, amount: 1, calls: &calls}), ShouldBeNil)
		So(r.Register(&stubCheck{id: "b", types: []model.EventType{model.Heartbeat}, amount: 1, calls: &calls}), ShouldBeNil)
		So(r.Register(&stubCheck{id: "c", types: []model.EventType{model.ActionPerformed}, amount: 0, calls: &calls}), ShouldBeNil)
		p := newParticipant()

		Convey("When an action is dispatched", func() {
			deltas := r.Dispatch(ctx, model.ParticipantEvent{Type: model.ActionPerformed}, p)

			Convey("Then only interested checks run, in registration order", func() {
				So(calls, ShouldResemble, []string{"a", "c"})
			})

			Convey("Then zero deltas are dropped and the check id is authoritative", func() {
				So(len(deltas), ShouldEqual, 1)
				So(deltas[0].CheckID, ShouldEqual, "a")
				So(deltas[0].Confidence, ShouldEqual, 1)
			})

			Convey("Then the registry is frozen", func() {
				err := r.Register(&stubCheck{id: "late"})
				So(errors.Is(err, check.ErrRegistryFrozen), ShouldBeTrue)
			})
		})

		Convey("When a duplicate id is registered", func() {
			err := r.Register(&stubCheck{id: "a"})
			So(errors.Is(err, check.ErrDuplicateCheck), ShouldBeTrue)
		})

		Convey("When checks share a participant", func() {
			r.Dispatch(ctx, model.ParticipantEvent{Type: model.ActionPerformed}, p)
			r.Dispatch(ctx, model.ParticipantEvent{Type: model.ActionPerformed}, p)

			Convey("Then each check sees only its own scratch", func() {
				So(*p.ViewFor("a").Scratch().(*int), ShouldEqual, 2)
				So(*p.ViewFor("c").Scratch().(*int), ShouldEqual, 2)
				So(p.ViewFor("b").Scratch(), ShouldBeNil)
			})
		})

		Convey("When listing checks", func() {
			So(len(r.Checks()), ShouldEqual, 3)
			So(r.Checks()[2].ID(), ShouldEqual, "c")
		})
	})

	Convey("Given misbehaving checks", t, func() {
		r := check.NewRegistry()
		_ = r.Register(&stubCheck{id: "panics", types: []model.EventType{model.ActionPerformed}, panics: true})
		_ = r.Register(&stubCheck{id: "nan", types: []model.EventType{model.ActionPerformed}, amount: math.NaN()})
		_ = r.Register(&stubCheck{id: "ok", types: []model.EventType{model.ActionPerformed}, amount: 2})
		r.Freeze()

		deltas := r.Dispatch(ctx, model.ParticipantEvent{Type: model.ActionPerformed}, newParticipant())

		Convey("Then they contribute nothing and the others still run", func() {
			So(len(deltas), ShouldEqual, 1)
			So(deltas[0].CheckID, ShouldEqual, "ok")
		})
	})
}

func TestBuildRegistry(t *testing.T) {
	Convey("Given the default checks configuration", t, func() {
		cfg := config.New().Checks

		Convey("When all checks are enabled", func() {
			r, err := check.BuildRegistry(cfg)

			Convey("Then they are registered in configuration order and frozen", func() {
				So(err, ShouldBeNil)
				So(r.Frozen(), ShouldBeTrue)
				ids := []string{}
				for _, c := range r.Checks() {
					ids = append(ids, c.ID())
				}
				So(ids, ShouldResemble, cfg.Order())
			})
		})

		Convey("When a check is disabled", func() {
			cfg.Duplication.Enabled = false
			r, err := check.BuildRegistry(cfg)
			So(err, ShouldBeNil)
			So(len(r.Checks()), ShouldEqual, 3)
		})

		Convey("When an unknown id is built", func() {
			_, err := check.Build("vision", config.CheckConfig{})
			So(errors.Is(err, check.ErrUnknownCheck), ShouldBeTrue)
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given interval statistics", t, func() {
		iv := check.IntervalsMillis(nil, []int64{0, 2e8, 4e8, 7e8})
		So(iv, ShouldResemble, []float64{200, 200, 300})
		So(check.Mean(iv), ShouldAlmostEqual, 233.333, 0.001)
		So(check.StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), ShouldAlmostEqual, 2.138, 0.001)
		So(check.StdDev([]float64{1}), ShouldEqual, 0)

		_, ok := check.CoefficientOfVariation([]float64{0, 0})
		So(ok, ShouldBeFalse)
		cv, ok := check.CoefficientOfVariation([]float64{100, 100})
		So(ok, ShouldBeTrue)
		So(cv, ShouldEqual, 0)
	})
}

func TestQuartileStats(t *testing.T) {
	Convey("Given unsorted samples", t, func() {
		xs := []float64{9, 1, 5, 3, 7}

		Convey("Median sorts a copy and picks the middle", func() {
			So(check.Median(xs), ShouldEqual, 5.0)
			So(check.Median([]float64{4, 1, 3, 2}), ShouldEqual, 2.5)
			So(check.Median(nil), ShouldEqual, 0.0)
			So(xs, ShouldResemble, []float64{9, 1, 5, 3, 7})
		})

		Convey("Outliers splits values beyond the Tukey fences", func() {
			low, high := check.Outliers([]float64{200, 20, 195, 205, 500, 190, 210, 200})
			So(low, ShouldResemble, []float64{20})
			So(high, ShouldResemble, []float64{500})

			low, high = check.Outliers([]float64{100, 110, 90, 105, 95})
			So(low, ShouldBeEmpty)
			So(high, ShouldBeEmpty)
		})

		Convey("Too few values have no outliers", func() {
			low, high := check.Outliers([]float64{1, 100, 1000})
			So(low, ShouldBeNil)
			So(high, ShouldBeNil)
		})
	})
}
