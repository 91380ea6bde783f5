package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/tempoguard/internal/domain/ledger"
	"github.com/okian/tempoguard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const sec = int64(time.Second)

func newLedger(decay ledger.DecayFunc) *ledger.Ledger {
	return ledger.New(
		ledger.WithDecay(decay),
		ledger.WithHistorySize(3),
		ledger.WithPolicy("interval", ledger.Policy{DecayRatePerSecond: 1.0, Thresholds: []float64{5, 10, 20}}),
	)
}

func delta(amount float64) model.ScoreDelta {
	return model.ScoreDelta{CheckID: "interval", Amount: amount, Confidence: 1}
}

func TestDecay(t *testing.T) {
	Convey("Given linear decay at 1 point per second", t, func() {
		l := newLedger(ledger.Linear)
		rec := l.NewRecord("p1", "interval", 0)
		l.Apply(rec, delta(10), 0)

		Convey("When 15 seconds pass", func() {
			l.DecayTo(rec, 15*sec)

			Convey("Then the score clamps to zero and never goes negative", func() {
				So(rec.CurrentScore, ShouldEqual, 0)
			})
		})

		Convey("When 4 seconds pass", func() {
			l.DecayTo(rec, 4*sec)
			So(rec.CurrentScore, ShouldAlmostEqual, 6)
		})

		Convey("When time appears to run backwards", func() {
			l.DecayTo(rec, 4*sec)
			l.DecayTo(rec, 2*sec)
			So(rec.CurrentScore, ShouldAlmostEqual, 6)
			So(rec.LastUpdatedNanos, ShouldEqual, 4*sec)
		})
	})

	Convey("Given any decay function", t, func() {
		fns := []struct {
			name string
			fn   ledger.DecayFunc
		}{{"linear", ledger.Linear}, {"exponential", ledger.Exponential}}
		for _, tc := range fns {
			fn := tc.fn
			Convey("Then "+tc.name+" decay is monotone non-increasing in elapsed time", func() {
				prev := 25.0
				for ms := 0; ms <= 60_000; ms += 250 {
					v := fn(25, 0.3, float64(ms)/1000)
					So(v, ShouldBeLessThanOrEqualTo, prev)
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
					prev = v
				}
			})
		}

		Convey("Then exponential decay eventually reaches exactly zero", func() {
			So(ledger.Exponential(10, 1, 60), ShouldEqual, 0)
		})

		Convey("Then names resolve", func() {
			_, err := ledger.DecayByName("exponential")
			So(err, ShouldBeNil)
			_, err = ledger.DecayByName("cubic")
			So(errors.Is(err, ledger.ErrUnknownDecay), ShouldBeTrue)
		})
	})
}

func TestEscalation(t *testing.T) {
	Convey("Given thresholds 5, 10 and 20", t, func() {
		l := newLedger(ledger.Linear)
		rec := l.NewRecord("p1", "interval", 0)

		Convey("When the score crosses the first threshold", func() {
			_, first := l.Apply(rec, delta(3), 0)
			ev, second := l.Apply(rec, delta(3), 0)

			Convey("Then exactly one escalation is emitted at the crossing", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(ev.PreviousLevel, ShouldEqual, 0)
				So(ev.NewLevel, ShouldEqual, 1)
				So(ev.Flagged, ShouldBeFalse)
			})
		})

		Convey("When one delta crosses several thresholds", func() {
			ev, ok := l.Apply(rec, delta(25), 0)

			Convey("Then it jumps to the highest level and is flagged", func() {
				So(ok, ShouldBeTrue)
				So(ev.NewLevel, ShouldEqual, 3)
				So(ev.Flagged, ShouldBeTrue)
				So(l.Flagged(rec), ShouldBeTrue)
			})
		})

		Convey("When the score decays after escalating", func() {
			l.Apply(rec, delta(12), 0)
			_, again := l.Apply(rec, delta(-100), 30*sec)
			_, refill := l.Apply(rec, delta(11), 31*sec)

			Convey("Then the level never decreases and re-crossing a lower threshold is silent", func() {
				So(rec.CurrentScore, ShouldEqual, 11)
				So(rec.EscalationLevel, ShouldEqual, 2)
				So(again, ShouldBeFalse)
				So(refill, ShouldBeFalse)
			})
		})

		Convey("When many deltas are applied", func() {
			for i := 0; i < 5; i++ {
				l.Apply(rec, delta(1), int64(i)*sec)
			}

			Convey("Then the history keeps only the newest entries", func() {
				h := rec.History.Values()
				So(len(h), ShouldEqual, 3)
				So(h[2].AtNanos, ShouldEqual, 4*sec)
			})
		})

		Convey("When a check has no policy", func() {
			other := l.NewRecord("p1", "unknown", 0)
			_, ok := l.Apply(other, delta(1000), 0)
			So(ok, ShouldBeFalse)
			So(other.CurrentScore, ShouldEqual, 1000)
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Given two ledgers fed the same deltas at the same timestamps", t, func() {
		run := func() (*model.ViolationRecord, []model.EscalationEvent) {
			l := newLedger(ledger.Exponential)
			rec := l.NewRecord("p1", "interval", 0)
			var events []model.EscalationEvent
			amounts := []float64{2.5, 1.25, -0.5, 4, 3.3, 0.7, 9.1, -2}
			for i, a := range amounts {
				if ev, ok := l.Apply(rec, delta(a), int64(i)*300*int64(time.Millisecond)); ok {
					events = append(events, ev)
				}
			}
			return rec, events
		}
		a, aEvents := run()
		b, bEvents := run()

		Convey("Then scores, levels and escalations are identical", func() {
			So(a.CurrentScore, ShouldEqual, b.CurrentScore)
			So(a.EscalationLevel, ShouldEqual, b.EscalationLevel)
			So(aEvents, ShouldResemble, bEvents)
			So(a.History.Values(), ShouldResemble, b.History.Values())
		})
	})
}

func TestMergeAndReset(t *testing.T) {
	Convey("Given a record escalated to level 2", t, func() {
		l := newLedger(ledger.Linear)
		rec := l.NewRecord("p1", "interval", 0)
		l.Apply(rec, delta(12), 0)
		verdict := func(level int, epoch uint64) model.ClusterVerdict {
			return model.ClusterVerdict{Kind: model.VerdictEscalation, ParticipantID: "p1", CheckID: "interval",
				EscalationLevel: level, Epoch: epoch}
		}

		Convey("When a lower or equal remote level arrives", func() {
			So(l.Merge(rec, verdict(1, 0), sec), ShouldBeFalse)
			So(l.Merge(rec, verdict(2, 0), sec), ShouldBeFalse)
			So(rec.EscalationLevel, ShouldEqual, 2)
		})

		Convey("When a higher remote level arrives twice", func() {
			first := l.Merge(rec, verdict(3, 0), sec)
			second := l.Merge(rec, verdict(3, 0), sec)

			Convey("Then the first overwrites and the duplicate is a no-op", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(rec.EscalationLevel, ShouldEqual, 3)
				So(rec.CurrentScore, ShouldEqual, 12)
			})
		})

		Convey("When a remote level exceeds the local maximum", func() {
			l.Merge(rec, verdict(9, 0), sec)
			So(rec.EscalationLevel, ShouldEqual, 3)
		})

		Convey("When an administrator resets the record", func() {
			epoch := l.Reset(rec, 2*sec)

			Convey("Then score and level clear into a new epoch", func() {
				So(epoch, ShouldEqual, 1)
				So(rec.CurrentScore, ShouldEqual, 0)
				So(rec.EscalationLevel, ShouldEqual, 0)
				So(rec.History.Len(), ShouldEqual, 0)
			})

			Convey("Then stale verdicts from the old epoch cannot resurrect the level", func() {
				So(l.Merge(rec, verdict(3, 0), 3*sec), ShouldBeFalse)
				So(rec.EscalationLevel, ShouldEqual, 0)
			})

			Convey("Then escalations in the new epoch still apply", func() {
				So(l.Merge(rec, verdict(1, 1), 3*sec), ShouldBeTrue)
				So(rec.EscalationLevel, ShouldEqual, 1)
			})
		})

		Convey("When a remote reset from a newer epoch arrives", func() {
			reset := model.ClusterVerdict{Kind: model.VerdictReset, ParticipantID: "p1", CheckID: "interval", Epoch: 1}
			So(l.Merge(rec, reset, sec), ShouldBeTrue)
			So(l.Merge(rec, reset, sec), ShouldBeFalse)
			So(rec.EscalationLevel, ShouldEqual, 0)
			So(rec.Epoch, ShouldEqual, uint64(1))
		})
	})
}
