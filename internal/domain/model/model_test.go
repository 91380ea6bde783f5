package model_test

import (
	"testing"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
	"github.com/smartystreets/goconvey/convey"
)

func TestClusterVerdictSupersedes(t *testing.T) {
	convey.Convey("Given a local record at epoch 1 level 2", t, func() {
		convey.Convey("Then a lower or equal level in the same epoch is a no-op", func() {
			convey.So(model.ClusterVerdict{Kind: model.VerdictEscalation, Epoch: 1, EscalationLevel: 1}.Supersedes(1, 2), convey.ShouldBeFalse)
			convey.So(model.ClusterVerdict{Kind: model.VerdictEscalation, Epoch: 1, EscalationLevel: 2}.Supersedes(1, 2), convey.ShouldBeFalse)
		})

		convey.Convey("Then a strictly higher level overwrites", func() {
			convey.So(model.ClusterVerdict{Kind: model.VerdictEscalation, Epoch: 1, EscalationLevel: 3}.Supersedes(1, 2), convey.ShouldBeTrue)
		})

		convey.Convey("Then a newer epoch wins even at level zero", func() {
			convey.So(model.ClusterVerdict{Kind: model.VerdictReset, Epoch: 2}.Supersedes(1, 2), convey.ShouldBeTrue)
		})

		convey.Convey("Then an older epoch never wins", func() {
			convey.So(model.ClusterVerdict{Kind: model.VerdictEscalation, Epoch: 0, EscalationLevel: 9}.Supersedes(1, 2), convey.ShouldBeFalse)
		})

		convey.Convey("Then a reset in the current epoch is stale", func() {
			convey.So(model.ClusterVerdict{Kind: model.VerdictReset, Epoch: 1}.Supersedes(1, 0), convey.ShouldBeFalse)
		})
	})
}

func TestViolationRecordSnapshot(t *testing.T) {
	convey.Convey("Given a record with history", t, func() {
		rec := &model.ViolationRecord{
			ParticipantID:   "p1",
			CheckID:         "interval",
			CurrentScore:    12,
			EscalationLevel: 3,
			History:         ring.New[model.AppliedDelta](4),
		}
		rec.History.Push(model.AppliedDelta{Amount: 12, ScoreAfter: 12})

		snap := rec.Snapshot(3, model.ReasonEscalation, "node-a", time.Unix(0, 0))

		convey.Convey("Then the snapshot is an independent copy", func() {
			rec.History.Push(model.AppliedDelta{Amount: 1})
			rec.CurrentScore = 0
			convey.So(snap.Score, convey.ShouldEqual, 12)
			convey.So(len(snap.History), convey.ShouldEqual, 1)
			convey.So(snap.Flagged, convey.ShouldBeTrue)
			convey.So(snap.NodeID, convey.ShouldEqual, "node-a")
		})
	})
}

func TestEnumNames(t *testing.T) {
	convey.Convey("Event and task kinds have stable names", t, func() {
		convey.So(model.ActionPerformed.String(), convey.ShouldEqual, "action_performed")
		convey.So(model.EventType(42).String(), convey.ShouldEqual, "unknown")
		convey.So(model.TaskVerdict.String(), convey.ShouldEqual, "verdict")
		convey.So(model.ScoreDelta{}.IsZero(), convey.ShouldBeTrue)
	})
}
