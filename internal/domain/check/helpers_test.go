package check_test

import (
	"time"

	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/state"
	"github.com/okian/tempoguard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func newParticipant() *state.Participant {
	p, _ := state.NewStore().Connect("p1", 0)
	return p
}

// act records an action the way the engine does and evaluates c on it.
func act(c check.Check, p *state.Participant, action string, at time.Duration) model.ScoreDelta {
	ts := int64(at)
	p.RecordAction(action, ts)
	ev := model.ParticipantEvent{
		ParticipantID:        p.ID(),
		Type:                 model.ActionPerformed,
		ServerTimestampNanos: ts,
		Payload:              model.Payload{Action: action, Slot: 40},
	}
	return c.Evaluate(ev, p.ViewFor(c.ID()))
}

func trigger(c check.Check, p *state.Participant, name string, at time.Duration) model.ScoreDelta {
	ev := model.ParticipantEvent{
		ParticipantID:        p.ID(),
		Type:                 model.StateChanged,
		ServerTimestampNanos: int64(at),
		Payload:              model.Payload{Trigger: name},
	}
	return c.Evaluate(ev, p.ViewFor(c.ID()))
}
