package check

import (
	"fmt"
	"time"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/model"
)

// Reaction flags responses to server-side triggers that arrive faster than a human can react.
// A StateChanged trigger arms the check; the next action within the window is measured.
// Part of the round trip is subtracted so that slow links are not mistaken for fast hands.
type Reaction struct {
	weight       float64
	floor        int64
	window       int64
	compensation float64
	grace        int
}

type reactionScratch struct {
	armed   bool
	armedAt int64
	trigger string
	samples int
}

// NewReaction builds the check from configuration.
func NewReaction(cfg config.CheckConfig) *Reaction {
	return &Reaction{
		weight:       cfg.Weight,
		floor:        int64(cfg.Param("floor_ms", 80) * float64(time.Millisecond)),
		window:       int64(cfg.Param("max_window_ms", 1000) * float64(time.Millisecond)),
		compensation: cfg.Param("latency_compensation", 0.5),
		grace:        cfg.GracePeriodSamples,
	}
}

func (c *Reaction) ID() string { return config.CheckReaction }

func (c *Reaction) InterestedEventTypes() []model.EventType {
	return []model.EventType{model.StateChanged, model.ActionPerformed}
}

func (c *Reaction) Evaluate(ev model.ParticipantEvent, view View) model.ScoreDelta {
	s := ScratchOf(view, func() *reactionScratch { return &reactionScratch{} })

	switch ev.Type {
	case model.StateChanged:
		if ev.Payload.Trigger != "" {
			s.armed, s.armedAt, s.trigger = true, ev.ServerTimestampNanos, ev.Payload.Trigger
		}
		return model.ScoreDelta{}
	case model.ActionPerformed:
	default:
		return model.ScoreDelta{}
	}

	if !s.armed {
		return model.ScoreDelta{}
	}
	s.armed = false
	observed := ev.ServerTimestampNanos - s.armedAt
	if observed < 0 || (c.window > 0 && observed > c.window) {
		return model.ScoreDelta{}
	}
	s.samples++
	if s.samples < c.grace {
		return model.ScoreDelta{}
	}

	reaction := observed - int64(c.compensation*float64(view.RoundTripNanos()))
	if reaction < 0 {
		reaction = 0
	}
	if reaction >= c.floor {
		return model.ScoreDelta{}
	}
	confidence := float64(c.floor-reaction) / float64(c.floor)
	return model.ScoreDelta{
		Amount:     c.weight * confidence,
		Confidence: confidence,
		Evidence: fmt.Sprintf("trigger=%s action=%s reaction=%s observed=%s",
			s.trigger, ev.Payload.Action, time.Duration(reaction), time.Duration(observed)),
	}
}
