package simulate

import (
	"math/rand"
	"time"

	"github.com/okian/tempoguard/internal/domain/normalize"
)

// minHumanInterval is the fastest a person plausibly repeats an action.
const minHumanInterval = 90 * time.Millisecond

// Step is one event and the pause before it is sent.
type Step struct {
	Wait  time.Duration
	Event normalize.RawEvent
}

// Pacer yields the next step for one participant.
type Pacer interface {
	Next() Step
}

type human struct {
	id        string
	rng       *rand.Rand
	mean      time.Duration
	jitter    time.Duration
	heartbeat time.Duration
	sinceBeat time.Duration
	beatDue   bool
	seq       uint64
}

// NewHuman returns a pacer with normally distributed click intervals.
func NewHuman(id string, cfg Config, rng *rand.Rand) Pacer {
	return &human{id: id, rng: rng, mean: cfg.HumanMean, jitter: cfg.HumanJitter, heartbeat: cfg.HeartbeatEvery}
}

func (h *human) Next() Step {
	if h.beatDue {
		return h.beat()
	}
	wait := h.mean + time.Duration(h.rng.NormFloat64()*float64(h.jitter))
	if wait < minHumanInterval {
		wait = minHumanInterval
	}
	return h.action(wait)
}

// action is followed immediately by a heartbeat once one is due, so heartbeats never
// shift the action cadence.
func (h *human) action(wait time.Duration) Step {
	h.sinceBeat += wait
	if h.sinceBeat >= h.heartbeat {
		h.sinceBeat = 0
		h.beatDue = true
	}
	h.seq++
	seq := h.seq
	return Step{Wait: wait, Event: normalize.RawEvent{
		ParticipantID: h.id, Kind: "action", Action: "attack", Sequence: &seq,
	}}
}

func (h *human) beat() Step {
	h.beatDue = false
	h.seq++
	seq := h.seq
	return Step{Event: normalize.RawEvent{
		ParticipantID: h.id, Kind: "heartbeat", Sequence: &seq, PingMs: 30 + h.rng.Int63n(40),
	}}
}

type bot struct {
	human
	interval time.Duration
}

// NewBot returns a pacer clicking at a fixed cadence.
func NewBot(id string, cfg Config, rng *rand.Rand) Pacer {
	return &bot{
		human:    human{id: id, rng: rng, heartbeat: cfg.HeartbeatEvery},
		interval: cfg.BotInterval,
	}
}

func (b *bot) Next() Step {
	if b.beatDue {
		return b.beat()
	}
	return b.action(b.interval)
}
