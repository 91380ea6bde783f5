// Package normalize converts platform events into ParticipantEvents.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tempoguard/internal/domain/model"
)

// RawEvent is the platform-facing event shape accepted by adapters.
type RawEvent struct {
	ParticipantID string  `json:"participant_id"`
	Kind          string  `json:"kind"`
	DeliveryID    string  `json:"delivery_id,omitempty"`
	Sequence      *uint64 `json:"sequence,omitempty"`
	// ClientTimestampMs is accepted for compatibility and never used for timing.
	ClientTimestampMs   int64  `json:"client_ts,omitempty"`
	Action              string `json:"action,omitempty"`
	Trigger             string `json:"trigger,omitempty"`
	Slot                int    `json:"slot,omitempty"`
	CooldownRemainingMs int64  `json:"cooldown_remaining_ms,omitempty"`
	PingMs              int64  `json:"ping_ms,omitempty"`
}

func defaultKinds() map[string]model.EventType {
	return map[string]model.EventType{
		"action":          model.ActionPerformed,
		"inventory_click": model.ActionPerformed,
		"swap_hand":       model.ActionPerformed,
		"pick_item":       model.ActionPerformed,
		"use_item":        model.ActionPerformed,
		"state":           model.StateChanged,
		"totem_pop":       model.StateChanged,
		"hazard":          model.StateChanged,
		"damage":          model.StateChanged,
		"heartbeat":       model.Heartbeat,
		"keep_alive":      model.Heartbeat,
		"ping":            model.Heartbeat,
	}
}

// Normalizer is safe for concurrent use once built.
type Normalizer struct {
	clock Clock
	kinds map[string]model.EventType
	newID func() string
}

// New builds a Normalizer with the default kind table.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		clock: NewMonotonicClock(),
		kinds: defaultKinds(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Clock returns the clock stamping events.
func (n *Normalizer) Clock() Clock { return n.clock }

// Normalize converts raw into an event. ok is false when the kind is irrelevant to detection.
// Malformed input returns an error wrapping ErrMalformed.
func (n *Normalizer) Normalize(raw RawEvent) (model.ParticipantEvent, bool, error) {
	id := strings.TrimSpace(raw.ParticipantID)
	if id == "" {
		return model.ParticipantEvent{}, false, fmt.Errorf("%w: missing participant id", ErrMalformed)
	}
	kind := strings.ToLower(strings.TrimSpace(raw.Kind))
	if kind == "" {
		return model.ParticipantEvent{}, false, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	if raw.CooldownRemainingMs < 0 || raw.PingMs < 0 {
		return model.ParticipantEvent{}, false, fmt.Errorf("%w: negative duration", ErrMalformed)
	}

	t, known := n.kinds[kind]
	if !known {
		return model.ParticipantEvent{}, false, nil
	}

	ev := model.ParticipantEvent{
		EventID:              raw.DeliveryID,
		ParticipantID:        id,
		Type:                 t,
		ServerTimestampNanos: n.clock.NowNanos(),
		ClientSequence:       raw.Sequence,
		Payload: model.Payload{
			Action:                 raw.Action,
			Trigger:                raw.Trigger,
			Slot:                   raw.Slot,
			CooldownRemainingNanos: int64(time.Duration(raw.CooldownRemainingMs) * time.Millisecond),
			RoundTripNanos:         int64(time.Duration(raw.PingMs) * time.Millisecond),
		},
	}
	if ev.EventID == "" {
		ev.EventID = n.newID()
	}

	switch t {
	case model.ActionPerformed:
		if ev.Payload.Action == "" {
			ev.Payload.Action = kind
		}
	case model.StateChanged:
		if ev.Payload.Trigger == "" {
			ev.Payload.Trigger = kind
		}
	}
	return ev, true, nil
}
