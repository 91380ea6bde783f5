// Package check defines the pluggable check contract, the registry that dispatches
// events to checks, and the built-in timing checks.
package check

import "github.com/okian/tempoguard/internal/domain/model"

// Check turns one event plus the participant's view into a score delta.
// Implementations hold no per-participant state; anything that must survive between
// events lives in the view's scratch, which is private to the check.
type Check interface {
	ID() string
	InterestedEventTypes() []model.EventType
	Evaluate(event model.ParticipantEvent, view View) model.ScoreDelta
}

// View is a participant's state as seen by a single check.
type View interface {
	ParticipantID() string
	// AppendTimestamps appends the recent timestamps of an action, oldest first.
	AppendTimestamps(dst []int64, action string) []int64
	// RoundTripNanos is the latest latency estimate, zero when unknown.
	RoundTripNanos() int64
	// Scratch returns this check's private scratch value, nil before first use.
	Scratch() any
	SetScratch(v any)
}

// ViewProvider hands out check-scoped views of one participant.
type ViewProvider interface {
	ViewFor(checkID string) View
}

// ScratchOf returns the check's typed scratch, creating it with init on first use.
func ScratchOf[T any](v View, init func() *T) *T {
	if s, ok := v.Scratch().(*T); ok {
		return s
	}
	s := init()
	v.SetScratch(s)
	return s
}
