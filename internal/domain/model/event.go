// Package model contains domain models passed between layers.
package model

// EventType classifies a normalized participant event.
type EventType uint8

// Event types understood by checks.
const (
	EventUnknown EventType = iota
	ActionPerformed
	StateChanged
	Heartbeat
)

// String returns the snake_case name used in logs and metrics.
func (t EventType) String() string {
	switch t {
	case ActionPerformed:
		return "action_performed"
	case StateChanged:
		return "state_changed"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Payload carries the typed attributes checks read. Unused fields stay zero.
type Payload struct {
	// Action is the action subtype of an ActionPerformed event, e.g. "offhand_swap".
	Action string
	// Trigger is the server-side cause of a StateChanged event, e.g. "totem_consumed".
	Trigger string
	// Slot is the inventory or UI slot the action touched.
	Slot int
	// CooldownRemainingNanos is the cooldown left on the action when it was issued.
	CooldownRemainingNanos int64
	// RoundTripNanos is a latency sample carried by Heartbeat events.
	RoundTripNanos int64
}

// ParticipantEvent is an immutable, platform-agnostic event.
// ServerTimestampNanos is monotonic and assigned at receipt; it is the only clock checks use.
type ParticipantEvent struct {
	EventID              string
	ParticipantID        string
	Type                 EventType
	ServerTimestampNanos int64
	// ClientSequence is untrusted and kept for diagnostics only.
	ClientSequence *uint64
	Payload        Payload
}
