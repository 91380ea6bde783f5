package model

// TaskKind identifies work routed to a participant's serialization point.
type TaskKind uint8

// Task kinds.
const (
	TaskEvent TaskKind = iota + 1
	TaskConnect
	TaskDisconnect
	TaskVerdict
	TaskReset
)

// String returns the label used in logs and metrics.
func (k TaskKind) String() string {
	switch k {
	case TaskEvent:
		return "event"
	case TaskConnect:
		return "connect"
	case TaskDisconnect:
		return "disconnect"
	case TaskVerdict:
		return "verdict"
	case TaskReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Task is one unit of work for a participant. Exactly one of Event/Verdict/Reset is set
// according to Kind.
type Task struct {
	Kind          TaskKind
	ParticipantID string
	Event         ParticipantEvent
	Verdict       ClusterVerdict
	Reset         ResetRequest
	// EnqueuedAtNanos is used for queueing latency only.
	EnqueuedAtNanos int64
}

// ResetRequest asks to clear one check, or every check when CheckID is empty.
type ResetRequest struct {
	CheckID string
	Reason  string
}
