package model

// VerdictKind distinguishes an escalation from an administrative reset.
type VerdictKind string

// Verdict kinds on the wire.
const (
	VerdictEscalation VerdictKind = "escalation"
	VerdictReset      VerdictKind = "reset"
)

// ClusterVerdict is the minimal state synchronized between nodes.
// It never carries raw history.
type ClusterVerdict struct {
	ID              string      `json:"id"`
	Kind            VerdictKind `json:"kind"`
	ParticipantID   string      `json:"participant_id"`
	CheckID         string      `json:"check_id"`
	EscalationLevel int         `json:"escalation_level"`
	Epoch           uint64      `json:"epoch"`
	OriginNodeID    string      `json:"origin_node_id"`
	IssuedAtUnixMs  int64       `json:"issued_at_unix_ms"`
	Reason          string      `json:"reason,omitempty"`
}

// Supersedes reports whether v should replace local (epoch, level).
// A newer epoch always wins; within an epoch only a strictly higher level does.
func (v ClusterVerdict) Supersedes(epoch uint64, level int) bool {
	if v.Epoch != epoch {
		return v.Epoch > epoch
	}
	return v.Kind == VerdictEscalation && v.EscalationLevel > level
}
