package model

// CheckLevel is the published state of one record.
type CheckLevel struct {
	CheckID         string  `json:"check_id"`
	Score           float64 `json:"score"`
	EscalationLevel int     `json:"escalation_level"`
	Flagged         bool    `json:"flagged"`
	Epoch           uint64  `json:"epoch"`
}

// ParticipantView is a read-only summary published after each handled task.
type ParticipantView struct {
	ParticipantID string       `json:"participant_id"`
	ConnectedAt   int64        `json:"connected_at_nanos"`
	Checks        []CheckLevel `json:"checks"`
}
