package model

import (
	"time"

	"github.com/okian/tempoguard/internal/domain/ring"
)

// ScoreDelta is the outcome of one check evaluation.
type ScoreDelta struct {
	CheckID    string
	Amount     float64
	Confidence float64
	Evidence   string
}

// IsZero reports whether the delta carries no score change.
func (d ScoreDelta) IsZero() bool { return d.Amount == 0 }

// AppliedDelta is a history entry: a delta and the score it produced.
type AppliedDelta struct {
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	AtNanos    int64   `json:"at_nanos"`
	ScoreAfter float64 `json:"score_after"`
}

// ViolationRecord is the score state of one (participant, check) pair.
// It is owned by the participant's serialization point and never shared.
type ViolationRecord struct {
	ParticipantID    string
	CheckID          string
	CurrentScore     float64
	LastUpdatedNanos int64
	EscalationLevel  int
	// Epoch counts administrative resets; verdicts from an older epoch are stale.
	Epoch   uint64
	History *ring.Ring[AppliedDelta]
}

// Snapshot copies the record, including its history, for use off the serialization point.
func (r *ViolationRecord) Snapshot(maxLevel int, reason, nodeID string, at time.Time) ViolationSnapshot {
	s := ViolationSnapshot{
		ParticipantID:    r.ParticipantID,
		CheckID:          r.CheckID,
		Score:            r.CurrentScore,
		EscalationLevel:  r.EscalationLevel,
		Flagged:          maxLevel > 0 && r.EscalationLevel >= maxLevel,
		Epoch:            r.Epoch,
		LastUpdatedNanos: r.LastUpdatedNanos,
		Reason:           reason,
		NodeID:           nodeID,
		RecordedAt:       at,
	}
	if r.History != nil {
		s.History = r.History.Values()
	}
	return s
}

// ViolationSnapshot is an immutable copy of a record handed to persistence and readers.
type ViolationSnapshot struct {
	ParticipantID    string         `json:"participant_id"`
	CheckID          string         `json:"check_id"`
	Score            float64        `json:"score"`
	EscalationLevel  int            `json:"escalation_level"`
	Flagged          bool           `json:"flagged"`
	Epoch            uint64         `json:"epoch"`
	LastUpdatedNanos int64          `json:"last_updated_nanos"`
	Reason           string         `json:"reason"`
	NodeID           string         `json:"node_id"`
	RecordedAt       time.Time      `json:"recorded_at"`
	History          []AppliedDelta `json:"history,omitempty"`
}

// Snapshot reasons.
const (
	ReasonEscalation = "escalation"
	ReasonDisconnect = "disconnect"
	ReasonReset      = "reset"
)

// EscalationEvent is emitted when a record reaches a strictly higher level.
type EscalationEvent struct {
	ParticipantID string    `json:"participant_id"`
	CheckID       string    `json:"check_id"`
	PreviousLevel int       `json:"previous_level"`
	NewLevel      int       `json:"new_level"`
	Flagged       bool      `json:"flagged"`
	Score         float64   `json:"score"`
	Evidence      string    `json:"evidence,omitempty"`
	AtNanos       int64     `json:"at_nanos"`
	At            time.Time `json:"at"`
	NodeID        string    `json:"node_id"`
	Epoch         uint64    `json:"epoch"`
}
