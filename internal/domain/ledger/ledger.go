// Package ledger accumulates decaying violation scores and decides escalations.
// All functions operate on records owned by the caller's serialization point and
// are deterministic: the same records, deltas and timestamps give the same results.
package ledger

import (
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
)

const defaultHistorySize = 32

// Policy is the scoring policy of one check.
type Policy struct {
	DecayRatePerSecond float64
	// Thresholds are strictly ascending; crossing Thresholds[i] means level i+1.
	Thresholds []float64
}

// MaxLevel is the terminal (flagged) level.
func (p Policy) MaxLevel() int { return len(p.Thresholds) }

// LevelFor returns the highest level whose threshold score reaches.
func (p Policy) LevelFor(score float64) int {
	level := 0
	for i, t := range p.Thresholds {
		if score >= t {
			level = i + 1
		}
	}
	return level
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDecay selects the decay function.
func WithDecay(fn DecayFunc) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.decay = fn
		}
	}
}

// WithHistorySize bounds per-record history.
func WithHistorySize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.historySize = n
		}
	}
}

// WithPolicy sets the policy for a check.
func WithPolicy(checkID string, p Policy) Option {
	return func(l *Ledger) {
		l.policies[checkID] = p
	}
}

// Ledger applies policies to records. It holds no records itself and is safe for concurrent use.
type Ledger struct {
	policies    map[string]Policy
	decay       DecayFunc
	historySize int
}

// New creates a ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		policies:    make(map[string]Policy),
		decay:       Linear,
		historySize: defaultHistorySize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the policy of a check. Unknown checks get an empty policy and never escalate.
func (l *Ledger) Policy(checkID string) Policy { return l.policies[checkID] }

// NewRecord creates an empty record at now.
func (l *Ledger) NewRecord(participantID, checkID string, now int64) *model.ViolationRecord {
	return &model.ViolationRecord{
		ParticipantID:    participantID,
		CheckID:          checkID,
		LastUpdatedNanos: now,
		History:          ring.New[model.AppliedDelta](l.historySize),
	}
}

// DecayTo brings the record's score forward to now. Time never runs backwards:
// a timestamp older than the last update leaves the record unchanged.
func (l *Ledger) DecayTo(rec *model.ViolationRecord, now int64) {
	elapsed := now - rec.LastUpdatedNanos
	if elapsed <= 0 {
		return
	}
	rate := l.policies[rec.CheckID].DecayRatePerSecond
	if rate > 0 && rec.CurrentScore > 0 {
		rec.CurrentScore = l.decay(rec.CurrentScore, rate, float64(elapsed)/1e9)
	}
	rec.LastUpdatedNanos = now
}

// Apply decays the record, adds the delta, and reports an escalation when the
// score crosses into a strictly higher level. Decay never lowers the level.
func (l *Ledger) Apply(rec *model.ViolationRecord, d model.ScoreDelta, now int64) (model.EscalationEvent, bool) {
	l.DecayTo(rec, now)

	rec.CurrentScore += d.Amount
	if rec.CurrentScore < 0 {
		rec.CurrentScore = 0
	}
	if rec.History != nil {
		rec.History.Push(model.AppliedDelta{
			Amount:     d.Amount,
			Confidence: d.Confidence,
			Evidence:   d.Evidence,
			AtNanos:    now,
			ScoreAfter: rec.CurrentScore,
		})
	}

	p := l.policies[rec.CheckID]
	level := p.LevelFor(rec.CurrentScore)
	if level <= rec.EscalationLevel {
		return model.EscalationEvent{}, false
	}
	ev := model.EscalationEvent{
		ParticipantID: rec.ParticipantID,
		CheckID:       rec.CheckID,
		PreviousLevel: rec.EscalationLevel,
		NewLevel:      level,
		Flagged:       level >= p.MaxLevel(),
		Score:         rec.CurrentScore,
		Evidence:      d.Evidence,
		AtNanos:       now,
		Epoch:         rec.Epoch,
	}
	rec.EscalationLevel = level
	return ev, true
}

// Merge applies a remote verdict. It returns true when local state changed.
// Applying the same verdict twice is a no-op.
func (l *Ledger) Merge(rec *model.ViolationRecord, v model.ClusterVerdict, now int64) bool {
	if !v.Supersedes(rec.Epoch, rec.EscalationLevel) {
		return false
	}
	if v.Epoch > rec.Epoch {
		l.clear(rec, v.Epoch, now)
	}
	if v.Kind == model.VerdictEscalation && v.EscalationLevel > rec.EscalationLevel {
		level := v.EscalationLevel
		if top := l.policies[rec.CheckID].MaxLevel(); top > 0 && level > top {
			level = top
		}
		rec.EscalationLevel = level
	}
	return true
}

// Reset clears the record into a new epoch. The next epoch is returned for broadcasting.
func (l *Ledger) Reset(rec *model.ViolationRecord, now int64) uint64 {
	l.clear(rec, rec.Epoch+1, now)
	return rec.Epoch
}

func (l *Ledger) clear(rec *model.ViolationRecord, epoch uint64, now int64) {
	rec.CurrentScore = 0
	rec.EscalationLevel = 0
	rec.Epoch = epoch
	rec.LastUpdatedNanos = now
	if rec.History != nil {
		rec.History.Reset()
	}
}

// Flagged reports whether the record sits at its terminal level.
func (l *Ledger) Flagged(rec *model.ViolationRecord) bool {
	top := l.policies[rec.CheckID].MaxLevel()
	return top > 0 && rec.EscalationLevel >= top
}

// Known reports whether checkID has a policy.
func (l *Ledger) Known(checkID string) bool {
	_, ok := l.policies[checkID]
	return ok
}
