// Package state owns per-participant detection state and the store that holds it.
package state

import (
	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
)

// Participant is the detection state of one connected participant.
// Only the participant's serialization point may touch it.
type Participant struct {
	id          string
	connectedAt int64
	ringSize    int
	maxActions  int

	timestamps  map[string]*ring.Ring[int64]
	actionOrder *ring.Ring[string]
	roundTrip   int64
	lastSeen    int64

	scratch map[string]any
	views   map[string]*scopedView
	records map[string]*model.ViolationRecord
}

func newParticipant(id string, connectedAt int64, ringSize, maxActions int) *Participant {
	return &Participant{
		id:          id,
		connectedAt: connectedAt,
		ringSize:    ringSize,
		maxActions:  maxActions,
		timestamps:  make(map[string]*ring.Ring[int64], maxActions),
		actionOrder: ring.New[string](maxActions),
		lastSeen:    connectedAt,
		scratch:     make(map[string]any),
		views:       make(map[string]*scopedView),
		records:     make(map[string]*model.ViolationRecord),
	}
}

// ID returns the participant id.
func (p *Participant) ID() string { return p.id }

// ConnectedAt returns the monotonic connect time.
func (p *Participant) ConnectedAt() int64 { return p.connectedAt }

// LastSeen returns the timestamp of the latest event.
func (p *Participant) LastSeen() int64 { return p.lastSeen }

// Touch records activity at ts.
func (p *Participant) Touch(ts int64) {
	if ts > p.lastSeen {
		p.lastSeen = ts
	}
}

// RecordAction appends ts to the action's ring. When a new action type would exceed
// the tracked limit, the least recently introduced type is dropped.
func (p *Participant) RecordAction(action string, ts int64) {
	r, ok := p.timestamps[action]
	if !ok {
		if evicted, full := p.actionOrder.Push(action); full {
			delete(p.timestamps, evicted)
		}
		r = ring.New[int64](p.ringSize)
		p.timestamps[action] = r
	}
	r.Push(ts)
}

// SetRoundTrip stores the latest latency sample.
func (p *Participant) SetRoundTrip(nanos int64) { p.roundTrip = nanos }

// Record returns the violation record for a check, if any.
func (p *Participant) Record(checkID string) (*model.ViolationRecord, bool) {
	r, ok := p.records[checkID]
	return r, ok
}

// PutRecord stores a record under its check id.
func (p *Participant) PutRecord(r *model.ViolationRecord) { p.records[r.CheckID] = r }

// Records calls fn for every record. fn must not retain the pointer.
func (p *Participant) Records(fn func(*model.ViolationRecord)) {
	for _, r := range p.records {
		fn(r)
	}
}

// ViewFor returns a view limited to checkID's scratch.
func (p *Participant) ViewFor(checkID string) check.View {
	v, ok := p.views[checkID]
	if !ok {
		v = &scopedView{p: p, checkID: checkID}
		p.views[checkID] = v
	}
	return v
}

type scopedView struct {
	p       *Participant
	checkID string
}

func (v *scopedView) ParticipantID() string { return v.p.id }

func (v *scopedView) AppendTimestamps(dst []int64, action string) []int64 {
	r, ok := v.p.timestamps[action]
	if !ok {
		return dst
	}
	return r.AppendTo(dst)
}

func (v *scopedView) RoundTripNanos() int64 { return v.p.roundTrip }

func (v *scopedView) Scratch() any { return v.p.scratch[v.checkID] }

func (v *scopedView) SetScratch(s any) { v.p.scratch[v.checkID] = s }
