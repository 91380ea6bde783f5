// Package engine runs detection for one participant at a time. Handle is the body of a
// serialization point: every task for a participant must reach it through the same
// single-threaded worker, in order.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tempoguard/internal/domain/check"
	"github.com/okian/tempoguard/internal/domain/ledger"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/normalize"
	"github.com/okian/tempoguard/internal/domain/state"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const (
	defaultBookSize  = 50_000
	maxReasonLength  = 160
	reasonReconcile  = "reconcile"
	reasonAdminReset = "admin reset"
)

// Engine wires the registry, the state store and the ledger together.
type Engine struct {
	nodeID   string
	registry *check.Registry
	store    *state.Store
	ledger   *ledger.Ledger
	book     *VerdictBook
	views    *viewTable

	broadcaster Broadcaster
	alerts      AlertSink
	snapshots   SnapshotSink

	clock normalize.Clock
	wall  func() time.Time
	newID func() string
	log   logger.Logger
}

// New creates an engine. The registry is frozen here; no check can be added afterwards.
func New(registry *check.Registry, store *state.Store, l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		nodeID:      uuid.NewString(),
		registry:    registry,
		store:       store,
		ledger:      l,
		views:       newViewTable(),
		broadcaster: nopSinks{},
		alerts:      nopSinks{},
		snapshots:   nopSinks{},
		clock:       normalize.NewMonotonicClock(),
		wall:        time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.book == nil {
		e.book = NewVerdictBook(defaultBookSize)
	}
	e.log = logger.Named("engine").With(logger.String("node", e.nodeID))
	registry.Freeze()
	return e
}

// NodeID returns the id this engine stamps on verdicts.
func (e *Engine) NodeID() string { return e.nodeID }

// Handle executes one task. It must only be called from the participant's serialization point.
func (e *Engine) Handle(ctx context.Context, t model.Task) error {
	start := time.Now()
	defer func() {
		metrics.RecordTaskLatency(t.Kind.String(), float64(time.Since(start).Microseconds())/1000)
	}()

	switch t.Kind {
	case model.TaskEvent:
		e.handleEvent(ctx, t.Event)
	case model.TaskConnect:
		e.handleConnect(ctx, t.ParticipantID)
	case model.TaskDisconnect:
		e.handleDisconnect(ctx, t.ParticipantID)
	case model.TaskVerdict:
		e.handleVerdict(ctx, t.Verdict)
	case model.TaskReset:
		e.handleReset(ctx, t.ParticipantID, t.Reset)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTask, t.Kind)
	}
	return nil
}

func (e *Engine) handleConnect(ctx context.Context, id string) {
	now := e.clock.NowNanos()
	p, created := e.store.Connect(id, now)
	if !created {
		e.log.Debug(ctx, "duplicate connect ignored", logger.String("participant", id))
		return
	}
	for _, v := range e.book.For(id) {
		if !e.ledger.Known(v.CheckID) {
			continue
		}
		rec := e.ledger.NewRecord(id, v.CheckID, now)
		e.ledger.Merge(rec, v, now)
		p.PutRecord(rec)
	}
	metrics.UpdateParticipants(e.store.Len())
	e.publish(p)
	e.log.Debug(ctx, "participant connected", logger.String("participant", id))
}

func (e *Engine) handleDisconnect(ctx context.Context, id string) {
	p, ok := e.store.Disconnect(id)
	if !ok {
		return
	}
	now := e.clock.NowNanos()
	at := e.wall()
	p.Records(func(rec *model.ViolationRecord) {
		e.ledger.DecayTo(rec, now)
		if rec.EscalationLevel == 0 && rec.CurrentScore == 0 {
			return
		}
		e.snapshots.Record(ctx, rec.Snapshot(e.ledger.Policy(rec.CheckID).MaxLevel(), model.ReasonDisconnect, e.nodeID, at))
	})
	e.views.delete(id)
	metrics.UpdateParticipants(e.store.Len())
	e.log.Debug(ctx, "participant disconnected", logger.String("participant", id))
}

func (e *Engine) handleEvent(ctx context.Context, ev model.ParticipantEvent) {
	p, ok := e.store.Get(ev.ParticipantID)
	if !ok {
		metrics.RecordEventDropped("unknown_participant")
		e.log.Debug(ctx, "event for unknown participant dropped",
			logger.String("participant", ev.ParticipantID),
			logger.String("event_type", ev.Type.String()))
		return
	}

	// Concurrent producers may stamp a participant's events slightly out of order.
	ts := ev.ServerTimestampNanos
	if last := p.LastSeen(); ts < last {
		ts = last
		ev.ServerTimestampNanos = ts
	}
	p.Touch(ts)
	switch ev.Type {
	case model.Heartbeat:
		if ev.Payload.RoundTripNanos > 0 {
			p.SetRoundTrip(ev.Payload.RoundTripNanos)
		}
	case model.ActionPerformed:
		if ev.Payload.Action != "" {
			p.RecordAction(ev.Payload.Action, ts)
		}
	}

	deltas := e.registry.Dispatch(ctx, ev, p)
	for _, d := range deltas {
		metrics.RecordScoreDelta(d.CheckID, d.Amount)
		rec := e.record(p, d.CheckID, ts)
		if esc, escalated := e.ledger.Apply(rec, d, ts); escalated {
			e.escalate(ctx, rec, esc)
		}
	}
	if len(deltas) > 0 {
		e.publish(p)
	}
}

func (e *Engine) escalate(ctx context.Context, rec *model.ViolationRecord, esc model.EscalationEvent) {
	at := e.wall()
	esc.NodeID = e.nodeID
	esc.At = at
	metrics.RecordEscalation(esc.CheckID, strconv.Itoa(esc.NewLevel))
	e.log.Warn(ctx, "participant escalated",
		logger.String("participant", esc.ParticipantID),
		logger.String("check", esc.CheckID),
		logger.Int("level", esc.NewLevel),
		logger.Bool("flagged", esc.Flagged),
		logger.Float64("score", esc.Score),
		logger.String("evidence", esc.Evidence))

	v := model.ClusterVerdict{
		ID:              e.newID(),
		Kind:            model.VerdictEscalation,
		ParticipantID:   esc.ParticipantID,
		CheckID:         esc.CheckID,
		EscalationLevel: esc.NewLevel,
		Epoch:           rec.Epoch,
		OriginNodeID:    e.nodeID,
		IssuedAtUnixMs:  at.UnixMilli(),
		Reason:          truncate(esc.Evidence, maxReasonLength),
	}
	e.book.Observe(v)

	e.alerts.Notify(ctx, esc)
	e.snapshots.Record(ctx, rec.Snapshot(e.ledger.Policy(rec.CheckID).MaxLevel(), model.ReasonEscalation, e.nodeID, at))
	e.broadcaster.Broadcast(ctx, v)
}

func (e *Engine) handleVerdict(ctx context.Context, v model.ClusterVerdict) {
	if v.OriginNodeID == e.nodeID {
		metrics.RecordVerdictReceived("self")
		return
	}
	if !e.ledger.Known(v.CheckID) {
		metrics.RecordVerdictReceived("unknown_check")
		e.log.Debug(ctx, "verdict for unknown check ignored", logger.String("check", v.CheckID))
		return
	}
	e.book.Observe(v)

	p, ok := e.store.Get(v.ParticipantID)
	if !ok {
		metrics.RecordVerdictReceived("booked")
		return
	}
	now := e.clock.NowNanos()
	rec := e.record(p, v.CheckID, now)
	if !e.ledger.Merge(rec, v, now) {
		metrics.RecordVerdictReceived("stale")
		return
	}
	metrics.RecordVerdictReceived("applied")
	if v.Kind == model.VerdictReset {
		metrics.RecordReset("remote")
	}
	e.publish(p)
	e.log.Info(ctx, "remote verdict applied",
		logger.String("participant", v.ParticipantID),
		logger.String("check", v.CheckID),
		logger.String("kind", string(v.Kind)),
		logger.Int("level", rec.EscalationLevel),
		logger.Int64("epoch", int64(rec.Epoch)),
		logger.String("origin", v.OriginNodeID))
}

func (e *Engine) handleReset(ctx context.Context, id string, req model.ResetRequest) {
	checkIDs := e.resetTargets(id, req.CheckID)
	if len(checkIDs) == 0 {
		e.log.Debug(ctx, "reset for unknown participant ignored", logger.String("participant", id))
		return
	}

	now := e.clock.NowNanos()
	at := e.wall()
	p, live := e.store.Get(id)
	reason := req.Reason
	if reason == "" {
		reason = reasonAdminReset
	}

	for _, checkID := range checkIDs {
		var epoch uint64
		if live {
			rec := e.record(p, checkID, now)
			epoch = e.ledger.Reset(rec, now)
			e.snapshots.Record(ctx, rec.Snapshot(e.ledger.Policy(checkID).MaxLevel(), model.ReasonReset, e.nodeID, at))
		} else {
			known, _ := e.book.Get(id, checkID)
			epoch = known.Epoch + 1
		}
		v := model.ClusterVerdict{
			ID:             e.newID(),
			Kind:           model.VerdictReset,
			ParticipantID:  id,
			CheckID:        checkID,
			Epoch:          epoch,
			OriginNodeID:   e.nodeID,
			IssuedAtUnixMs: at.UnixMilli(),
			Reason:         truncate(reason, maxReasonLength),
		}
		e.book.Observe(v)
		e.broadcaster.Broadcast(ctx, v)
		metrics.RecordReset("local")
	}
	if live {
		e.publish(p)
	}
	e.log.Info(ctx, "violations reset",
		logger.String("participant", id),
		logger.Any("checks", checkIDs),
		logger.String("reason", reason))
}

// resetTargets lists the checks a reset touches: one check, or every check with
// live or remembered state.
func (e *Engine) resetTargets(id, checkID string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		if _, ok := seen[c]; ok || !e.ledger.Known(c) {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	p, live := e.store.Get(id)
	if checkID != "" {
		_, booked := e.book.Get(id, checkID)
		if live || booked {
			add(checkID)
		}
		return out
	}
	if live {
		for _, c := range e.registry.Checks() {
			add(c.ID())
		}
		p.Records(func(rec *model.ViolationRecord) { add(rec.CheckID) })
	}
	for _, v := range e.book.For(id) {
		add(v.CheckID)
	}
	return out
}

func (e *Engine) record(p *state.Participant, checkID string, now int64) *model.ViolationRecord {
	if rec, ok := p.Record(checkID); ok {
		return rec
	}
	rec := e.ledger.NewRecord(p.ID(), checkID, now)
	p.PutRecord(rec)
	return rec
}

func (e *Engine) publish(p *state.Participant) {
	view := model.ParticipantView{ParticipantID: p.ID(), ConnectedAt: p.ConnectedAt()}
	p.Records(func(rec *model.ViolationRecord) {
		view.Checks = append(view.Checks, model.CheckLevel{
			CheckID:         rec.CheckID,
			Score:           rec.CurrentScore,
			EscalationLevel: rec.EscalationLevel,
			Flagged:         e.ledger.Flagged(rec),
			Epoch:           rec.Epoch,
		})
	})
	e.views.put(view)
}

// Participant returns the latest published summary of a connected participant.
func (e *Engine) Participant(id string) (model.ParticipantView, bool) {
	return e.views.get(id)
}

// Known reports whether the participant is connected here or has cluster-known verdicts.
func (e *Engine) Known(id string) bool {
	if _, ok := e.store.Get(id); ok {
		return true
	}
	return len(e.book.For(id)) > 0
}

// Levels lists a verdict for every record of connected participants that is
// not clear or sits past epoch zero. The reconciliation sweep re-broadcasts them,
// so a clear record in a later epoch is announced as a reset.
func (e *Engine) Levels() []model.ClusterVerdict {
	nowMs := e.wall().UnixMilli()
	var out []model.ClusterVerdict
	e.views.each(func(v model.ParticipantView) {
		for _, c := range v.Checks {
			kind := model.VerdictEscalation
			if c.EscalationLevel == 0 {
				if c.Epoch == 0 {
					continue
				}
				kind = model.VerdictReset
			}
			out = append(out, model.ClusterVerdict{
				ID:              e.newID(),
				Kind:            kind,
				ParticipantID:   v.ParticipantID,
				CheckID:         c.CheckID,
				EscalationLevel: c.EscalationLevel,
				Epoch:           c.Epoch,
				OriginNodeID:    e.nodeID,
				IssuedAtUnixMs:  nowMs,
				Reason:          reasonReconcile,
			})
		}
	})
	return out
}

// Participants returns the number of connected participants.
func (e *Engine) Participants() int { return e.store.Len() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
