package engine

import (
	"context"

	"github.com/okian/tempoguard/internal/domain/model"
)

// Broadcaster publishes verdicts to other nodes. Broadcast must not block.
type Broadcaster interface {
	Broadcast(ctx context.Context, v model.ClusterVerdict)
}

// AlertSink delivers escalations to operators. Notify must not block.
type AlertSink interface {
	Notify(ctx context.Context, ev model.EscalationEvent)
}

// SnapshotSink persists record snapshots. Record must not block.
type SnapshotSink interface {
	Record(ctx context.Context, snap model.ViolationSnapshot)
}

type nopSinks struct{}

func (nopSinks) Broadcast(context.Context, model.ClusterVerdict) {}
func (nopSinks) Notify(context.Context, model.EscalationEvent)   {}
func (nopSinks) Record(context.Context, model.ViolationSnapshot) {}
