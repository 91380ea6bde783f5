// Package cluster keeps escalation levels consistent across nodes. Local escalations and
// resets are published to a shared topic; verdicts from other nodes are routed back into the
// owning participant's serialization point, where they are merged idempotently. A periodic
// sweep re-publishes every non-clear level so nodes that missed a message converge.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/breaker"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const (
	defaultTopic          = "tempoguard.verdicts"
	defaultOutboundSize   = 1024
	defaultReconcileEvery = 30 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

// Applier routes a remote verdict to the participant's serialization point.
type Applier interface {
	SubmitVerdict(ctx context.Context, v model.ClusterVerdict) error
}

// LevelSource lists the current levels and reset epochs of locally connected participants.
type LevelSource interface {
	Levels() []model.ClusterVerdict
}

// Synchronizer publishes local verdicts and applies remote ones.
type Synchronizer struct {
	transport Transport
	nodeID    string
	applier   Applier
	levels    LevelSource

	topic          string
	outboundSize   int
	reconcileEvery time.Duration
	publishTimeout time.Duration
	breaker        *breaker.Breaker

	out chan model.ClusterVerdict
	log logger.Logger
}

// New creates a synchronizer. It does nothing until Serve runs.
func New(t Transport, nodeID string, applier Applier, levels LevelSource, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		transport:      t,
		nodeID:         nodeID,
		applier:        applier,
		levels:         levels,
		topic:          defaultTopic,
		outboundSize:   defaultOutboundSize,
		reconcileEvery: defaultReconcileEvery,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = breaker.New(breaker.Config{Name: "cluster-publish"})
	}
	s.out = make(chan model.ClusterVerdict, s.outboundSize)
	s.log = logger.Named("cluster").With(logger.String("node", nodeID), logger.String("topic", s.topic))
	return s
}

// Broadcast queues a verdict for publication. It never blocks; when the outbound
// queue is full the verdict is dropped and the sweep repairs the gap later.
func (s *Synchronizer) Broadcast(ctx context.Context, v model.ClusterVerdict) {
	select {
	case s.out <- v:
	default:
		metrics.RecordVerdictPublished("dropped")
		s.log.Warn(ctx, "outbound verdict queue full, verdict dropped",
			logger.String("participant", v.ParticipantID),
			logger.String("check", v.CheckID))
	}
}

// Serve runs the receive loop, the publish loop and the reconciliation sweep until ctx ends.
func (s *Synchronizer) Serve(ctx context.Context) error {
	in, err := s.transport.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.log.Info(ctx, "cluster synchronizer started")

	var sweep <-chan time.Time
	if s.reconcileEvery > 0 {
		ticker := time.NewTicker(s.reconcileEvery)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-in:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription to %s ended: %w", s.topic, ErrTransportClosed)
			}
			s.receive(ctx, payload)
		case v := <-s.out:
			s.publish(ctx, v)
		case <-sweep:
			s.Reconcile(ctx)
		}
	}
}

// String names the synchronizer for supervision.
func (s *Synchronizer) String() string { return "cluster-synchronizer" }

// Reconcile queues every current level and reset epoch for re-publication.
func (s *Synchronizer) Reconcile(ctx context.Context) {
	levels := s.levels.Levels()
	for _, v := range levels {
		s.Broadcast(ctx, v)
	}
	metrics.RecordReconcileSweep(len(levels))
	s.log.Debug(ctx, "reconciliation sweep", logger.Int("verdicts", len(levels)))
}

func (s *Synchronizer) receive(ctx context.Context, payload []byte) {
	v, err := Decode(payload)
	if err != nil {
		metrics.RecordVerdictReceived("malformed")
		s.log.Warn(ctx, "malformed verdict dropped", logger.Error(err))
		return
	}
	if v.OriginNodeID == s.nodeID {
		metrics.RecordVerdictReceived("self")
		return
	}
	if err := s.applier.SubmitVerdict(ctx, v); err != nil {
		metrics.RecordVerdictReceived("rejected")
		s.log.Warn(ctx, "remote verdict not applied",
			logger.String("participant", v.ParticipantID),
			logger.String("origin", v.OriginNodeID),
			logger.Error(err))
	}
}

func (s *Synchronizer) publish(ctx context.Context, v model.ClusterVerdict) {
	payload, err := Encode(v)
	if err != nil {
		metrics.RecordVerdictPublished("error")
		s.log.Error(ctx, "verdict not encodable", logger.Error(err))
		return
	}
	err = breaker.Do(s.breaker, func() error {
		pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
		return s.transport.Publish(pctx, s.topic, payload)
	})
	switch {
	case err == nil:
		metrics.RecordVerdictPublished("ok")
	case breaker.IsOpen(err):
		metrics.RecordVerdictPublished("breaker_open")
	case errors.Is(err, context.Canceled):
		metrics.RecordVerdictPublished("canceled")
	default:
		metrics.RecordVerdictPublished("error")
		metrics.RecordErrorByComponent("cluster", "publish")
		s.log.Warn(ctx, "verdict publish failed",
			logger.String("participant", v.ParticipantID),
			logger.String("check", v.CheckID),
			logger.Error(err))
	}
}
