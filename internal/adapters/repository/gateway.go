package repository

import (
	"context"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/breaker"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const (
	defaultQueueSize  = 4096
	defaultMaxRetries = 3
	defaultBackoff    = 100 * time.Millisecond
)

// Gateway writes snapshots asynchronously with bounded retries. A snapshot that
// still fails is logged and dropped; detection state is never affected.
type Gateway struct {
	store      Store
	queueSize  int
	maxRetries int
	backoff    time.Duration
	breaker    *breaker.Breaker
	queue      chan model.ViolationSnapshot
	log        logger.Logger
}

// NewGateway creates a gateway in front of store. Nothing is written until Serve runs.
func NewGateway(store Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:      store,
		queueSize:  defaultQueueSize,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breaker == nil {
		g.breaker = breaker.New(breaker.Config{Name: "persistence"})
	}
	g.queue = make(chan model.ViolationSnapshot, g.queueSize)
	g.log = logger.Named("persistence")
	return g
}

// Record queues a snapshot without blocking.
func (g *Gateway) Record(ctx context.Context, snap model.ViolationSnapshot) {
	select {
	case g.queue <- snap:
	default:
		metrics.RecordPersistence("dropped")
		g.log.Warn(ctx, "persistence queue full, snapshot dropped",
			logger.String("participant", snap.ParticipantID),
			logger.String("check", snap.CheckID))
	}
}

// History reads from the underlying store.
func (g *Gateway) History(ctx context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error) {
	return g.store.History(ctx, participantID, limit)
}

// Serve writes queued snapshots until ctx ends, then drains what is already queued.
func (g *Gateway) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			g.drain()
			return ctx.Err()
		case snap := <-g.queue:
			g.write(ctx, snap)
		}
	}
}

// String names the gateway for supervision.
func (g *Gateway) String() string { return "persistence-gateway" }

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}

func (g *Gateway) drain() {
	ctx := context.Background()
	for {
		select {
		case snap := <-g.queue:
			if err := g.store.Record(ctx, snap); err != nil {
				metrics.RecordPersistence("error")
				continue
			}
			metrics.RecordPersistence("ok")
		default:
			return
		}
	}
}

func (g *Gateway) write(ctx context.Context, snap model.ViolationSnapshot) {
	var err error
	delay := g.backoff
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = breaker.Do(g.breaker, func() error { return g.store.Record(ctx, snap) })
		if err == nil {
			metrics.RecordPersistence("ok")
			return
		}
		if breaker.IsOpen(err) {
			break
		}
	}
	metrics.RecordPersistence("error")
	metrics.RecordErrorByComponent("persistence", "write")
	g.log.Error(ctx, "snapshot not persisted",
		logger.String("participant", snap.ParticipantID),
		logger.String("check", snap.CheckID),
		logger.String("reason", snap.Reason),
		logger.Error(err))
}
