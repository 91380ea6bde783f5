// Package alert delivers escalation events to operators without ever blocking detection.
package alert

import (
	"context"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const (
	defaultQueueSize = 1024
	defaultTimeout   = 5 * time.Second
)

// Notifier delivers one alert to one destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, ev model.EscalationEvent) error
}

// Dispatcher queues alerts and fans them out to notifiers from its own goroutine.
type Dispatcher struct {
	notifiers []Notifier
	queueSize int
	timeout   time.Duration
	queue     chan model.EscalationEvent
	log       logger.Logger
}

// NewDispatcher creates a dispatcher. Nothing is delivered until Serve runs.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queueSize: defaultQueueSize,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan model.EscalationEvent, d.queueSize)
	d.log = logger.Named("alerts")
	return d
}

// Notify queues an alert. When the queue is full the alert is dropped and counted.
func (d *Dispatcher) Notify(ctx context.Context, ev model.EscalationEvent) {
	select {
	case d.queue <- ev:
	default:
		metrics.RecordAlert("dispatcher", "dropped")
		d.log.Warn(ctx, "alert queue full, alert dropped",
			logger.String("participant", ev.ParticipantID),
			logger.String("check", ev.CheckID),
			logger.Int("level", ev.NewLevel))
	}
}

// Serve delivers queued alerts until ctx ends.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

// String names the dispatcher for supervision.
func (d *Dispatcher) String() string { return "alert-dispatcher" }

func (d *Dispatcher) deliver(ctx context.Context, ev model.EscalationEvent) {
	for _, n := range d.notifiers {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := n.Send(sctx, ev)
		cancel()
		if err != nil {
			metrics.RecordAlert(n.Name(), "error")
			metrics.RecordErrorByComponent("alerts", n.Name())
			d.log.Warn(ctx, "alert delivery failed",
				logger.String("notifier", n.Name()),
				logger.String("participant", ev.ParticipantID),
				logger.Error(err))
			continue
		}
		metrics.RecordAlert(n.Name(), "ok")
	}
}
