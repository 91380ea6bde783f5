package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/normalize"
	"github.com/okian/tempoguard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingNotifier keeps every alert it is sent.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.EscalationEvent
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, ev model.EscalationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) Events() []model.EscalationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.EscalationEvent(nil), n.events...)
}

func (n *recordingNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// intervalOnly enables just the interval check so escalations are predictable.
func intervalOnly() *config.Config {
	cfg := config.New()
	cfg.Partitions = 2
	cfg.PartitionQueueSize = 256
	cfg.Checks.Reaction.Enabled = false
	cfg.Checks.Duplication.Enabled = false
	cfg.Checks.Stability.Enabled = false
	cfg.Cluster.ReconcileInterval = time.Hour
	return cfg
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func levelOf(view model.ParticipantView, checkID string) int {
	for _, c := range view.Checks {
		if c.CheckID == checkID {
			return c.EscalationLevel
		}
	}
	return 0
}

// clicks submits n actions spaced exactly step apart.
func clicks(ctx context.Context, submit func(context.Context, normalize.RawEvent) error, clock *normalize.ManualClock, id string, n int, step time.Duration) error {
	for i := 0; i < n; i++ {
		clock.Advance(step)
		if err := submit(ctx, normalize.RawEvent{ParticipantID: id, Kind: "action", Action: "attack"}); err != nil {
			return err
		}
	}
	return nil
}
