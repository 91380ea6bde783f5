package engine

import (
	"time"

	"github.com/okian/tempoguard/internal/domain/normalize"
)

// Option configures an Engine.
type Option func(*Engine)

// WithNodeID sets the id stamped on verdicts and alerts.
func WithNodeID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.nodeID = id
		}
	}
}

// WithBroadcaster sets the cluster publisher.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) {
		if b != nil {
			e.broadcaster = b
		}
	}
}

// WithAlertSink sets the alert dispatcher.
func WithAlertSink(a AlertSink) Option {
	return func(e *Engine) {
		if a != nil {
			e.alerts = a
		}
	}
}

// WithSnapshotSink sets the persistence gateway.
func WithSnapshotSink(s SnapshotSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.snapshots = s
		}
	}
}

// WithClock sets the monotonic clock used for decay on non-event tasks.
func WithClock(c normalize.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithWallClock sets the wall clock stamped on alerts and snapshots.
func WithWallClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.wall = fn
		}
	}
}

// WithVerdictBook shares a verdict book.
func WithVerdictBook(b *VerdictBook) Option {
	return func(e *Engine) {
		if b != nil {
			e.book = b
		}
	}
}

// WithIDGenerator sets how verdict ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}
