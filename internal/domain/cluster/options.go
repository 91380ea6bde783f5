package cluster

import (
	"time"

	"github.com/okian/tempoguard/pkg/breaker"
)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithTopic sets the shared topic.
func WithTopic(topic string) Option {
	return func(s *Synchronizer) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithReconcileInterval sets the period of the full re-broadcast sweep. Zero disables it.
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.reconcileEvery = d
		}
	}
}

// WithOutboundQueueSize bounds verdicts waiting to be published.
func WithOutboundQueueSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.outboundSize = n
		}
	}
}

// WithPublishTimeout bounds a single publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithBreaker sets the breaker guarding publishes.
func WithBreaker(b *breaker.Breaker) Option {
	return func(s *Synchronizer) {
		if b != nil {
			s.breaker = b
		}
	}
}
