package repository

import (
	"time"

	"github.com/okian/tempoguard/pkg/breaker"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithQueueSize bounds snapshots waiting to be written.
func WithQueueSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.queueSize = n
		}
	}
}

// WithMaxRetries sets how many times a failed write is retried.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries; it doubles per attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.backoff = d
		}
	}
}

// WithBreaker sets the breaker guarding writes.
func WithBreaker(b *breaker.Breaker) Option {
	return func(g *Gateway) {
		if b != nil {
			g.breaker = b
		}
	}
}
