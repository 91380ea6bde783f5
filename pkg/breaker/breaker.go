// Package breaker builds circuit breakers that report their state through logs and metrics.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

// Defaults used when a Config field is zero.
const (
	defaultMaxRequests      = 1
	defaultInterval         = time.Minute
	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
)

// Config configures a breaker.
type Config struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

// Breaker is the breaker type shared by every side-effect adapter.
type Breaker = gobreaker.CircuitBreaker[any]

// New creates a breaker. State changes are logged and exported as a gauge
// (0 closed, 1 half-open, 2 open).
func New(cfg Config) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}

	log := logger.Named("breaker")
	metrics.UpdateBreakerState(cfg.Name, int(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

// Do runs fn through b, discarding the result value.
func Do(b *Breaker, fn func() error) error {
	_, err := b.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// IsOpen reports whether err was returned because the breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
