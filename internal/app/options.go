package service

import (
	"time"

	"github.com/okian/tempoguard/internal/adapters/alert"
	"github.com/okian/tempoguard/internal/adapters/repository"
	"github.com/okian/tempoguard/internal/domain/cluster"
	"github.com/okian/tempoguard/internal/domain/normalize"
	"github.com/okian/tempoguard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTransport uses t for cluster sync instead of the configured transport.
func WithTransport(t cluster.Transport) Option {
	return func(s *Service) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithStore uses store for persistence instead of the configured driver.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithNotifiers replaces the configured alert notifiers.
func WithNotifiers(n ...alert.Notifier) Option {
	return func(s *Service) {
		if len(n) > 0 {
			s.notifiers = n
		}
	}
}

// WithClock sets the clock stamping events. Tests use a manual clock.
func WithClock(c normalize.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithWallClock sets the clock used for alert and snapshot times.
func WithWallClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.wall = fn
		}
	}
}
