package normalize

import (
	"strings"

	"github.com/okian/tempoguard/internal/domain/model"
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock replaces the monotonic clock.
func WithClock(c Clock) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithKind maps an additional platform kind to an event type.
// Kinds match case-insensitively, as incoming kinds do.
func WithKind(kind string, t model.EventType) Option {
	kind = strings.ToLower(strings.TrimSpace(kind))
	return func(n *Normalizer) {
		if kind != "" {
			n.kinds[kind] = t
		}
	}
}

// WithIDGenerator sets how event ids are minted when a delivery id is absent.
func WithIDGenerator(gen func() string) Option {
	return func(n *Normalizer) {
		if gen != nil {
			n.newID = gen
		}
	}
}
