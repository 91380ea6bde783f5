package check

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

// Registry holds checks in registration order. It is append-only and becomes
// immutable on Freeze or on the first Dispatch.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool
	checks []Check
	ids    map[string]struct{}
	byType map[model.EventType][]Check
	log    logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[string]struct{}),
		byType: make(map[model.EventType][]Check),
		log:    logger.Named("check-registry"),
	}
}

// Register appends c. It fails after Freeze or when the id is already taken.
func (r *Registry) Register(c Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, c.ID())
	}
	if _, dup := r.ids[c.ID()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateCheck, c.ID())
	}
	r.ids[c.ID()] = struct{}{}
	r.checks = append(r.checks, c)
	for _, t := range c.InterestedEventTypes() {
		r.byType[t] = append(r.byType[t], c)
	}
	return nil
}

// Freeze seals the registry.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether the registry is sealed.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Checks returns the registered checks in order.
func (r *Registry) Checks() []Check {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Dispatch evaluates every check interested in ev.Type, in registration order, and
// returns the non-zero deltas. A check that panics or returns a non-finite amount
// contributes nothing.
func (r *Registry) Dispatch(ctx context.Context, ev model.ParticipantEvent, views ViewProvider) []model.ScoreDelta {
	if !r.frozen.Load() {
		r.Freeze()
	}
	interested := r.byType[ev.Type]
	if len(interested) == 0 {
		return nil
	}

	var out []model.ScoreDelta
	for _, c := range interested {
		d, ok := r.evaluate(ctx, c, ev, views)
		if !ok || d.IsZero() {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (r *Registry) evaluate(ctx context.Context, c Check, ev model.ParticipantEvent, views ViewProvider) (d model.ScoreDelta, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordErrorByComponent("check", c.ID())
			r.log.Error(ctx, "check panicked",
				logger.String("check", c.ID()),
				logger.String("participant", ev.ParticipantID),
				logger.Any("panic", p))
			ok = false
		}
	}()

	metrics.RecordCheckEvaluation(c.ID())
	d = c.Evaluate(ev, views.ViewFor(c.ID()))
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) {
		metrics.RecordErrorByComponent("check", c.ID())
		r.log.Warn(ctx, "check returned a non-finite amount", logger.String("check", c.ID()))
		return model.ScoreDelta{}, false
	}
	d.CheckID = c.ID()
	d.Confidence = clamp01(d.Confidence)
	return d, true
}
