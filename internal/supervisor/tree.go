// Package supervisor runs the long-lived services of a node under a suture tree.
//
// The tree has three layers so a crash in one does not take the others down:
//   - detection: the partition workers (the serialization points)
//   - effects: cluster synchronizer, alert dispatcher, persistence gateway
//   - api: the HTTP server
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64
	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout is the maximum time to wait for a service to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the node's supervisor hierarchy.
type Tree struct {
	root      *suture.Supervisor
	detection *suture.Supervisor
	effects   *suture.Supervisor
	api       *suture.Supervisor
}

// NewTree builds the hierarchy. Supervisor events are logged through log.
func NewTree(name string, log *slog.Logger, cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: log}).MustHook()

	t := &Tree{
		root:      suture.New(name, rootSpec),
		detection: suture.New("detection", childSpec),
		effects:   suture.New("effects", childSpec),
		api:       suture.New("api", childSpec),
	}
	t.root.Add(t.detection)
	t.root.Add(t.effects)
	t.root.Add(t.api)
	return t
}

// AddDetection adds a service to the detection layer.
func (t *Tree) AddDetection(svc suture.Service) suture.ServiceToken { return t.detection.Add(svc) }

// AddEffect adds a service to the effects layer.
func (t *Tree) AddEffect(svc suture.Service) suture.ServiceToken { return t.effects.Add(svc) }

// AddAPI adds a service to the api layer.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken { return t.api.Add(svc) }

// ServeBackground starts the tree. The returned channel yields the result once it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that did not stop in time.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
