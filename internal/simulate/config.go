// Package simulate drives synthetic human and bot traffic against a running node over
// HTTP and reports which participants ended up escalated.
package simulate

import (
	"errors"
	"time"
)

// Config controls one simulation run.
type Config struct {
	BaseURL  string
	Humans   int
	Bots     int
	Duration time.Duration
	// BotInterval is the fixed cadence of bot actions.
	BotInterval time.Duration
	// HumanMean and HumanJitter shape human click intervals.
	HumanMean   time.Duration
	HumanJitter time.Duration
	// HeartbeatEvery spaces heartbeat events carrying a ping sample.
	HeartbeatEvery time.Duration
	Seed           int64
	RequestTimeout time.Duration
}

// DefaultConfig returns a small mixed population.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		Humans:         8,
		Bots:           2,
		Duration:       20 * time.Second,
		BotInterval:    100 * time.Millisecond,
		HumanMean:      240 * time.Millisecond,
		HumanJitter:    70 * time.Millisecond,
		HeartbeatEvery: time.Second,
		Seed:           1,
		RequestTimeout: 5 * time.Second,
	}
}

// ErrInvalidConfig reports a configuration that cannot run.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Validate rejects unusable settings.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Humans < 0 || c.Bots < 0 || c.Humans+c.Bots == 0:
		return errors.Join(ErrInvalidConfig, errors.New("at least one participant is required"))
	case c.Duration <= 0 || c.BotInterval <= 0 || c.HumanMean <= 0 || c.HeartbeatEvery <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("durations must be positive"))
	}
	return nil
}
