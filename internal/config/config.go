// Package config defines engine configuration structures and their defaults.
//
// Conventions:
// - New() returns a Config populated with defaults; Load layers file and env on top.
// - Scoring constants for every check live here, never in check code.
// - Inconsistent values fail fast in Validate, before any participant connects.
package config

import (
	"runtime"
	"time"
)

// Check identifiers. They double as keys under "checks" in configuration.
const (
	CheckInterval    = "interval"
	CheckReaction    = "reaction"
	CheckDuplication = "duplication"
	CheckStability   = "stability"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// NodeID identifies this process in cluster verdicts. Empty means generate one.
	NodeID string `koanf:"node_id"`

	// Partitions is the number of serialization points; a participant always maps to one.
	Partitions int `koanf:"partitions" validate:"gte=1"`

	// PartitionQueueSize bounds each partition's task queue.
	PartitionQueueSize int `koanf:"partition_queue_size" validate:"gte=1"`

	// DedupeSize sets the size of the duplicate-delivery cache. Zero disables suppression.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// RingSize is the number of timestamps kept per tracked action type.
	RingSize int `koanf:"ring_size" validate:"gte=3"`

	// MaxTrackedActions caps how many distinct action types keep a ring per participant.
	MaxTrackedActions int `koanf:"max_tracked_actions" validate:"gte=1"`

	Ledger      LedgerConfig      `koanf:"ledger"`
	Checks      ChecksConfig      `koanf:"checks"`
	Cluster     ClusterConfig     `koanf:"cluster"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Alerts      AlertsConfig      `koanf:"alerts"`
}

// LedgerConfig configures score bookkeeping shared by all checks.
type LedgerConfig struct {
	// DecayFunction is "linear" (points per second) or "exponential" (rate per second).
	DecayFunction string `koanf:"decay_function" validate:"oneof=linear exponential"`

	// HistorySize bounds the applied-delta history kept per record.
	HistorySize int `koanf:"history_size" validate:"gte=1"`
}

// CheckConfig holds the tunables of one check.
type CheckConfig struct {
	Enabled              bool               `koanf:"enabled"`
	Weight               float64            `koanf:"weight" validate:"gte=0"`
	DecayRatePerSecond   float64            `koanf:"decay_rate_per_second" validate:"gte=0"`
	EscalationThresholds []float64          `koanf:"escalation_thresholds" validate:"min=1,dive,gt=0"`
	GracePeriodSamples   int                `koanf:"grace_period_samples" validate:"gte=0"`
	Params               map[string]float64 `koanf:"params"`
}

// Param returns a named parameter or def when unset.
func (c CheckConfig) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// ChecksConfig lists every built-in check.
type ChecksConfig struct {
	Interval    CheckConfig `koanf:"interval"`
	Reaction    CheckConfig `koanf:"reaction"`
	Duplication CheckConfig `koanf:"duplication"`
	Stability   CheckConfig `koanf:"stability"`
}

// All returns the checks keyed by id.
func (c ChecksConfig) All() map[string]CheckConfig {
	return map[string]CheckConfig{
		CheckInterval:    c.Interval,
		CheckReaction:    c.Reaction,
		CheckDuplication: c.Duplication,
		CheckStability:   c.Stability,
	}
}

// Order is the registration order of checks.
func (c ChecksConfig) Order() []string {
	return []string{CheckInterval, CheckReaction, CheckDuplication, CheckStability}
}

// ClusterConfig configures verdict synchronization.
type ClusterConfig struct {
	// Transport is none, memory, redis or nats.
	Transport string `koanf:"transport" validate:"oneof=none memory redis nats"`

	// Topic is the pub/sub channel or subject shared by all nodes.
	Topic string `koanf:"topic" validate:"required"`

	RedisURL string `koanf:"redis_url"`
	NATSURL  string `koanf:"nats_url"`

	// ReconcileInterval is the period of the full-state re-broadcast sweep.
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"gt=0"`

	// OutboundQueueSize bounds verdicts waiting to be published.
	OutboundQueueSize int `koanf:"outbound_queue_size" validate:"gte=1"`

	// VerdictBookSize bounds remembered cluster levels for disconnected participants.
	VerdictBookSize int `koanf:"verdict_book_size" validate:"gte=1"`
}

// PersistenceConfig configures the persistence gateway.
type PersistenceConfig struct {
	// Driver is none, memory or badger.
	Driver       string        `koanf:"driver" validate:"oneof=none memory badger"`
	Path         string        `koanf:"path"`
	QueueSize    int           `koanf:"queue_size" validate:"gte=1"`
	MaxRetries   int           `koanf:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `koanf:"retry_backoff" validate:"gte=0"`
	// HistoryLimit bounds snapshots kept per participant by the memory store.
	HistoryLimit int `koanf:"history_limit" validate:"gte=1"`
}

// AlertsConfig configures the alert dispatcher.
type AlertsConfig struct {
	QueueSize int           `koanf:"queue_size" validate:"gte=1"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`

	// WebhookURL enables the webhook notifier when set.
	WebhookURL         string  `koanf:"webhook_url"`
	WebhookFormat      string  `koanf:"webhook_format" validate:"oneof=json discord"`
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second" validate:"gt=0"`
	RateLimitBurst     int     `koanf:"rate_limit_burst" validate:"gte=1"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		Partitions:         runtime.NumCPU() * 2,
		PartitionQueueSize: 4096,
		DedupeSize:         100_000,
		RingSize:           20,
		MaxTrackedActions:  8,
		Ledger: LedgerConfig{
			DecayFunction: "linear",
			HistorySize:   32,
		},
		Checks: ChecksConfig{
			Interval: CheckConfig{
				Enabled:              true,
				Weight:               4,
				DecayRatePerSecond:   0.2,
				EscalationThresholds: []float64{6, 14, 24},
				GracePeriodSamples:   5,
				Params: map[string]float64{
					"regularity_threshold": 0.05,
					"max_mean_interval_ms": 1000,
					"clean_cv_factor":      4,
					"clean_credit":         0.5,
				},
			},
			Reaction: CheckConfig{
				Enabled:              true,
				Weight:               3,
				DecayRatePerSecond:   0.1,
				EscalationThresholds: []float64{5, 12, 20},
				GracePeriodSamples:   1,
				Params: map[string]float64{
					"floor_ms":             80,
					"max_window_ms":        1000,
					"latency_compensation": 0.5,
				},
			},
			Duplication: CheckConfig{
				Enabled:              true,
				Weight:               2,
				DecayRatePerSecond:   0.2,
				EscalationThresholds: []float64{6, 14, 24},
				GracePeriodSamples:   8,
				Params: map[string]float64{
					"sequence_length":     4,
					"bucket_ms":           5,
					"filter_capacity":     256,
					"false_positive_rate": 0.001,
				},
			},
			Stability: CheckConfig{
				Enabled:              true,
				Weight:               3,
				DecayRatePerSecond:   0.1,
				EscalationThresholds: []float64{6, 14, 24},
				GracePeriodSamples:   10,
				Params: map[string]float64{
					"window":                 5,
					"consistent_sd_range_ms": 2,
					"consecutive_windows":    3,
					"max_mean_interval_ms":   1000,
					"outlier_window":         15,
					"outlier_samples":        15,
					"outlier_sd_ms":          10,
					"outlier_avg_sd_ms":      10,
				},
			},
		},
		Cluster: ClusterConfig{
			Transport:         "none",
			Topic:             "tempoguard.verdicts",
			RedisURL:          "redis://localhost:6379/0",
			NATSURL:           "nats://localhost:4222",
			ReconcileInterval: 30 * time.Second,
			OutboundQueueSize: 1024,
			VerdictBookSize:   50_000,
		},
		Persistence: PersistenceConfig{
			Driver:       "memory",
			Path:         "data/violations",
			QueueSize:    4096,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			HistoryLimit: 256,
		},
		Alerts: AlertsConfig{
			QueueSize:          1024,
			Timeout:            5 * time.Second,
			WebhookFormat:      "json",
			RateLimitPerSecond: 5,
			RateLimitBurst:     10,
		},
	}
}
