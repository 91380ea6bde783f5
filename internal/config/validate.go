package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks struct constraints and cross-field consistency.
// Any error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for _, id := range c.Checks.Order() {
		cc := c.Checks.All()[id]
		if err := validateThresholds(id, cc.EscalationThresholds); err != nil {
			return err
		}
		if !cc.Enabled {
			continue
		}
		if id == CheckInterval && cc.GracePeriodSamples > c.RingSize {
			return fmt.Errorf("%w: checks.%s.grace_period_samples (%d) exceeds ring_size (%d)",
				ErrInvalidConfig, id, cc.GracePeriodSamples, c.RingSize)
		}
	}

	if c.Checks.Interval.Enabled && c.Checks.Interval.Param("regularity_threshold", 0) <= 0 {
		return fmt.Errorf("%w: checks.interval.params.regularity_threshold must be positive", ErrInvalidConfig)
	}
	if c.Checks.Reaction.Enabled && c.Checks.Reaction.Param("floor_ms", 0) <= 0 {
		return fmt.Errorf("%w: checks.reaction.params.floor_ms must be positive", ErrInvalidConfig)
	}
	if c.Checks.Duplication.Enabled && c.Checks.Duplication.Param("sequence_length", 0) < 2 {
		return fmt.Errorf("%w: checks.duplication.params.sequence_length must be at least 2", ErrInvalidConfig)
	}
	if c.Checks.Stability.Enabled {
		window := int(c.Checks.Stability.Param("window", 0))
		if window < 2 || window+1 > c.RingSize {
			return fmt.Errorf("%w: checks.stability.params.window must be in [2, ring_size-1]", ErrInvalidConfig)
		}
		outliers := int(c.Checks.Stability.Param("outlier_window", 0))
		if outliers < 4 || outliers+1 > c.RingSize {
			return fmt.Errorf("%w: checks.stability.params.outlier_window must be in [4, ring_size-1]", ErrInvalidConfig)
		}
	}

	switch c.Cluster.Transport {
	case "redis":
		if c.Cluster.RedisURL == "" {
			return fmt.Errorf("%w: cluster.redis_url is required for the redis transport", ErrInvalidConfig)
		}
	case "nats":
		if c.Cluster.NATSURL == "" {
			return fmt.Errorf("%w: cluster.nats_url is required for the nats transport", ErrInvalidConfig)
		}
	}
	if c.Persistence.Driver == "badger" && c.Persistence.Path == "" {
		return fmt.Errorf("%w: persistence.path is required for the badger driver", ErrInvalidConfig)
	}
	return nil
}

// validateThresholds rejects empty or non strictly ascending threshold lists.
func validateThresholds(id string, thresholds []float64) error {
	if len(thresholds) == 0 {
		return fmt.Errorf("%w: checks.%s.escalation_thresholds must not be empty", ErrInvalidConfig, id)
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("%w: checks.%s.escalation_thresholds must be strictly ascending, got %v",
				ErrInvalidConfig, id, thresholds)
		}
	}
	return nil
}
