package check

import (
	"fmt"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/model"
)

// minRegularitySamples is the fewest timestamps that yield two intervals.
const minRegularitySamples = 3

// Interval flags actions repeated at near-constant intervals.
// Suspicion grows as the coefficient of variation of recent intervals falls
// below the regularity threshold.
type Interval struct {
	weight      float64
	threshold   float64
	maxMeanMs   float64
	cleanFactor float64
	cleanCredit float64
	grace       int
}

type intervalScratch struct {
	ts        []int64
	intervals []float64
}

// NewInterval builds the check from configuration.
func NewInterval(cfg config.CheckConfig) *Interval {
	grace := cfg.GracePeriodSamples
	if grace < minRegularitySamples {
		grace = minRegularitySamples
	}
	return &Interval{
		weight:      cfg.Weight,
		threshold:   cfg.Param("regularity_threshold", 0.05),
		maxMeanMs:   cfg.Param("max_mean_interval_ms", 1000),
		cleanFactor: cfg.Param("clean_cv_factor", 4),
		cleanCredit: cfg.Param("clean_credit", 0),
		grace:       grace,
	}
}

func (c *Interval) ID() string { return config.CheckInterval }

func (c *Interval) InterestedEventTypes() []model.EventType {
	return []model.EventType{model.ActionPerformed}
}

func (c *Interval) Evaluate(ev model.ParticipantEvent, view View) model.ScoreDelta {
	action := ev.Payload.Action
	if action == "" {
		return model.ScoreDelta{}
	}
	s := ScratchOf(view, func() *intervalScratch { return &intervalScratch{} })
	s.ts = view.AppendTimestamps(s.ts[:0], action)
	if len(s.ts) < c.grace {
		return model.ScoreDelta{}
	}

	s.intervals = IntervalsMillis(s.intervals[:0], s.ts)
	mean := Mean(s.intervals)
	if c.maxMeanMs > 0 && mean > c.maxMeanMs {
		return model.ScoreDelta{}
	}
	cv, ok := CoefficientOfVariation(s.intervals)
	if !ok {
		return model.ScoreDelta{}
	}

	if cv < c.threshold {
		confidence := (c.threshold - cv) / c.threshold
		return model.ScoreDelta{
			Amount:     c.weight * confidence,
			Confidence: confidence,
			Evidence:   fmt.Sprintf("action=%s cv=%.4f mean=%.1fms n=%d", action, cv, mean, len(s.intervals)),
		}
	}
	if c.cleanCredit > 0 && cv >= c.threshold*c.cleanFactor {
		return model.ScoreDelta{Amount: -c.cleanCredit, Confidence: 1}
	}
	return model.ScoreDelta{}
}
