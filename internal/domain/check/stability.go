package check

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/ring"
)

const (
	// stabilitySeries is how many recent window deviations are compared.
	stabilitySeries = 4
	// maxStabilityActions bounds the per-action series kept in scratch.
	maxStabilityActions = 16
	// lowOutlierHistory bounds the low outliers tracked per action.
	lowOutlierHistory = 30
	// outlierSDHistory bounds the outlier deviations averaged per action.
	outlierSDHistory = 10
	// minOutlierIntervals is the smallest window with quartiles worth trusting.
	minOutlierIntervals = 4
)

// Stability flags jittered automation: the spread of intervals may look human,
// but it stays the same from one window to the next. Two signals are tracked per
// action and the stronger one scores:
//   - sd drift: the standard deviation of consecutive rolling windows barely
//     moves for a streak of windows.
//   - low outliers: intervals far below the recent window's lower quartile are
//     tracked, and their standard deviation, and its running average, stay
//     under a few milliseconds.
type Stability struct {
	weight      float64
	window      int
	rangeMs     float64
	consecutive int
	maxMeanMs   float64
	grace       int

	outlierWindow  int
	outlierSamples int
	outlierSDMs    float64
	outlierAvgSDMs float64
}

type stabilitySeriesState struct {
	sds    *ring.Ring[float64]
	streak int

	lowOutliers *ring.Ring[float64]
	outlierSDs  *ring.Ring[float64]
}

type stabilityScratch struct {
	ts        []int64
	intervals []float64
	recent    []float64
	values    []float64
	samples   int
	series    map[string]*stabilitySeriesState
}

// NewStability builds the check from configuration.
func NewStability(cfg config.CheckConfig) *Stability {
	return &Stability{
		weight:      cfg.Weight,
		window:      int(cfg.Param("window", 5)),
		rangeMs:     cfg.Param("consistent_sd_range_ms", 2),
		consecutive: int(cfg.Param("consecutive_windows", 3)),
		maxMeanMs:   cfg.Param("max_mean_interval_ms", 1000),
		grace:       cfg.GracePeriodSamples,

		outlierWindow:  int(cfg.Param("outlier_window", 15)),
		outlierSamples: int(cfg.Param("outlier_samples", 15)),
		outlierSDMs:    cfg.Param("outlier_sd_ms", 10),
		outlierAvgSDMs: cfg.Param("outlier_avg_sd_ms", 10),
	}
}

func (c *Stability) ID() string { return config.CheckStability }

func (c *Stability) InterestedEventTypes() []model.EventType {
	return []model.EventType{model.ActionPerformed}
}

func (c *Stability) Evaluate(ev model.ParticipantEvent, view View) model.ScoreDelta {
	action := ev.Payload.Action
	if action == "" {
		return model.ScoreDelta{}
	}
	s := ScratchOf(view, func() *stabilityScratch {
		return &stabilityScratch{series: make(map[string]*stabilitySeriesState)}
	})

	s.ts = view.AppendTimestamps(s.ts[:0], action)
	if len(s.ts) < c.window+1 {
		return model.ScoreDelta{}
	}
	s.intervals = IntervalsMillis(s.intervals[:0], s.ts[len(s.ts)-c.window-1:])

	series := s.series[action]
	if series == nil {
		if len(s.series) >= maxStabilityActions {
			clear(s.series)
		}
		series = &stabilitySeriesState{
			sds:         ring.New[float64](stabilitySeries),
			lowOutliers: ring.New[float64](lowOutlierHistory),
			outlierSDs:  ring.New[float64](outlierSDHistory),
		}
		s.series[action] = series
	}

	mean := Mean(s.intervals)
	if c.maxMeanMs > 0 && mean > c.maxMeanMs {
		series.sds.Reset()
		series.streak = 0
		return model.ScoreDelta{}
	}
	s.samples++

	drift := c.driftDelta(s, series, action, mean)
	low := c.lowOutlierDelta(s, series, action)
	if s.samples < c.grace {
		return model.ScoreDelta{}
	}
	if low.Amount > drift.Amount {
		return low
	}
	return drift
}

// driftDelta scores a streak of windows whose deviations barely move.
func (c *Stability) driftDelta(s *stabilityScratch, series *stabilitySeriesState, action string, mean float64) model.ScoreDelta {
	series.sds.Push(StdDev(s.intervals))
	if !series.sds.Full() {
		return model.ScoreDelta{}
	}

	var drift float64
	for i := 1; i < series.sds.Len(); i++ {
		drift += math.Abs(series.sds.At(i) - series.sds.At(i-1))
	}
	drift /= float64(series.sds.Len() - 1)

	if drift >= c.rangeMs {
		series.streak = 0
		return model.ScoreDelta{}
	}
	series.streak++
	if series.streak < c.consecutive || s.samples < c.grace {
		return model.ScoreDelta{}
	}
	series.streak = 0

	confidence := 1 - drift/c.rangeMs
	return model.ScoreDelta{
		Amount:     c.weight * confidence,
		Confidence: confidence,
		Evidence:   fmt.Sprintf("action=%s sd_drift=%.3fms mean=%.1fms", action, drift, mean),
	}
}

// lowOutlierDelta tracks the newest interval when it is a low outlier of the
// recent window and scores when the tracked outliers are consistently tight.
func (c *Stability) lowOutlierDelta(s *stabilityScratch, series *stabilitySeriesState, action string) model.ScoreDelta {
	if c.outlierWindow < minOutlierIntervals || c.outlierSamples < 2 {
		return model.ScoreDelta{}
	}
	from := max(len(s.ts)-c.outlierWindow-1, 0)
	s.recent = IntervalsMillis(s.recent[:0], s.ts[from:])
	if len(s.recent) < minOutlierIntervals {
		return model.ScoreDelta{}
	}

	low, _ := Outliers(s.recent)
	if newest := s.recent[len(s.recent)-1]; slices.Contains(low, newest) {
		series.lowOutliers.Push(newest)
	} else {
		return model.ScoreDelta{}
	}
	if series.lowOutliers.Len() < c.outlierSamples {
		return model.ScoreDelta{}
	}

	s.values = series.lowOutliers.AppendTo(s.values[:0])
	sd := StdDev(s.values)
	series.outlierSDs.Push(sd)
	avg := Mean(series.outlierSDs.AppendTo(s.values[:0]))
	if sd >= c.outlierSDMs || avg >= c.outlierAvgSDMs {
		return model.ScoreDelta{}
	}

	confidence := clamp01(1 - sd/c.outlierSDMs)
	if confidence == 0 {
		return model.ScoreDelta{}
	}
	return model.ScoreDelta{
		Amount:     c.weight * confidence,
		Confidence: confidence,
		Evidence: fmt.Sprintf("action=%s low_outliers=%d outlier_sd=%.3fms avg_outlier_sd=%.3fms",
			action, series.lowOutliers.Len(), sd, avg),
	}
}
