package normalize

import (
	"sync/atomic"
	"time"
)

// Clock yields monotonic nanoseconds. Only differences between readings are meaningful.
type Clock interface {
	NowNanos() int64
}

type monotonicClock struct {
	base time.Time
}

// NewMonotonicClock returns a clock driven by the runtime's monotonic reading.
func NewMonotonicClock() Clock {
	return &monotonicClock{base: time.Now()}
}

func (c *monotonicClock) NowNanos() int64 {
	return c.base.UnixNano() + int64(time.Since(c.base))
}

// ManualClock is a settable clock for deterministic tests and replays.
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock starts a manual clock at the given reading.
func NewManualClock(startNanos int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(startNanos)
	return c
}

// NowNanos returns the current reading.
func (c *ManualClock) NowNanos() int64 { return c.now.Load() }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

// Set moves the clock to an absolute reading.
func (c *ManualClock) Set(nanos int64) { c.now.Store(nanos) }
