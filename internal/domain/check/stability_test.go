package check_test

import (
	"strings"
	"testing"
	"time"

	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/domain/check"
	. "github.com/smartystreets/goconvey/convey"
)

func stabilityConfig() config.CheckConfig {
	cfg := config.New().Checks.Stability
	cfg.GracePeriodSamples = 0
	cfg.Params["window"] = 5
	cfg.Params["consistent_sd_range_ms"] = 2
	cfg.Params["consecutive_windows"] = 3
	return cfg
}

func feedGaps(c check.Check, gaps []int) []float64 {
	p := newParticipant()
	out := []float64{act(c, p, "swap", 0).Amount}
	at := time.Duration(0)
	for _, g := range gaps {
		at += time.Duration(g) * time.Millisecond
		out = append(out, act(c, p, "swap", at).Amount)
	}
	return out
}

func TestStability(t *testing.T) {
	Convey("Given the stability check", t, func() {
		c := check.NewStability(stabilityConfig())

		Convey("When jitter repeats with a fixed spread", func() {
			cycle := []int{100, 110, 90, 105, 95}
			var gaps []int
			for i := 0; i < 3; i++ {
				gaps = append(gaps, cycle...)
			}
			deltas := feedGaps(c, gaps)

			Convey("Then it scores once the streak of stable windows completes", func() {
				// Timestamps 0..5 fill the first window, four deviations fill the series,
				// then three stable comparisons complete the streak at index 10.
				for i := 0; i < 10; i++ {
					So(deltas[i], ShouldEqual, 0)
				}
				So(deltas[10], ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the spread itself varies like a human's", func() {
			deltas := feedGaps(c, []int{100, 250, 80, 400, 120, 300, 90, 500, 150, 60, 350, 200, 130, 450, 70})
			var total float64
			for _, d := range deltas {
				total += d
			}
			So(total, ShouldEqual, 0)
		})

		Convey("When fast swaps land at the same speed on a schedule", func() {
			var gaps []int
			for i := 0; i < 16; i++ {
				gaps = append(gaps, 200, 210, 190, 205, 195, 20)
			}
			deltas := feedGaps(c, gaps)

			Convey("Then the tight low outliers score once enough are tracked", func() {
				// The fifteenth fast swap is the gap at index 90.
				for i := 0; i < 90; i++ {
					So(deltas[i], ShouldEqual, 0.0)
				}
				So(deltas[90], ShouldBeGreaterThan, 0)
			})

			Convey("Then the evidence names the outlier signal", func() {
				p := newParticipant()
				act(c, p, "swap", 0)
				at := time.Duration(0)
				var last string
				for _, g := range gaps {
					at += time.Duration(g) * time.Millisecond
					if d := act(c, p, "swap", at); d.Amount > 0 {
						last = d.Evidence
					}
				}
				So(strings.Contains(last, "low_outliers="), ShouldBeTrue)
			})
		})

		Convey("When fast swaps vary in speed like a human's", func() {
			fast := []int{20, 55, 35, 70, 15, 45}
			var gaps []int
			for i := 0; i < 16; i++ {
				gaps = append(gaps, 200, 210, 190, 205, 195, fast[i%len(fast)])
			}
			var total float64
			for _, d := range feedGaps(c, gaps) {
				total += d
			}
			So(total, ShouldEqual, 0.0)
		})
	})
}
