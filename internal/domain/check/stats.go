package check

import (
	"math"
	"slices"
)

// IntervalsMillis appends the gaps between consecutive timestamps, in milliseconds.
func IntervalsMillis(dst []float64, ts []int64) []float64 {
	for i := 1; i < len(ts); i++ {
		dst = append(dst, float64(ts[i]-ts[i-1])/1e6)
	}
	return dst
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n-1 denominator), or 0 for fewer than 2 values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// CoefficientOfVariation returns stddev/mean. ok is false when the mean is not positive.
func CoefficientOfVariation(xs []float64) (cv float64, ok bool) {
	m := Mean(xs)
	if m <= 0 {
		return 0, false
	}
	return StdDev(xs) / m, true
}

// Median returns the middle value, or the mean of the two middle values, of xs.
// It returns 0 for no values and leaves xs untouched.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return medianSorted(slices.Sorted(slices.Values(xs)))
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Outliers splits xs by Tukey fences: values below Q1-1.5*IQR are low, values
// above Q3+1.5*IQR are high. Quartiles are medians of the lower and upper
// halves of the sorted values. Fewer than 4 values have no outliers.
func Outliers(xs []float64) (low, high []float64) {
	if len(xs) < 4 {
		return nil, nil
	}
	sorted := slices.Sorted(slices.Values(xs))
	half := len(sorted) / 2
	q1 := medianSorted(sorted[:half])
	q3 := medianSorted(sorted[half:])
	iqr := q3 - q1
	lowFence, highFence := q1-1.5*iqr, q3+1.5*iqr
	for _, x := range sorted {
		switch {
		case x < lowFence:
			low = append(low, x)
		case x > highFence:
			high = append(high, x)
		}
	}
	return low, high
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
