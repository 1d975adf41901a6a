// Package fall - This file contains the statistics helpers used by the fall tracker.
package fall

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StdDev returns the population standard deviation of xs.
//
// The divisor is len(xs), matching the convention the thresholds were tuned with.
// An empty series returns 0 so callers can evaluate thresholds before any sample
// has been collected.
//
// Arguments:
//   - xs: The samples to reduce.
//
// Returns:
//   - float64: The standard deviation, or 0 when xs is empty.
//
// @example
// sd := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}) // 2
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil)
}

// axisRatio divides the A spread by the B spread. A zero divisor yields +Inf when
// A moved at all and 0 when neither axis moved, so the comparison is never NaN.
func axisRatio(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return a / b
}
