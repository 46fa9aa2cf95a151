package indicator

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// sma returns the rolling mean over period values. The first period-1 entries
// are NaN. A NaN input only poisons the windows that contain it.
func sma(values []float64, period int) []float64 {
	out := nanSeries(len(values))

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}

		out[i] = sum / float64(period)
	}

	return out
}

// rollingStd returns the population standard deviation over period values.
func rollingStd(values []float64, mean []float64, period int) []float64 {
	out := nanSeries(len(values))

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean[i]
			sum += d * d
		}

		out[i] = math.Sqrt(sum / float64(period))
	}

	return out
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// seedMean averages the finite values of window. It is NaN when there are none.
func seedMean(window []float64) float64 {
	sum, n := 0.0, 0

	for _, v := range window {
		if missing(v) {
			continue
		}

		sum += v
		n++
	}

	if n == 0 {
		return math.NaN()
	}

	return sum / float64(n)
}

// smooth runs the recursion next(prev, v) from the seed at seedAt. A missing
// input holds the previous value, so one bad bar does not poison the rest of
// the series.
func smooth(values []float64, period, start int, next func(prev, v float64) float64) []float64 {
	out := nanSeries(len(values))

	seedAt := start + period - 1
	if start < 0 || seedAt >= len(values) {
		return out
	}

	prev := seedMean(values[start : seedAt+1])
	out[seedAt] = prev

	for i := seedAt + 1; i < len(values); i++ {
		v := values[i]

		switch {
		case missing(v):
		case math.IsNaN(prev):
			prev = v
		default:
			prev = next(prev, v)
		}

		out[i] = prev
	}

	return out
}

// emaFrom computes an exponential moving average with alpha = 2/(period+1),
// seeded by the mean of values[start:start+period]. Entries before the seed
// are NaN.
func emaFrom(values []float64, period, start int) []float64 {
	alpha := 2.0 / float64(period+1)

	return smooth(values, period, start, func(prev, v float64) float64 {
		return v*alpha + prev*(1-alpha)
	})
}

func ema(values []float64, period int) []float64 {
	return emaFrom(values, period, 0)
}

// wilderFrom applies Wilder smoothing (alpha = 1/period) seeded by the mean of
// values[start:start+period].
func wilderFrom(values []float64, period, start int) []float64 {
	return smooth(values, period, start, func(prev, v float64) float64 {
		return (prev*float64(period-1) + v) / float64(period)
	})
}

// closeChanges returns each close minus the last finite close before it. The
// first bar, bars without a close and bars with no earlier close are NaN.
func closeChanges(bars []types.Bar) []float64 {
	out := nanSeries(len(bars))
	last := math.NaN()

	for i, bar := range bars {
		if missing(bar.Close) {
			continue
		}

		if !math.IsNaN(last) {
			out[i] = bar.Close - last
		}

		last = bar.Close
	}

	return out
}

// trueRange returns the true range per bar against the last finite close.
// The first bar has no previous close and is left NaN, as is any bar missing
// its high or low.
func trueRange(bars []types.Bar) []float64 {
	out := nanSeries(len(bars))
	prevClose := math.NaN()

	for i, bar := range bars {
		if i > 0 && !math.IsNaN(prevClose) && !missing(bar.High) && !missing(bar.Low) {
			out[i] = math.Max(bar.High-bar.Low,
				math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
		}

		if !missing(bar.Close) {
			prevClose = bar.Close
		}
	}

	return out
}
