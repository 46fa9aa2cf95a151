package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// BollingerBands indicator implements Bollinger Bands calculation.
type BollingerBands struct {
	period int
	stdDev float64
}

// NewBollingerBands creates a new Bollinger Bands indicator with default configuration.
func NewBollingerBands() Indicator {
	return &BollingerBands{
		period: 20,
		stdDev: 2.0,
	}
}

// Name returns the name of the indicator.
func (bb *BollingerBands) Name() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

// Config configures the Bollinger Bands indicator.
// Expected parameters: period (int), stdDev (float64).
func (bb *BollingerBands) Config(params ...any) error {
	if len(params) != 2 {
		return missingParameterError(bb.Name(), "2 parameters: period (int), stdDev (float64)")
	}

	period, err := positivePeriod("period", params[0])
	if err != nil {
		return err
	}

	var stdDev float64

	switch v := params[1].(type) {
	case float64:
		stdDev = v
	case int:
		stdDev = float64(v)
	default:
		return invalidTypeError("stdDev", "float64")
	}

	if stdDev <= 0 {
		return invalidTypeError("stdDev", "positive float64")
	}

	bb.period = period
	bb.stdDev = stdDev

	return nil
}

// Warmup returns the index of the first bar with bands.
func (bb *BollingerBands) Warmup() int {
	return bb.period - 1
}

// Calculate returns the middle band (SMA) and the bands stdDev population
// standard deviations around it.
func (bb *BollingerBands) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < bb.period {
		return nil, insufficientData(bb.Name(), bb.period, len(bars))
	}

	closes := types.Closes(bars)
	middle := sma(closes, bb.period)
	std := rollingStd(closes, middle, bb.period)

	upper := nanSeries(len(bars))
	lower := nanSeries(len(bars))

	for i := bb.period - 1; i < len(bars); i++ {
		upper[i] = middle[i] + bb.stdDev*std[i]
		lower[i] = middle[i] - bb.stdDev*std[i]
	}

	return Output{
		types.ColumnBBUpper:  upper,
		types.ColumnBBMiddle: middle,
		types.ColumnBBLower:  lower,
	}, nil
}
