package indicator

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

// RSI represents the Relative Strength Index indicator using Wilder smoothing.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
	if len(params) != 1 {
		return missingParameterError(r.Name(), "1 parameter: period (int)")
	}

	period, err := positivePeriod("period", params[0])
	if err != nil {
		return err
	}

	r.period = period

	return nil
}

// Warmup returns the index of the first bar with an RSI value.
func (r *RSI) Warmup() int {
	return r.period
}

// Calculate returns the RSI column. A window without any price movement has no
// defined RSI and is left NaN.
func (r *RSI) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < r.period+1 {
		return nil, insufficientData(r.Name(), r.period+1, len(bars))
	}

	changes := closeChanges(bars)
	gains := make([]float64, len(bars))
	losses := make([]float64, len(bars))

	for i := 1; i < len(bars); i++ {
		change := changes[i]

		switch {
		case math.IsNaN(change):
			// smoothing holds across a bar without a close
			gains[i], losses[i] = change, change
		case change > 0:
			gains[i] = change
		default:
			losses[i] = -change
		}
	}

	avgGain := wilderFrom(gains, r.period, 1)
	avgLoss := wilderFrom(losses, r.period, 1)

	out := nanSeries(len(bars))

	for i := r.period; i < len(bars); i++ {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}

	return Output{types.ColumnRSI: out}, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return math.NaN()
	case avgLoss == 0:
		return 100
	default:
		rs := avgGain / avgLoss

		return 100 - 100/(1+rs)
	}
}
