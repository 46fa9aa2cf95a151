package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// EMA indicator implements Exponential Moving Average calculation for the
// fast, mid and slow trend lines.
type EMA struct {
	fast int
	mid  int
	slow int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{
		fast: 8,
		mid:  21,
		slow: 55,
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: fast, mid, slow (int).
func (e *EMA) Config(params ...any) error {
	if len(params) != 3 {
		return missingParameterError(e.Name(), "3 parameters: fast, mid, slow (int)")
	}

	fast, err := positivePeriod("fast", params[0])
	if err != nil {
		return err
	}

	mid, err := positivePeriod("mid", params[1])
	if err != nil {
		return err
	}

	slow, err := positivePeriod("slow", params[2])
	if err != nil {
		return err
	}

	e.fast, e.mid, e.slow = fast, mid, slow

	return nil
}

// Warmup returns the index of the first bar with a fast EMA.
func (e *EMA) Warmup() int {
	return e.fast - 1
}

// Calculate seeds each EMA with the simple mean of its first period closes.
func (e *EMA) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < e.fast {
		return nil, insufficientData(e.Name(), e.fast, len(bars))
	}

	closes := types.Closes(bars)

	return Output{
		types.ColumnEMAFast: ema(closes, e.fast),
		types.ColumnEMAMid:  ema(closes, e.mid),
		types.ColumnEMASlow: ema(closes, e.slow),
	}, nil
}
