package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// ATR represents the Average True Range indicator.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator with default configuration.
func NewATR() Indicator {
	return &ATR{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (a *ATR) Name() types.IndicatorType {
	return types.IndicatorTypeATR
}

// Config configures the ATR indicator. Expected parameters: period (int).
func (a *ATR) Config(params ...any) error {
	if len(params) != 1 {
		return missingParameterError(a.Name(), "1 parameter: period (int)")
	}

	period, err := positivePeriod("period", params[0])
	if err != nil {
		return err
	}

	a.period = period

	return nil
}

// Warmup returns the index of the first bar with an ATR value.
func (a *ATR) Warmup() int {
	return a.period
}

// Calculate smooths the true range with Wilder's method, seeded by the mean of
// the first period true ranges.
func (a *ATR) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < a.period+1 {
		return nil, insufficientData(a.Name(), a.period+1, len(bars))
	}

	return Output{types.ColumnATR: wilderFrom(trueRange(bars), a.period, 1)}, nil
}
