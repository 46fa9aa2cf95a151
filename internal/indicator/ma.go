package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// MA indicator implements Simple Moving Average calculation over three
// lookbacks written to the SMA20, SMA50 and SMA200 columns.
type MA struct {
	periods [3]int
}

var maColumns = [3]types.Column{types.ColumnSMA20, types.ColumnSMA50, types.ColumnSMA200}

// NewMA creates a new MA indicator with default configuration.
func NewMA() Indicator {
	return &MA{
		periods: [3]int{20, 50, 200},
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() types.IndicatorType {
	return types.IndicatorTypeMA
}

// Config expects parameters: short, medium, long (int).
func (m *MA) Config(params ...any) error {
	if len(params) != len(m.periods) {
		return missingParameterError(m.Name(), "3 parameters: short, medium, long (int)")
	}

	var periods [3]int

	for i, p := range params {
		period, err := positivePeriod("period", p)
		if err != nil {
			return err
		}

		periods[i] = period
	}

	m.periods = periods

	return nil
}

// Warmup returns the index of the first bar with a short SMA.
func (m *MA) Warmup() int {
	return m.periods[0] - 1
}

// Calculate returns every SMA column the series is long enough for. It fails
// only when even the shortest lookback cannot be computed.
func (m *MA) Calculate(bars []types.Bar) (Output, error) {
	closes := types.Closes(bars)
	out := Output{}

	for i, period := range m.periods {
		if len(closes) < period {
			continue
		}

		out[maColumns[i]] = sma(closes, period)
	}

	if len(out) == 0 {
		return nil, insufficientData(m.Name(), m.periods[0], len(bars))
	}

	return out, nil
}
