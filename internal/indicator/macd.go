package indicator

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

// MACD implements Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   12,
		slowPeriod:   26,
		signalPeriod: 9,
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fast, slow, signal (int).
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return missingParameterError(m.Name(), "3 parameters: fast, slow, signal (int)")
	}

	fast, err := positivePeriod("fast", params[0])
	if err != nil {
		return err
	}

	slow, err := positivePeriod("slow", params[1])
	if err != nil {
		return err
	}

	signal, err := positivePeriod("signal", params[2])
	if err != nil {
		return err
	}

	if fast >= slow {
		return invalidPeriodError("fast (must be below slow)", fast)
	}

	m.fastPeriod, m.slowPeriod, m.signalPeriod = fast, slow, signal

	return nil
}

// Warmup returns the index of the first bar with a MACD line.
func (m *MACD) Warmup() int {
	return m.slowPeriod - 1
}

// Calculate returns the MACD line, signal and histogram. The signal EMA starts
// at the first defined line value.
func (m *MACD) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < m.slowPeriod {
		return nil, insufficientData(m.Name(), m.slowPeriod, len(bars))
	}

	closes := types.Closes(bars)
	fast := ema(closes, m.fastPeriod)
	slow := ema(closes, m.slowPeriod)

	line := nanSeries(len(bars))
	for i := m.slowPeriod - 1; i < len(bars); i++ {
		line[i] = fast[i] - slow[i]
	}

	signal := emaFrom(line, m.signalPeriod, m.slowPeriod-1)

	hist := nanSeries(len(bars))
	for i := range hist {
		if !math.IsNaN(signal[i]) {
			hist[i] = line[i] - signal[i]
		}
	}

	return Output{
		types.ColumnMACDLine:   line,
		types.ColumnMACDSignal: signal,
		types.ColumnMACDHist:   hist,
	}, nil
}
