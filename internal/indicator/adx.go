package indicator

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

// ADX implements the Average Directional Index.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator with default configuration.
func NewADX() Indicator {
	return &ADX{
		period: 14,
	}
}

// Name returns the name of the indicator.
func (a *ADX) Name() types.IndicatorType {
	return types.IndicatorTypeADX
}

// Config configures the ADX indicator. Expected parameters: period (int).
func (a *ADX) Config(params ...any) error {
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

// Warmup returns the index of the first bar with an ADX value.
func (a *ADX) Warmup() int {
	return 2*a.period - 1
}

// Calculate derives +DI and -DI from Wilder-smoothed directional movement and
// smooths their DX once more into the ADX.
func (a *ADX) Calculate(bars []types.Bar) (Output, error) {
	if len(bars) < 2*a.period {
		return nil, insufficientData(a.Name(), 2*a.period, len(bars))
	}

	plusDM := nanSeries(len(bars))
	minusDM := nanSeries(len(bars))

	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low

		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}

		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := wilderFrom(trueRange(bars), a.period, 1)
	plus := wilderFrom(plusDM, a.period, 1)
	minus := wilderFrom(minusDM, a.period, 1)

	dx := nanSeries(len(bars))
	for i := a.period; i < len(bars); i++ {
		dx[i] = directionalIndex(plus[i], minus[i], tr[i])
	}

	return Output{types.ColumnADX: wilderFrom(dx, a.period, a.period)}, nil
}

func directionalIndex(plusDM, minusDM, tr float64) float64 {
	if tr == 0 || math.IsNaN(tr) {
		return 0
	}

	plusDI := 100 * plusDM / tr
	minusDI := 100 * minusDM / tr

	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}

	return 100 * math.Abs(plusDI-minusDI) / sum
}
