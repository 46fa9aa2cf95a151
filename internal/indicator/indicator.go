package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// Output maps each column an indicator produces to one value per input bar.
// NaN entries mark bars the indicator could not compute (warmup), which keep
// the row fallback.
type Output map[types.Column][]float64

// Indicator interface defines methods that any technical indicator must implement.
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Config configures the indicator lookbacks
	Config(params ...any) error
	// Warmup returns the index of the first bar the indicator can produce
	Warmup() int
	// Calculate computes the indicator columns over the whole series
	Calculate(bars []types.Bar) (Output, error)
}

// intParam reads an int parameter accepting whole float64 values as well, since
// YAML and JSON decoders hand numbers over as floats.
func intParam(name string, v any) (int, error) {
	switch p := v.(type) {
	case int:
		return p, nil
	case float64:
		if p != float64(int(p)) {
			return 0, invalidTypeError(name, "int")
		}

		return int(p), nil
	default:
		return 0, invalidTypeError(name, "int")
	}
}

func positivePeriod(name string, v any) (int, error) {
	period, err := intParam(name, v)
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, invalidPeriodError(name, period)
	}

	return period, nil
}
