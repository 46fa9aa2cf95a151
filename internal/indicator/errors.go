package indicator

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

func missingParameterError(name types.IndicatorType, expected string) error {
	return errors.Newf(errors.ErrCodeMissingParameter, "%s: Config expects %s", name, expected)
}

func invalidTypeError(param string, expected string) error {
	return errors.Newf(errors.ErrCodeInvalidType, "invalid type for %s parameter, expected %s", param, expected)
}

func invalidPeriodError(param string, period int) error {
	return errors.Newf(errors.ErrCodeInvalidPeriod, "%s must be a positive integer, got %d", param, period)
}

func insufficientData(name types.IndicatorType, required, actual int) error {
	return errors.NewInsufficientDataErrorf(required, actual, string(name),
		"%s requires %d bars, got %d", name, required, actual)
}
