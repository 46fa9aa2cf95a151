package signal

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

// TrendFilter selects how the EMA stack defines a trend.
type TrendFilter string

const (
	// TrendFilterDual requires mid EMA above slow EMA and close above mid EMA
	TrendFilterDual TrendFilter = "dual"
	// TrendFilterTriple requires fast above mid above slow EMA and close above fast EMA
	TrendFilterTriple TrendFilter = "triple"
)

// RSIFilter selects the RSI condition for entries.
type RSIFilter string

const (
	// RSIFilterMomentum requires RSI above 50 for longs and below 50 for shorts
	RSIFilterMomentum RSIFilter = "momentum"
	// RSIFilterBand requires RSI inside 40..70 for longs and 30..60 for shorts
	RSIFilterBand RSIFilter = "band"
)

// EntryRules configures the entry filters. Shorts use the mirrored conditions.
type EntryRules struct {
	Trend            TrendFilter `yaml:"trend" json:"trend" jsonschema:"title=Trend filter,enum=dual,enum=triple,default=dual" validate:"oneof=dual triple"`
	RSI              RSIFilter   `yaml:"rsi" json:"rsi" jsonschema:"title=RSI filter,enum=momentum,enum=band,default=momentum" validate:"oneof=momentum band"`
	RequireMACDCross bool        `yaml:"require_macd_cross" json:"require_macd_cross" jsonschema:"title=Require fresh MACD crossover,default=false"`
	// MinADX enables the trend strength filter when positive
	MinADX float64 `yaml:"min_adx" json:"min_adx" jsonschema:"title=Minimum ADX,minimum=0,maximum=100,default=0" validate:"gte=0,lte=100"`
}

// DefaultEntryRules returns the dual EMA trend with RSI momentum rules.
func DefaultEntryRules() EntryRules {
	return EntryRules{
		Trend: TrendFilterDual,
		RSI:   RSIFilterMomentum,
	}
}

// ExitPolicyKind tags the active variant of an ExitPolicy.
type ExitPolicyKind string

const (
	ExitPolicyATR     ExitPolicyKind = "atr"
	ExitPolicyPercent ExitPolicyKind = "percent"
)

// ExitPolicy places stop-loss and take-profit levels either as multiples of
// the entry ATR or as percentages of the entry price. Only the fields of the
// active Kind are read.
type ExitPolicy struct {
	Kind           ExitPolicyKind `yaml:"kind" json:"kind" jsonschema:"title=Exit policy,enum=atr,enum=percent,default=atr" validate:"oneof=atr percent"`
	StopMultiple   float64        `yaml:"stop_multiple,omitempty" json:"stop_multiple,omitempty" jsonschema:"title=Stop ATR multiple,default=2" validate:"gte=0"`
	TargetMultiple float64        `yaml:"target_multiple,omitempty" json:"target_multiple,omitempty" jsonschema:"title=Target ATR multiple,default=3" validate:"gte=0"`
	StopPercent    float64        `yaml:"stop_percent,omitempty" json:"stop_percent,omitempty" jsonschema:"title=Stop percent,default=0.5" validate:"gte=0,lt=100"`
	TargetPercent  float64        `yaml:"target_percent,omitempty" json:"target_percent,omitempty" jsonschema:"title=Target percent,default=1.5" validate:"gte=0"`
}

// ATRBased returns an exit policy with stop and target at multiples of the entry ATR.
func ATRBased(stopMultiple, targetMultiple float64) ExitPolicy {
	return ExitPolicy{
		Kind:           ExitPolicyATR,
		StopMultiple:   stopMultiple,
		TargetMultiple: targetMultiple,
	}
}

// PercentBased returns an exit policy with stop and target at percentages of the entry price.
func PercentBased(stopPercent, targetPercent float64) ExitPolicy {
	return ExitPolicy{
		Kind:          ExitPolicyPercent,
		StopPercent:   stopPercent,
		TargetPercent: targetPercent,
	}
}

// DefaultExitPolicy returns a 2x ATR stop with a 3x ATR target.
func DefaultExitPolicy() ExitPolicy {
	return ATRBased(2, 3)
}

// Validate checks that the active variant has positive thresholds.
func (p ExitPolicy) Validate() error {
	switch p.Kind {
	case ExitPolicyATR:
		if p.StopMultiple <= 0 || p.TargetMultiple <= 0 {
			return errors.Newf(errors.ErrCodeInvalidMultiplier,
				"atr exit policy needs positive multiples, got stop %v target %v", p.StopMultiple, p.TargetMultiple)
		}
	case ExitPolicyPercent:
		if p.StopPercent <= 0 || p.StopPercent >= 100 || p.TargetPercent <= 0 {
			return errors.Newf(errors.ErrCodeInvalidParameter,
				"percent exit policy needs stop in (0,100) and positive target, got stop %v target %v", p.StopPercent, p.TargetPercent)
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown exit policy %q", p.Kind)
	}

	return nil
}

// Levels returns the stop-loss and take-profit prices of a position.
func (p ExitPolicy) Levels(pos types.Position) (stop, target float64) {
	var stopDistance, targetDistance float64

	if p.Kind == ExitPolicyPercent {
		stopDistance = pos.EntryPrice * p.StopPercent / 100
		targetDistance = pos.EntryPrice * p.TargetPercent / 100
	} else {
		stopDistance = pos.EntryATR * p.StopMultiple
		targetDistance = pos.EntryATR * p.TargetMultiple
	}

	if pos.Side == types.SideShort {
		return pos.EntryPrice + stopDistance, pos.EntryPrice - targetDistance
	}

	return pos.EntryPrice - stopDistance, pos.EntryPrice + targetDistance
}

// RiskUnit is the loss per unit of size when the stop is hit for an entry at
// price with the given ATR. Sizing divides the risked amount by it.
func (p ExitPolicy) RiskUnit(price, atr float64) float64 {
	if p.Kind == ExitPolicyPercent {
		return price * p.StopPercent / 100
	}

	return atr * p.StopMultiple
}
