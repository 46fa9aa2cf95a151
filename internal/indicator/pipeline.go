package indicator

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
)

// Settings holds the lookbacks of every indicator the pipeline computes.
type Settings struct {
	SMAShort   int     `yaml:"sma_short" json:"sma_short" jsonschema:"title=Short SMA,default=20" validate:"gt=0"`
	SMAMedium  int     `yaml:"sma_medium" json:"sma_medium" jsonschema:"title=Medium SMA,default=50" validate:"gt=0"`
	SMALong    int     `yaml:"sma_long" json:"sma_long" jsonschema:"title=Long SMA,default=200" validate:"gt=0"`
	EMAFast    int     `yaml:"ema_fast" json:"ema_fast" jsonschema:"title=Fast EMA,default=8" validate:"gt=0"`
	EMAMid     int     `yaml:"ema_mid" json:"ema_mid" jsonschema:"title=Mid EMA,default=21" validate:"gt=0"`
	EMASlow    int     `yaml:"ema_slow" json:"ema_slow" jsonschema:"title=Slow EMA,default=55" validate:"gt=0"`
	RSIPeriod  int     `yaml:"rsi_period" json:"rsi_period" jsonschema:"title=RSI period,default=14" validate:"gt=0"`
	MACDFast   int     `yaml:"macd_fast" json:"macd_fast" jsonschema:"title=MACD fast,default=12" validate:"gt=0"`
	MACDSlow   int     `yaml:"macd_slow" json:"macd_slow" jsonschema:"title=MACD slow,default=26" validate:"gtfield=MACDFast"`
	MACDSignal int     `yaml:"macd_signal" json:"macd_signal" jsonschema:"title=MACD signal,default=9" validate:"gt=0"`
	ATRPeriod  int     `yaml:"atr_period" json:"atr_period" jsonschema:"title=ATR period,default=14" validate:"gt=0"`
	BBPeriod   int     `yaml:"bb_period" json:"bb_period" jsonschema:"title=Bollinger period,default=20" validate:"gt=0"`
	BBStdDev   float64 `yaml:"bb_std_dev" json:"bb_std_dev" jsonschema:"title=Bollinger width,default=2" validate:"gt=0"`
	ADXPeriod  int     `yaml:"adx_period" json:"adx_period" jsonschema:"title=ADX period,default=14" validate:"gt=0"`
}

// DefaultSettings returns the standard lookbacks.
func DefaultSettings() Settings {
	return Settings{
		SMAShort:   20,
		SMAMedium:  50,
		SMALong:    200,
		EMAFast:    8,
		EMAMid:     21,
		EMASlow:    55,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
		BBPeriod:   20,
		BBStdDev:   2,
		ADXPeriod:  14,
	}
}

// NewRegistry returns a registry with every indicator configured from settings.
func NewRegistry(settings Settings) (IndicatorRegistry, error) {
	type configured struct {
		indicator Indicator
		params    []any
	}

	all := []configured{
		{NewMA(), []any{settings.SMAShort, settings.SMAMedium, settings.SMALong}},
		{NewEMA(), []any{settings.EMAFast, settings.EMAMid, settings.EMASlow}},
		{NewRSI(), []any{settings.RSIPeriod}},
		{NewMACD(), []any{settings.MACDFast, settings.MACDSlow, settings.MACDSignal}},
		{NewATR(), []any{settings.ATRPeriod}},
		{NewBollingerBands(), []any{settings.BBPeriod, settings.BBStdDev}},
		{NewADX(), []any{settings.ADXPeriod}},
	}

	registry := NewIndicatorRegistry()

	for _, c := range all {
		if err := c.indicator.Config(c.params...); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to configure %s", c.indicator.Name())
		}

		if err := registry.RegisterIndicator(c.indicator); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Pipeline augments a bar series with every registered indicator. A failing
// indicator leaves its columns at the row fallback values.
type Pipeline struct {
	registry IndicatorRegistry
	logger   *logger.Logger
}

// NewPipeline creates a pipeline over the given registry.
func NewPipeline(registry IndicatorRegistry, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Pipeline{
		registry: registry,
		logger:   log,
	}
}

// NewPipelineFromSettings configures a registry from settings and wraps it in a pipeline.
func NewPipelineFromSettings(settings Settings, log *logger.Logger) (*Pipeline, error) {
	registry, err := NewRegistry(settings)
	if err != nil {
		return nil, err
	}

	return NewPipeline(registry, log), nil
}

// Calculate returns one IndicatorRow per bar in input order. It never fails:
// rows an indicator cannot fill keep their fallback values.
func (p *Pipeline) Calculate(bars []types.Bar) []types.IndicatorRow {
	rows := make([]types.IndicatorRow, len(bars))
	for i, bar := range bars {
		rows[i] = types.NewIndicatorRow(bar)
	}

	if len(bars) == 0 {
		return rows
	}

	for _, name := range p.registry.ListIndicators() {
		ind, err := p.registry.GetIndicator(name)
		if err != nil {
			continue
		}

		err = p.apply(ind, bars, rows)
		if err == nil {
			continue
		}

		if errors.IsInsufficientDataError(err) {
			p.logger.Debug("Indicator skipped, using fallback values",
				zap.String("indicator", string(name)),
				zap.Int("bars", len(bars)),
				zap.Error(err),
			)

			continue
		}

		p.logger.Warn("Indicator failed, using fallback values",
			zap.String("indicator", string(name)),
			zap.Error(err),
		)
	}

	return rows
}

// apply writes the indicator output into rows only after the whole output has
// been validated, so a failure never leaves a column half written.
func (p *Pipeline) apply(ind Indicator, bars []types.Bar, rows []types.IndicatorRow) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeIndicatorCalculation, "%s panicked: %v", ind.Name(), r)
		}
	}()

	out, err := ind.Calculate(bars)
	if err != nil {
		return err
	}

	probe := types.IndicatorRow{}

	for column, values := range out {
		if len(values) != len(rows) {
			return errors.Newf(errors.ErrCodeIndicatorCalculation,
				"%s produced %d values for %s, want %d", ind.Name(), len(values), column, len(rows))
		}

		if !probe.Set(column, 0) {
			return errors.Newf(errors.ErrCodeIndicatorCalculation, "%s produced unknown column %s", ind.Name(), column)
		}
	}

	for column, values := range out {
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}

			rows[i].Set(column, v)
		}
	}

	return nil
}

// Calculate augments bars using the default settings.
func Calculate(bars []types.Bar) []types.IndicatorRow {
	registry, err := NewRegistry(DefaultSettings())
	if err != nil {
		// default settings always configure
		panic(err)
	}

	return NewPipeline(registry, nil).Calculate(bars)
}
