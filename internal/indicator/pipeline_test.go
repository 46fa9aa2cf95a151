package indicator

import (
	"math"
	"testing"

	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errFake = errors.New(errors.ErrCodeIndicatorCalculation, "calculation failed")

type PipelineTestSuite struct {
	suite.Suite
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (suite *PipelineTestSuite) observedPipeline(indicators ...Indicator) (*Pipeline, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	registry := NewIndicatorRegistry()

	for _, ind := range indicators {
		suite.Require().NoError(registry.RegisterIndicator(ind))
	}

	return NewPipeline(registry, &logger.Logger{Logger: zap.New(core)}), logs
}

func (suite *PipelineTestSuite) TestEmptySeries() {
	rows := Calculate(nil)
	suite.NotNil(rows)
	suite.Empty(rows)
}

func (suite *PipelineTestSuite) TestPreservesLengthAndOrder() {
	bars := linearBars(300, 100, 0.5)
	rows := Calculate(bars)

	suite.Require().Len(rows, len(bars))

	for i := range bars {
		suite.Equal(bars[i], rows[i].Bar)
	}
}

func (suite *PipelineTestSuite) TestNoNaNInFullSeries() {
	rows := Calculate(linearBars(300, 100, 0.5))

	for i, row := range rows {
		suite.False(row.HasNaN(), "row %d", i)

		for _, c := range []types.Column{types.ColumnSMA200, types.ColumnBBUpper, types.ColumnMACDHist} {
			suite.False(math.IsNaN(row.Get(c)), "row %d column %s", i, c)
		}
	}
}

func (suite *PipelineTestSuite) TestMissingCloseStaysLocal() {
	bars := linearBars(300, 100, 0.5)
	bars[150].Close = math.NaN()

	rows := Calculate(bars)
	suite.Require().Len(rows, len(bars))
	suite.True(rows[150].HasNaN())

	// later rows carry computed values, not fallbacks
	for i := 151; i < len(rows); i++ {
		row := rows[i]
		suite.False(row.HasNaN(), "row %d", i)
		suite.Less(row.EMAFast, row.Close, "row %d", i)
		suite.Less(row.EMASlow, row.EMAMid, "row %d", i)
		suite.InDelta(100.0, row.RSI, 1e-9, "row %d", i)
		suite.Greater(row.MACDLine, 0.0, "row %d", i)
	}
}

func (suite *PipelineTestSuite) TestShortSeriesUsesFallbacks() {
	bars := linearBars(10, 100, 1)
	rows := Calculate(bars)

	suite.Require().Len(rows, 10)

	for i, row := range rows {
		bar := bars[i]
		suite.Equal(bar.Close, row.SMA20)
		suite.Equal(bar.Close, row.SMA200)
		suite.Equal(bar.Close, row.EMAMid)
		suite.Equal(bar.Close, row.EMASlow)
		suite.Equal(50.0, row.RSI)
		suite.Equal(0.0, row.MACDLine)
		suite.Equal(0.0, row.MACDSignal)
		suite.Equal(0.0, row.MACDHist)
		suite.Equal(bar.High-bar.Low, row.ATR)
		suite.Equal(0.0, row.ADX)
		suite.Equal(bar.Close, row.BBMiddle)
	}

	// the fast EMA has enough bars from index 7
	suite.Equal(bars[6].Close, rows[6].EMAFast)
	suite.InDelta(103.5, rows[7].EMAFast, 1e-9)
}

func (suite *PipelineTestSuite) TestWarmupRowsUseFallbacks() {
	bars := linearBars(100, 100, 1)
	rows := Calculate(bars)

	suite.Equal(50.0, rows[13].RSI)
	suite.Equal(100.0, rows[14].RSI)
	suite.Equal(bars[0].High-bars[0].Low, rows[0].ATR)
	suite.Equal(0.0, rows[32].MACDSignal)
	suite.NotEqual(0.0, rows[33].MACDSignal)
}

func (suite *PipelineTestSuite) TestFlatSeriesRSIFallsBackToNeutral() {
	rows := Calculate(closeBars(repeat(42, 60)...))

	for _, row := range rows {
		suite.Equal(50.0, row.RSI)
		suite.Equal(42.0, row.EMASlow)
	}
}

func (suite *PipelineTestSuite) TestFailingIndicatorKeepsFallback() {
	tests := []struct {
		name      string
		calculate func(bars []types.Bar) (Output, error)
	}{
		{
			name: "error",
			calculate: func(bars []types.Bar) (Output, error) {
				return nil, errFake
			},
		},
		{
			name: "panic",
			calculate: func(bars []types.Bar) (Output, error) {
				panic("boom")
			},
		},
		{
			name: "wrong length",
			calculate: func(bars []types.Bar) (Output, error) {
				return Output{types.ColumnRSI: {1, 2}}, nil
			},
		},
		{
			name: "unknown column",
			calculate: func(bars []types.Bar) (Output, error) {
				return Output{
					types.ColumnRSI:   repeat(99, len(bars)),
					types.Column("x"): repeat(1, len(bars)),
				}, nil
			},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			stub := newStubIndicator(types.IndicatorTypeRSI)
			stub.calculate = tc.calculate

			pipeline, logs := suite.observedPipeline(stub)
			rows := pipeline.Calculate(linearBars(5, 100, 1))

			suite.Len(rows, 5)

			for _, row := range rows {
				suite.Equal(50.0, row.RSI)
			}

			suite.Equal(1, logs.FilterMessage("Indicator failed, using fallback values").Len())
		})
	}
}

func (suite *PipelineTestSuite) TestInsufficientDataLogsAtDebug() {
	pipeline, logs := suite.observedPipeline(NewADX())
	rows := pipeline.Calculate(linearBars(5, 100, 1))

	suite.Len(rows, 5)
	suite.Equal(1, logs.FilterMessage("Indicator skipped, using fallback values").Len())
	suite.Equal(0, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func (suite *PipelineTestSuite) TestNonFiniteValuesKeepFallback() {
	stub := newStubIndicator(types.IndicatorTypeRSI)
	stub.calculate = func(bars []types.Bar) (Output, error) {
		return Output{types.ColumnRSI: {math.NaN(), math.Inf(1), 70}}, nil
	}

	pipeline, _ := suite.observedPipeline(stub)
	rows := pipeline.Calculate(linearBars(3, 100, 1))

	suite.Equal(50.0, rows[0].RSI)
	suite.Equal(50.0, rows[1].RSI)
	suite.Equal(70.0, rows[2].RSI)
}

func (suite *PipelineTestSuite) TestPipelineFromSettings() {
	settings := DefaultSettings()
	settings.EMAFast = 3
	settings.EMAMid = 5
	settings.EMASlow = 7

	pipeline, err := NewPipelineFromSettings(settings, nil)
	suite.Require().NoError(err)

	rows := pipeline.Calculate(linearBars(10, 100, 1))
	suite.InDelta(101.0, rows[2].EMAFast, 1e-9)
	suite.InDelta(103.0, rows[6].EMASlow, 1e-9)

	settings.BBStdDev = -1
	_, err = NewPipelineFromSettings(settings, nil)
	suite.Error(err)
}
