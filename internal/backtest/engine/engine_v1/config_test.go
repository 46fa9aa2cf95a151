package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/moth-trading/internal/signal"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestEmptyConfig() {
	config := EmptyConfig()

	suite.Equal(10000.0, config.InitialBalance)
	suite.Equal(commission_fee.BrokerPercentage, config.Broker)
	suite.Equal(commission_fee.DefaultFeeRate, config.FeeRate)
	suite.True(config.StartTime.IsNone())
	suite.True(config.EndTime.IsNone())
	suite.Empty(config.Resample)
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestTestConfig() {
	startTime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	endTime := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	config := TestConfig(startTime, endTime, commission_fee.BrokerZero)

	suite.Equal(10000.0, config.InitialBalance)
	suite.Equal(commission_fee.BrokerZero, config.Broker)
	suite.Equal(startTime, config.StartTime.Unwrap())
	suite.Equal(endTime, config.EndTime.Unwrap())
	suite.Equal(0.0, config.CommissionFee().Calculate(1000))
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	config := &BacktestEngineV1Config{}
	schemaJSON, err := config.GenerateSchemaJSON()

	suite.NoError(err)
	suite.NotEmpty(schemaJSON)

	var result map[string]interface{}
	suite.NoError(json.Unmarshal([]byte(schemaJSON), &result))
	suite.Equal("backtest-engine-v1-config", result["title"])

	properties, ok := result["properties"].(map[string]interface{})
	suite.Require().True(ok)
	suite.Contains(properties, "initial_balance")
	suite.Contains(properties, "fee_rate")
	suite.Contains(properties, "resample")
}

func (suite *ConfigTestSuite) TestUnmarshalYAML() {
	tests := []struct {
		name      string
		yaml      string
		expectErr bool
		check     func(config BacktestEngineV1Config)
	}{
		{
			name: "complete",
			yaml: `
initial_balance: 50000
broker: zero_commission
fee_rate: 0.002
start_time: 2023-01-01T00:00:00Z
end_time: 2023-12-31T00:00:00Z
resample: 1h
parallelism: 4
`,
			check: func(config BacktestEngineV1Config) {
				suite.Equal(50000.0, config.InitialBalance)
				suite.Equal(commission_fee.BrokerZero, config.Broker)
				suite.Equal(0.002, config.FeeRate)
				suite.Equal(2023, config.StartTime.Unwrap().Year())
				suite.Equal(time.December, config.EndTime.Unwrap().Month())
				suite.Equal(datasource.Interval1h, config.Resample)
				suite.Equal(4, config.Parallelism)
			},
		},
		{
			name: "omitted fields keep defaults",
			yaml: `initial_balance: 2500`,
			check: func(config BacktestEngineV1Config) {
				suite.Equal(2500.0, config.InitialBalance)
				suite.Equal(commission_fee.BrokerPercentage, config.Broker)
				suite.Equal(commission_fee.DefaultFeeRate, config.FeeRate)
				suite.True(config.StartTime.IsNone())
				suite.True(config.EndTime.IsNone())
			},
		},
		{
			name: "only start time",
			yaml: `start_time: 2024-06-01T00:00:00Z`,
			check: func(config BacktestEngineV1Config) {
				suite.True(config.StartTime.IsSome())
				suite.True(config.EndTime.IsNone())
			},
		},
		{
			name:      "invalid number",
			yaml:      `initial_balance: not_a_number`,
			expectErr: true,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := EmptyConfig()
			err := yaml.Unmarshal([]byte(tc.yaml), &config)

			if tc.expectErr {
				suite.Error(err)

				return
			}

			suite.Require().NoError(err)
			tc.check(config)
		})
	}
}

func (suite *ConfigTestSuite) TestMarshalYAMLOmitsUnsetTimes() {
	config := EmptyConfig()
	config.Resample = datasource.Interval4h

	out, err := yaml.Marshal(config)
	suite.Require().NoError(err)
	suite.NotContains(string(out), "start_time")
	suite.Contains(string(out), "resample: 4h")

	config.StartTime = optional.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	out, err = yaml.Marshal(config)
	suite.Require().NoError(err)

	decoded := EmptyConfig()
	suite.Require().NoError(yaml.Unmarshal(out, &decoded))
	suite.Equal(config.StartTime.Unwrap(), decoded.StartTime.Unwrap())
	suite.True(decoded.EndTime.IsNone())
	suite.Equal(config.Resample, decoded.Resample)
}

func (suite *ConfigTestSuite) TestValidate() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(config *BacktestEngineV1Config)
		code   errors.ErrorCode
	}{
		{
			name:   "zero balance",
			mutate: func(config *BacktestEngineV1Config) { config.InitialBalance = 0 },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "fee rate of one",
			mutate: func(config *BacktestEngineV1Config) { config.FeeRate = 1 },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "unknown broker",
			mutate: func(config *BacktestEngineV1Config) { config.Broker = "interactive_broker" },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "monthly resample",
			mutate: func(config *BacktestEngineV1Config) { config.Resample = datasource.Interval1M },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "end before start",
			mutate: func(config *BacktestEngineV1Config) {
				config.StartTime = optional.Some(start)
				config.EndTime = optional.Some(start.Add(-time.Hour))
			},
			code: errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := EmptyConfig()
			tc.mutate(&config)

			err := config.Validate()
			suite.Require().Error(err)
			suite.Equal(tc.code, errors.GetCode(err))
		})
	}
}

func (suite *ConfigTestSuite) TestDefaultStrategyConfig() {
	config := DefaultStrategyConfig()

	suite.Equal(0.02, config.RiskPerTrade)
	suite.Equal(signal.TrendFilterDual, config.Entry.Trend)
	suite.Equal(signal.RSIFilterMomentum, config.Entry.RSI)
	suite.Equal(signal.ATRBased(2, 3), config.Exit)
	suite.Equal(55, config.EffectiveWarmup())
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestEffectiveWarmup() {
	tests := []struct {
		name     string
		mutate   func(config *StrategyConfig)
		expected int
	}{
		{
			name:     "slow EMA bounds the default",
			mutate:   func(config *StrategyConfig) {},
			expected: 55,
		},
		{
			name:     "explicit warmup wins",
			mutate:   func(config *StrategyConfig) { config.Warmup = 10 },
			expected: 10,
		},
		{
			name: "ADX filter needs twice its period",
			mutate: func(config *StrategyConfig) {
				config.Entry.MinADX = 25
				config.Indicators.ADXPeriod = 40
			},
			expected: 80,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := DefaultStrategyConfig()
			tc.mutate(&config)
			suite.Equal(tc.expected, config.EffectiveWarmup())
		})
	}
}

func (suite *ConfigTestSuite) TestParseStrategyConfig() {
	tests := []struct {
		name    string
		yaml    string
		code    errors.ErrorCode
		checkFn func(config StrategyConfig)
	}{
		{
			name: "percent exit over defaults",
			yaml: `
name: tight
risk_per_trade: 0.01
entry:
  trend: triple
  rsi: band
exit:
  kind: percent
  stop_percent: 0.5
  target_percent: 1.5
`,
			checkFn: func(config StrategyConfig) {
				suite.Equal("tight", config.Name)
				suite.Equal(0.01, config.RiskPerTrade)
				suite.Equal(signal.TrendFilterTriple, config.Entry.Trend)
				suite.Equal(signal.RSIFilterBand, config.Entry.RSI)
				suite.Equal(signal.ExitPolicyPercent, config.Exit.Kind)
				suite.Equal(21, config.Indicators.EMAMid)
			},
		},
		{
			name: "empty document keeps defaults",
			yaml: ``,
			checkFn: func(config StrategyConfig) {
				suite.Equal(DefaultStrategyConfig(), config)
			},
		},
		{
			name: "zero risk",
			yaml: `risk_per_trade: 0`,
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "unknown trend filter",
			yaml: "entry:\n  trend: quadruple\n",
			code: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "non positive ATR multiple",
			yaml: "exit:\n  kind: atr\n  stop_multiple: 0\n  target_multiple: 3\n",
			code: errors.ErrCodeInvalidMultiplier,
		},
		{
			name: "malformed yaml",
			yaml: `risk_per_trade: [`,
			code: errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config, err := ParseStrategyConfig([]byte(tc.yaml))

			if tc.code != 0 {
				suite.Require().Error(err)
				suite.Equal(tc.code, errors.GetCode(err))

				return
			}

			suite.Require().NoError(err)
			tc.checkFn(config)
		})
	}
}

func (suite *ConfigTestSuite) TestStrategyConfigSchema() {
	config := DefaultStrategyConfig()
	schemaJSON, err := config.GenerateSchemaJSON()
	suite.Require().NoError(err)

	var result map[string]interface{}
	suite.Require().NoError(json.Unmarshal([]byte(schemaJSON), &result))
	suite.Equal("strategy-config", result["title"])

	properties, ok := result["properties"].(map[string]interface{})
	suite.Require().True(ok)
	suite.Contains(properties, "risk_per_trade")
	suite.Contains(properties, "indicators")
	suite.Contains(properties, "exit")
}
