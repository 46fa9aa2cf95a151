package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/moth-trading/internal/indicator"
	"github.com/rxtech-lab/moth-trading/internal/signal"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BacktestEngineV1Config holds the account level settings shared by every run.
type BacktestEngineV1Config struct {
	InitialBalance float64                    `yaml:"initial_balance" json:"initial_balance" jsonschema:"title=Initial Balance,description=Starting account balance in quote currency,exclusiveMinimum=0,default=10000" validate:"gt=0"`
	Broker         commission_fee.Broker      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=The commission schedule applied to each leg" validate:"omitempty,oneof=percentage zero_commission"`
	FeeRate        float64                    `yaml:"fee_rate" json:"fee_rate" jsonschema:"title=Fee Rate,description=Fee per leg as a fraction of notional,minimum=0,default=0.001" validate:"gte=0,lt=1"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	// Resample aggregates the loaded bars to a coarser interval before the run.
	Resample datasource.Interval `yaml:"resample" json:"resample" jsonschema:"title=Resample,description=Optional interval the bars are aggregated to,enum=,enum=1m,enum=5m,enum=15m,enum=30m,enum=1h,enum=4h,enum=6h,enum=8h,enum=12h,enum=1d,enum=1w" validate:"omitempty,oneof=1m 5m 15m 30m 1h 4h 6h 8h 12h 1d 1w"`
	// Parallelism bounds concurrent runs. Zero means one run per CPU.
	Parallelism int `yaml:"parallelism" json:"parallelism" jsonschema:"title=Parallelism,description=Maximum concurrent runs,minimum=0" validate:"gte=0"`
}

// configYAML is the wire form of BacktestEngineV1Config. Pointers tell an
// omitted field from an explicit zero.
type configYAML struct {
	InitialBalance *float64              `yaml:"initial_balance"`
	Broker         commission_fee.Broker `yaml:"broker,omitempty"`
	FeeRate        *float64              `yaml:"fee_rate"`
	StartTime      *time.Time            `yaml:"start_time,omitempty"`
	EndTime        *time.Time            `yaml:"end_time,omitempty"`
	Resample       datasource.Interval   `yaml:"resample,omitempty"`
	Parallelism    int                   `yaml:"parallelism,omitempty"`
}

// MarshalYAML writes unset time bounds as omitted fields.
func (c BacktestEngineV1Config) MarshalYAML() (any, error) {
	config := configYAML{
		InitialBalance: &c.InitialBalance,
		Broker:         c.Broker,
		FeeRate:        &c.FeeRate,
		Resample:       c.Resample,
		Parallelism:    c.Parallelism,
	}

	if c.StartTime.IsSome() {
		start := c.StartTime.Unwrap()
		config.StartTime = &start
	}

	if c.EndTime.IsSome() {
		end := c.EndTime.Unwrap()
		config.EndTime = &end
	}

	return config, nil
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config.
func (c *BacktestEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	var config configYAML
	if err := value.Decode(&config); err != nil {
		return err
	}

	if config.InitialBalance != nil {
		c.InitialBalance = *config.InitialBalance
	}

	if config.Broker != "" {
		c.Broker = config.Broker
	}

	if config.FeeRate != nil {
		c.FeeRate = *config.FeeRate
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	c.Resample = config.Resample
	c.Parallelism = config.Parallelism

	return nil
}

// Validate checks the config with its struct tags and the time window.
func (c BacktestEngineV1Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	return nil
}

// CommissionFee returns the fee schedule of the config.
func (c BacktestEngineV1Config) CommissionFee() commission_fee.CommissionFee {
	return commission_fee.GetCommissionFeeHandler(c.Broker, c.FeeRate)
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	schema := newReflector().Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	return marshalSchema(schema)
}

// TestConfig returns a config over a fixed window, used by tests.
func TestConfig(startTime time.Time, endTime time.Time, broker commission_fee.Broker) BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialBalance: 10000,
		Broker:         broker,
		FeeRate:        commission_fee.DefaultFeeRate,
		StartTime:      optional.Some(startTime),
		EndTime:        optional.Some(endTime),
	}
}

// EmptyConfig returns a BacktestEngineV1Config with default values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialBalance: 10000,
		Broker:         commission_fee.BrokerPercentage,
		FeeRate:        commission_fee.DefaultFeeRate,
		StartTime:      optional.None[time.Time](),
		EndTime:        optional.None[time.Time](),
	}
}

// StrategyConfig holds the parameters of one strategy variant. A sweep runs
// every StrategyConfig against every data file.
type StrategyConfig struct {
	Name         string  `yaml:"name" json:"name" jsonschema:"title=Name,description=Label of the run in results"`
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" jsonschema:"title=Risk Per Trade,description=Fraction of the current balance risked per entry,exclusiveMinimum=0,maximum=1,default=0.02" validate:"gt=0,lte=1"`
	// Warmup is the first bar index that may open a position. Zero derives it
	// from the longest lookback the entry rules read.
	Warmup     int                `yaml:"warmup" json:"warmup" jsonschema:"title=Warmup,minimum=0" validate:"gte=0"`
	Indicators indicator.Settings `yaml:"indicators" json:"indicators" jsonschema:"title=Indicators"`
	Entry      signal.EntryRules  `yaml:"entry" json:"entry" jsonschema:"title=Entry Rules"`
	Exit       signal.ExitPolicy  `yaml:"exit" json:"exit" jsonschema:"title=Exit Policy"`
}

// DefaultStrategyConfig returns the dual EMA trend strategy with a 2x/3x ATR exit.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Name:         "default",
		RiskPerTrade: 0.02,
		Indicators:   indicator.DefaultSettings(),
		Entry:        signal.DefaultEntryRules(),
		Exit:         signal.DefaultExitPolicy(),
	}
}

// ParseStrategyConfig decodes YAML over the default strategy, so omitted
// fields keep their defaults, and validates the result.
func ParseStrategyConfig(content []byte) (StrategyConfig, error) {
	config := DefaultStrategyConfig()

	if err := yaml.Unmarshal(content, &config); err != nil {
		return StrategyConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse strategy config", err)
	}

	if err := config.Validate(); err != nil {
		return StrategyConfig{}, err
	}

	return config, nil
}

// Validate checks the struct tags and the exit policy variant.
func (c StrategyConfig) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	return c.Exit.Validate()
}

// EffectiveWarmup returns Warmup or, when unset, the longest lookback the
// entry rules depend on.
func (c StrategyConfig) EffectiveWarmup() int {
	if c.Warmup > 0 {
		return c.Warmup
	}

	s := c.Indicators
	warmup := max(s.EMAFast, s.EMAMid, s.EMASlow, s.RSIPeriod, s.MACDSlow, s.ATRPeriod)

	if c.Entry.MinADX > 0 {
		warmup = max(warmup, 2*s.ADXPeriod)
	}

	return warmup
}

// GenerateSchema generates a JSON schema for the StrategyConfig.
func (c *StrategyConfig) GenerateSchema() (*jsonschema.Schema, error) {
	schema := newReflector().Reflect(c)

	schema.Title = "strategy-config"
	schema.Description = "Configuration schema for a trend following strategy run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the StrategyConfig.
func (c *StrategyConfig) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	return marshalSchema(schema)
}

func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			return nil
		},
	}
}

func marshalSchema(schema *jsonschema.Schema) (string, error) {
	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the validate tags and converts the first failure into a
// coded configuration error.
func validateStruct(v any) error {
	err := configValidator.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]

		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"invalid %s: %v fails %q", fe.Namespace(), fe.Value(), fe.Tag())
	}

	return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
}
