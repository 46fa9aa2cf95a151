package engine

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/indicator"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/signal"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"go.uber.org/zap"
)

// Result is the outcome of one backtest run.
type Result struct {
	// EquityCurve holds the realized balance after each input bar
	EquityCurve []float64 `json:"equity_curve" yaml:"equity_curve"`
	// Trades is the closed trade log in time order
	Trades []types.ClosedTrade `json:"trades" yaml:"trades"`
	// Report aggregates the trades and the equity curve
	Report types.Report `json:"report" yaml:"report"`
}

// Simulator runs the single position state machine over a bar series. It keeps
// no state between runs, so one Simulator may serve concurrent runs.
type Simulator struct {
	initialBalance float64
	riskPerTrade   float64
	warmup         int
	policy         signal.ExitPolicy
	commission     commission_fee.CommissionFee
	evaluator      signal.Evaluator
	pipeline       *indicator.Pipeline
	log            *logger.Logger
}

// SimulatorOption customizes a Simulator.
type SimulatorOption func(*Simulator)

// WithEvaluator replaces the rule based evaluator built from the strategy config.
func WithEvaluator(evaluator signal.Evaluator) SimulatorOption {
	return func(s *Simulator) {
		s.evaluator = evaluator
	}
}

// WithLogger sets the logger for trade and run diagnostics.
func WithLogger(log *logger.Logger) SimulatorOption {
	return func(s *Simulator) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPipeline replaces the indicator pipeline built from the strategy config.
func WithPipeline(pipeline *indicator.Pipeline) SimulatorOption {
	return func(s *Simulator) {
		s.pipeline = pipeline
	}
}

// NewSimulator validates the parameters and builds a simulator. A non-positive
// initial balance or a risk fraction outside (0, 1] fails with
// ErrCodeInvalidParameter before any bar is processed.
func NewSimulator(config BacktestEngineV1Config, strategy StrategyConfig, opts ...SimulatorOption) (*Simulator, error) {
	if !(config.InitialBalance > 0) || math.IsInf(config.InitialBalance, 0) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "initial balance must be positive, got %v", config.InitialBalance)
	}

	if !(strategy.RiskPerTrade > 0 && strategy.RiskPerTrade <= 1) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "risk per trade must be in (0, 1], got %v", strategy.RiskPerTrade)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		initialBalance: config.InitialBalance,
		riskPerTrade:   strategy.RiskPerTrade,
		warmup:         strategy.EffectiveWarmup(),
		policy:         strategy.Exit,
		commission:     config.CommissionFee(),
		log:            logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.evaluator == nil {
		s.evaluator = signal.NewRuleEvaluator(s.warmup, strategy.Entry, strategy.Exit)
	}

	if s.pipeline == nil {
		pipeline, err := indicator.NewPipelineFromSettings(strategy.Indicators, s.log)
		if err != nil {
			return nil, err
		}

		s.pipeline = pipeline
	}

	return s, nil
}

// Backtest runs the default strategy over bars with a 0.1% fee per leg.
func Backtest(bars []types.Bar, initialBalance, riskPerTrade float64) (*Result, error) {
	config := EmptyConfig()
	config.InitialBalance = initialBalance

	strategy := DefaultStrategyConfig()
	strategy.RiskPerTrade = riskPerTrade

	simulator, err := NewSimulator(config, strategy)
	if err != nil {
		return nil, err
	}

	return simulator.Run(bars), nil
}

// Run computes the indicators and simulates bars.
func (s *Simulator) Run(bars []types.Bar) *Result {
	return s.RunRows(s.Indicators(bars))
}

// Indicators returns the augmented series the simulator would trade on.
func (s *Simulator) Indicators(bars []types.Bar) []types.IndicatorRow {
	return s.pipeline.Calculate(bars)
}

// RunRows simulates an already augmented series. Per bar it evaluates the
// exit of an open position first, then an entry when flat, then records the
// balance. A position still open after the last bar is closed at the last
// close.
func (s *Simulator) RunRows(rows []types.IndicatorRow) *Result {
	state := NewBacktestState(s.initialBalance, s.commission)
	equity := make([]float64, len(rows))
	lastPriced := lastPricedIndex(rows)

	for i := range rows {
		row := rows[i]

		if !row.HasNaN() {
			s.step(state, rows, i, lastPriced)
		}

		equity[i] = state.Balance()
	}

	if position, err := state.Position().Take(); err == nil {
		last := rows[lastPriced]

		trade, err := state.Close(last.Close, last.Time, lastPriced, types.ExitReasonEndOfSeries)
		if err == nil {
			s.logClose(position, trade)
		}

		for j := lastPriced; j < len(equity); j++ {
			equity[j] = state.Balance()
		}
	}

	bars := make([]types.Bar, len(rows))
	for i := range rows {
		bars[i] = rows[i].Bar
	}

	result := &Result{
		EquityCurve: equity,
		Trades:      state.Trades(),
		Report:      NewReport(s.initialBalance, state.Trades(), equity, bars),
	}

	s.log.Info("Backtest finished",
		zap.Int("bars", len(rows)),
		zap.Int("trades", result.Report.TotalTrades),
		zap.Float64("total_return", result.Report.TotalReturn),
		zap.Float64("max_drawdown", result.Report.MaxDrawdown),
	)

	return result
}

func (s *Simulator) step(state *BacktestState, rows []types.IndicatorRow, i, lastPriced int) {
	row := rows[i]

	if position, err := state.Position().Take(); err == nil {
		decision := s.evaluator.Exit(position, rows, i)
		if decision.Exit {
			trade, err := state.Close(decision.Price, row.Time, i, decision.Reason)
			if err == nil {
				s.logClose(position, trade)
			}
		}
	}

	// an entry on the last priced bar would be force closed on the same bar
	if state.HasPosition() || i >= lastPriced {
		return
	}

	sig := s.evaluator.Entry(rows, i)

	side, ok := sig.Type.Side()
	if !ok {
		return
	}

	unit := s.policy.RiskUnit(row.Close, row.ATR)
	if !(unit > 0) || math.IsInf(unit, 0) {
		s.log.Debug("Skipping entry with degenerate risk unit",
			zap.Int("index", i),
			zap.Float64("atr", row.ATR),
			zap.Float64("risk_unit", unit),
		)

		return
	}

	size := state.Balance() * s.riskPerTrade / unit
	if !(size > 0) {
		s.log.Debug("Skipping entry with non-positive size",
			zap.Int("index", i),
			zap.Float64("balance", state.Balance()),
		)

		return
	}

	position, err := state.Open(side, row.Close, size, row.ATR, row.Time, i)
	if err != nil {
		s.log.Debug("Failed to open position", zap.Int("index", i), zap.Error(err))

		return
	}

	s.log.Debug("Opened position",
		zap.String("side", string(position.Side)),
		zap.Int("index", i),
		zap.Float64("price", position.EntryPrice),
		zap.Float64("size", position.Size),
		zap.String("reason", sig.Reason),
	)
}

func (s *Simulator) logClose(position types.Position, trade types.ClosedTrade) {
	s.log.Debug("Closed position",
		zap.String("side", string(position.Side)),
		zap.Int("entry_index", trade.EntryIndex),
		zap.Int("exit_index", trade.ExitIndex),
		zap.Float64("exit_price", trade.ExitPrice),
		zap.String("reason", string(trade.ExitReason)),
		zap.Float64("pnl", trade.PnL),
		zap.Float64("balance", trade.Balance),
	)
}

// lastPricedIndex returns the index of the last row with a usable close.
func lastPricedIndex(rows []types.IndicatorRow) int {
	for i := len(rows) - 1; i >= 0; i-- {
		if c := rows[i].Close; !math.IsNaN(c) && !math.IsInf(c, 0) && c > 0 {
			return i
		}
	}

	return -1
}
