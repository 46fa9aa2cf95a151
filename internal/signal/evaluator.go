// Package signal holds the entry and exit rules of the trend following
// strategy. Evaluations are pure functions of the indicator rows.
package signal

import (
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// Evaluator decides entries and exits on an augmented series.
type Evaluator interface {
	// Entry evaluates the entry rules on row i.
	Entry(rows []types.IndicatorRow, i int) types.Signal
	// Exit evaluates the exit rules for an open position on row i.
	Exit(position types.Position, rows []types.IndicatorRow, i int) types.ExitDecision
}

// RuleEvaluator is the Evaluator driven by EntryRules and an ExitPolicy.
type RuleEvaluator struct {
	warmup int
	rules  EntryRules
	policy ExitPolicy
}

// NewRuleEvaluator creates an evaluator that stays flat before the warmup index.
func NewRuleEvaluator(warmup int, rules EntryRules, policy ExitPolicy) *RuleEvaluator {
	return &RuleEvaluator{
		warmup: warmup,
		rules:  rules,
		policy: policy,
	}
}

func noAction(rows []types.IndicatorRow, i int, reason string) types.Signal {
	signal := types.Signal{
		Index:  i,
		Type:   types.SignalTypeNoAction,
		Reason: reason,
	}

	if i >= 0 && i < len(rows) {
		signal.Time = rows[i].Time
	}

	return signal
}

// Entry returns a long or short entry signal for row i, or no action.
func (e *RuleEvaluator) Entry(rows []types.IndicatorRow, i int) types.Signal {
	if i < 0 || i >= len(rows) {
		return noAction(rows, i, "index out of range")
	}

	if i < e.warmup {
		return noAction(rows, i, "warmup")
	}

	row := rows[i]
	if row.HasNaN() {
		return noAction(rows, i, "incomplete indicators")
	}

	var prev *types.IndicatorRow

	if i > 0 && !rows[i-1].HasNaN() {
		prev = &rows[i-1]
	}

	if e.qualifies(types.SideLong, row, prev) {
		return types.Signal{Index: i, Time: row.Time, Type: types.SignalTypeBuyLong, Reason: e.reason(types.SideLong)}
	}

	if e.qualifies(types.SideShort, row, prev) {
		return types.Signal{Index: i, Time: row.Time, Type: types.SignalTypeSellShort, Reason: e.reason(types.SideShort)}
	}

	return noAction(rows, i, "no entry rule matched")
}

// qualifies checks every entry filter for side. above(a, b) reads as "a is on
// the trade side of b", so the short rules are the long rules mirrored.
func (e *RuleEvaluator) qualifies(side types.Side, row types.IndicatorRow, prev *types.IndicatorRow) bool {
	above := func(a, b float64) bool {
		if side == types.SideShort {
			return a < b
		}

		return a > b
	}

	switch e.rules.Trend {
	case TrendFilterTriple:
		if !above(row.EMAFast, row.EMAMid) || !above(row.EMAMid, row.EMASlow) || !above(row.Close, row.EMAFast) {
			return false
		}
	default:
		if !above(row.EMAMid, row.EMASlow) || !above(row.Close, row.EMAMid) {
			return false
		}
	}

	if !e.rsiQualifies(side, row.RSI) {
		return false
	}

	if !above(row.MACDLine, row.MACDSignal) {
		return false
	}

	if e.rules.RequireMACDCross {
		if prev == nil || above(prev.MACDLine, prev.MACDSignal) {
			return false
		}
	}

	if e.rules.MinADX > 0 && row.ADX <= e.rules.MinADX {
		return false
	}

	return true
}

func (e *RuleEvaluator) rsiQualifies(side types.Side, rsi float64) bool {
	if e.rules.RSI == RSIFilterBand {
		if side == types.SideShort {
			return rsi > 30 && rsi < 60
		}

		return rsi > 40 && rsi < 70
	}

	if side == types.SideShort {
		return rsi < 50
	}

	return rsi > 50
}

func (e *RuleEvaluator) reason(side types.Side) string {
	reason := string(e.rules.Trend) + " ema trend " + string(side) + ", rsi " + string(e.rules.RSI) + ", macd"
	if e.rules.RequireMACDCross {
		reason += " cross"
	}

	if e.rules.MinADX > 0 {
		reason += ", adx"
	}

	return reason
}

// Exit checks the stop against the adverse extreme of the bar first, then the
// target against the favorable extreme, then a fast/mid EMA crossover against
// the position side. Stop and target fill at their levels, reversals at close.
func (e *RuleEvaluator) Exit(position types.Position, rows []types.IndicatorRow, i int) types.ExitDecision {
	if i < 0 || i >= len(rows) {
		return types.ExitDecision{}
	}

	row := rows[i]
	if row.HasNaN() {
		return types.ExitDecision{}
	}

	stop, target := e.policy.Levels(position)

	if position.Side == types.SideShort {
		if row.High >= stop {
			return types.ExitDecision{Exit: true, Price: stop, Reason: types.ExitReasonStopLoss}
		}

		if row.Low <= target {
			return types.ExitDecision{Exit: true, Price: target, Reason: types.ExitReasonTakeProfit}
		}
	} else {
		if row.Low <= stop {
			return types.ExitDecision{Exit: true, Price: stop, Reason: types.ExitReasonStopLoss}
		}

		if row.High >= target {
			return types.ExitDecision{Exit: true, Price: target, Reason: types.ExitReasonTakeProfit}
		}
	}

	if i > 0 && reversed(position.Side, rows[i-1], row) {
		return types.ExitDecision{Exit: true, Price: row.Close, Reason: types.ExitReasonTrendReversal}
	}

	return types.ExitDecision{}
}

// reversed reports whether the fast EMA crossed the mid EMA against side
// between prev and row.
func reversed(side types.Side, prev, row types.IndicatorRow) bool {
	if side == types.SideShort {
		return prev.EMAFast <= prev.EMAMid && row.EMAFast > row.EMAMid
	}

	return prev.EMAFast >= prev.EMAMid && row.EMAFast < row.EMAMid
}
