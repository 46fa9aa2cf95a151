package signal

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type EvaluatorTestSuite struct {
	suite.Suite
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorTestSuite))
}

var rowTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// longRow satisfies every long entry filter.
func longRow() types.IndicatorRow {
	row := types.NewIndicatorRow(types.Bar{
		Symbol: "BTCUSDT",
		Time:   rowTime,
		Open:   104,
		High:   106,
		Low:    104,
		Close:  105,
		Volume: 10,
	})
	row.EMAFast = 104
	row.EMAMid = 103
	row.EMASlow = 100
	row.RSI = 60
	row.MACDLine = 1
	row.MACDSignal = 0.5
	row.ADX = 30
	row.ATR = 2

	return row
}

// shortRow satisfies every short entry filter.
func shortRow() types.IndicatorRow {
	row := types.NewIndicatorRow(types.Bar{
		Symbol: "BTCUSDT",
		Time:   rowTime,
		Open:   96,
		High:   96,
		Low:    94,
		Close:  95,
		Volume: 10,
	})
	row.EMAFast = 96
	row.EMAMid = 97
	row.EMASlow = 100
	row.RSI = 40
	row.MACDLine = -1
	row.MACDSignal = -0.5
	row.ADX = 30
	row.ATR = 2

	return row
}

func rowsAt(i int, row types.IndicatorRow) []types.IndicatorRow {
	rows := make([]types.IndicatorRow, i+1)
	for j := range rows {
		rows[j] = row
	}

	return rows
}

func (suite *EvaluatorTestSuite) TestEntry() {
	tests := []struct {
		name     string
		rules    EntryRules
		warmup   int
		row      types.IndicatorRow
		modify   func(row *types.IndicatorRow)
		expected types.SignalType
	}{
		{
			name:     "long with default rules",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			expected: types.SignalTypeBuyLong,
		},
		{
			name:     "short with default rules",
			rules:    DefaultEntryRules(),
			row:      shortRow(),
			expected: types.SignalTypeSellShort,
		},
		{
			name:     "before warmup",
			rules:    DefaultEntryRules(),
			warmup:   10,
			row:      longRow(),
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "dual trend ignores fast ema",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.EMAFast = 102 },
			expected: types.SignalTypeBuyLong,
		},
		{
			name:     "triple trend needs fast above mid",
			rules:    EntryRules{Trend: TrendFilterTriple, RSI: RSIFilterMomentum},
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.EMAFast = 102 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "triple trend long",
			rules:    EntryRules{Trend: TrendFilterTriple, RSI: RSIFilterMomentum},
			row:      longRow(),
			expected: types.SignalTypeBuyLong,
		},
		{
			name:     "close below mid ema",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.Close = 102.5 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "momentum rsi accepts overbought",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.RSI = 75 },
			expected: types.SignalTypeBuyLong,
		},
		{
			name:     "band rsi rejects overbought",
			rules:    EntryRules{Trend: TrendFilterDual, RSI: RSIFilterBand},
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.RSI = 75 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "band rsi short",
			rules:    EntryRules{Trend: TrendFilterDual, RSI: RSIFilterBand},
			row:      shortRow(),
			modify:   func(row *types.IndicatorRow) { row.RSI = 35 },
			expected: types.SignalTypeSellShort,
		},
		{
			name:     "rsi at midline",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.RSI = 50 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "macd below signal",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.MACDLine = 0.2 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "weak adx",
			rules:    EntryRules{Trend: TrendFilterDual, RSI: RSIFilterMomentum, MinADX: 25},
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.ADX = 20 },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "strong adx",
			rules:    EntryRules{Trend: TrendFilterDual, RSI: RSIFilterMomentum, MinADX: 25},
			row:      longRow(),
			expected: types.SignalTypeBuyLong,
		},
		{
			name:     "nan indicator",
			rules:    DefaultEntryRules(),
			row:      longRow(),
			modify:   func(row *types.IndicatorRow) { row.RSI = math.NaN() },
			expected: types.SignalTypeNoAction,
		},
		{
			name:     "flat row",
			rules:    DefaultEntryRules(),
			row:      types.NewIndicatorRow(types.Bar{Open: 100, High: 100, Low: 100, Close: 100}),
			expected: types.SignalTypeNoAction,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			row := tc.row
			if tc.modify != nil {
				tc.modify(&row)
			}

			rows := rowsAt(5, row)
			evaluator := NewRuleEvaluator(tc.warmup, tc.rules, DefaultExitPolicy())

			signal := evaluator.Entry(rows, 5)
			suite.Equal(tc.expected, signal.Type)
			suite.Equal(5, signal.Index)
			suite.NotEmpty(signal.Reason)
		})
	}
}

func (suite *EvaluatorTestSuite) TestEntryRequiresFreshMACDCross() {
	rules := DefaultEntryRules()
	rules.RequireMACDCross = true
	evaluator := NewRuleEvaluator(0, rules, DefaultExitPolicy())

	prev := longRow()
	rows := []types.IndicatorRow{prev, longRow()}

	suite.Equal(types.SignalTypeNoAction, evaluator.Entry(rows, 1).Type)

	rows[0].MACDLine = 0.4
	suite.Equal(types.SignalTypeBuyLong, evaluator.Entry(rows, 1).Type)

	// no previous bar to cross from
	suite.Equal(types.SignalTypeNoAction, evaluator.Entry(rows[1:], 0).Type)
}

func (suite *EvaluatorTestSuite) TestEntryOutOfRange() {
	evaluator := NewRuleEvaluator(0, DefaultEntryRules(), DefaultExitPolicy())

	suite.Equal(types.SignalTypeNoAction, evaluator.Entry(nil, 0).Type)
	suite.Equal(types.SignalTypeNoAction, evaluator.Entry(rowsAt(2, longRow()), 3).Type)
	suite.Equal(types.SignalTypeNoAction, evaluator.Entry(rowsAt(2, longRow()), -1).Type)
}

func (suite *EvaluatorTestSuite) TestEntryIsPure() {
	evaluator := NewRuleEvaluator(0, DefaultEntryRules(), DefaultExitPolicy())
	rows := rowsAt(3, longRow())

	suite.Equal(evaluator.Entry(rows, 3), evaluator.Entry(rows, 3))
}

func barRow(low, high, close float64) types.IndicatorRow {
	row := longRow()
	row.Low = low
	row.High = high
	row.Close = close

	return row
}

func (suite *EvaluatorTestSuite) TestExit() {
	long := types.Position{Side: types.SideLong, EntryPrice: 100, EntryATR: 2, Size: 1}
	short := types.Position{Side: types.SideShort, EntryPrice: 100, EntryATR: 2, Size: 1}

	tests := []struct {
		name     string
		policy   ExitPolicy
		position types.Position
		row      types.IndicatorRow
		expected types.ExitDecision
	}{
		{
			name:     "long stop at level",
			policy:   DefaultExitPolicy(),
			position: long,
			row:      barRow(95, 101, 97),
			expected: types.ExitDecision{Exit: true, Price: 96, Reason: types.ExitReasonStopLoss},
		},
		{
			name:     "long target at level",
			policy:   DefaultExitPolicy(),
			position: long,
			row:      barRow(99, 107, 106.5),
			expected: types.ExitDecision{Exit: true, Price: 106, Reason: types.ExitReasonTakeProfit},
		},
		{
			name:     "stop wins when both touched",
			policy:   DefaultExitPolicy(),
			position: long,
			row:      barRow(95, 107, 100),
			expected: types.ExitDecision{Exit: true, Price: 96, Reason: types.ExitReasonStopLoss},
		},
		{
			name:     "long inside levels",
			policy:   DefaultExitPolicy(),
			position: long,
			row:      barRow(97, 105, 101),
			expected: types.ExitDecision{},
		},
		{
			name:     "short stop",
			policy:   DefaultExitPolicy(),
			position: short,
			row:      barRow(99, 104, 103),
			expected: types.ExitDecision{Exit: true, Price: 104, Reason: types.ExitReasonStopLoss},
		},
		{
			name:     "short target",
			policy:   DefaultExitPolicy(),
			position: short,
			row:      barRow(93, 99, 95),
			expected: types.ExitDecision{Exit: true, Price: 94, Reason: types.ExitReasonTakeProfit},
		},
		{
			name:     "percent long stop",
			policy:   PercentBased(0.5, 1.5),
			position: long,
			row:      barRow(99.4, 100.5, 99.8),
			expected: types.ExitDecision{Exit: true, Price: 99.5, Reason: types.ExitReasonStopLoss},
		},
		{
			name:     "percent long target",
			policy:   PercentBased(0.5, 1.5),
			position: long,
			row:      barRow(99.9, 101.6, 101),
			expected: types.ExitDecision{Exit: true, Price: 101.5, Reason: types.ExitReasonTakeProfit},
		},
		{
			name:     "percent short stop",
			policy:   PercentBased(0.5, 1.5),
			position: short,
			row:      barRow(99.9, 100.6, 100.2),
			expected: types.ExitDecision{Exit: true, Price: 100.5, Reason: types.ExitReasonStopLoss},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			evaluator := NewRuleEvaluator(0, DefaultEntryRules(), tc.policy)
			rows := rowsAt(1, tc.row)

			decision := evaluator.Exit(tc.position, rows, 1)
			suite.Equal(tc.expected.Exit, decision.Exit)
			suite.InDelta(tc.expected.Price, decision.Price, 1e-9)
			suite.Equal(tc.expected.Reason, decision.Reason)
		})
	}
}

func (suite *EvaluatorTestSuite) TestExitOnTrendReversal() {
	evaluator := NewRuleEvaluator(0, DefaultEntryRules(), DefaultExitPolicy())
	long := types.Position{Side: types.SideLong, EntryPrice: 100, EntryATR: 2, Size: 1}

	prev := barRow(99, 101, 100)
	prev.EMAFast, prev.EMAMid = 101, 100

	row := barRow(99, 101, 99.5)
	row.EMAFast, row.EMAMid = 99.8, 100

	decision := evaluator.Exit(long, []types.IndicatorRow{prev, row}, 1)
	suite.Equal(types.ExitDecision{Exit: true, Price: 99.5, Reason: types.ExitReasonTrendReversal}, decision)

	// fast already below mid on the previous bar is not a fresh cross
	prev.EMAFast = 99.9
	suite.False(evaluator.Exit(long, []types.IndicatorRow{prev, row}, 1).Exit)

	short := types.Position{Side: types.SideShort, EntryPrice: 100, EntryATR: 2, Size: 1}
	prev.EMAFast, row.EMAFast = 99.9, 100.2
	suite.Equal(types.ExitReasonTrendReversal, evaluator.Exit(short, []types.IndicatorRow{prev, row}, 1).Reason)

	// the first bar has no previous bar to cross from
	suite.False(evaluator.Exit(short, []types.IndicatorRow{row}, 0).Exit)
}

func (suite *EvaluatorTestSuite) TestExitSkipsNaNRows() {
	evaluator := NewRuleEvaluator(0, DefaultEntryRules(), DefaultExitPolicy())
	long := types.Position{Side: types.SideLong, EntryPrice: 100, EntryATR: 2, Size: 1}

	row := barRow(50, 150, 100)
	row.ATR = math.NaN()

	suite.Equal(types.ExitDecision{}, evaluator.Exit(long, []types.IndicatorRow{row}, 0))
	suite.Equal(types.ExitDecision{}, evaluator.Exit(long, nil, 0))
}
