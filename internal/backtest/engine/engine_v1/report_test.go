package engine

import (
	"math"
	"testing"

	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/mocks"
	"github.com/stretchr/testify/suite"
)

type ReportTestSuite struct {
	suite.Suite
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func trades(pnls ...float64) []types.ClosedTrade {
	out := make([]types.ClosedTrade, len(pnls))
	balance := 1000.0

	for i, pnl := range pnls {
		balance += pnl
		out[i] = types.ClosedTrade{
			EntryIndex: i * 2,
			ExitIndex:  i*2 + 1,
			PnL:        pnl,
			Fees:       1,
			Balance:    balance,
		}
	}

	return out
}

func (suite *ReportTestSuite) TestEmpty() {
	report := NewReport(1000, nil, []float64{1000, 1000}, nil)

	suite.Equal(types.Report{InitialBalance: 1000, FinalBalance: 1000}, report)
}

func (suite *ReportTestSuite) TestAggregates() {
	tests := []struct {
		name         string
		trades       []types.ClosedTrade
		winRate      float64
		profitFactor float64
		totalReturn  float64
	}{
		{name: "mixed", trades: trades(100, -50, 50, -25), winRate: 50, profitFactor: 2, totalReturn: 7.5},
		{name: "only winners", trades: trades(10, 20), winRate: 100, profitFactor: math.Inf(1), totalReturn: 3},
		{name: "only losers", trades: trades(-10, -30), winRate: 0, profitFactor: 0, totalReturn: -4},
		{name: "break even trade counts as neither", trades: trades(0, 10), winRate: 50, profitFactor: math.Inf(1), totalReturn: 1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			report := NewReport(1000, tc.trades, nil, nil)

			suite.Equal(len(tc.trades), report.TotalTrades)
			suite.InDelta(tc.winRate, report.WinRate, 1e-9)
			suite.InDelta(tc.totalReturn, report.TotalReturn, 1e-9)
			suite.Equal(float64(len(tc.trades)), report.TotalFees)
			suite.Equal(1.0, report.AvgHoldingBars)
			suite.Equal(tc.trades[len(tc.trades)-1].Balance, report.FinalBalance)

			if math.IsInf(tc.profitFactor, 1) {
				suite.True(math.IsInf(report.ProfitFactor, 1))
			} else {
				suite.InDelta(tc.profitFactor, report.ProfitFactor, 1e-9)
			}
		})
	}
}

func (suite *ReportTestSuite) TestMaxDrawdown() {
	tests := []struct {
		name     string
		initial  float64
		equity   []float64
		expected float64
	}{
		{name: "monotonic rise", initial: 100, equity: []float64{100, 110, 120}, expected: 0},
		{name: "peak is the running max", initial: 100, equity: []float64{120, 90, 130, 117}, expected: 25},
		{name: "initial balance is the first peak", initial: 100, equity: []float64{80, 90}, expected: 20},
		{name: "capped at one hundred", initial: 100, equity: []float64{50, -20}, expected: 100},
		{name: "empty curve", initial: 100, equity: nil, expected: 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, maxDrawdown(tc.initial, tc.equity), 1e-9)
		})
	}
}

func (suite *ReportTestSuite) TestBuyAndHoldReturn() {
	bars := mocks.RisingBars(11, 100, 1)
	suite.InDelta(10.0, buyAndHoldReturn(bars), 1e-9)

	bars[10].Close = math.NaN()
	suite.InDelta(9.0, buyAndHoldReturn(bars), 1e-9)

	suite.Equal(0.0, buyAndHoldReturn(nil))
}
