package engine

import (
	"testing"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BacktestStateTestSuite struct {
	suite.Suite
	state *BacktestState
	t0    time.Time
}

func TestBacktestStateSuite(t *testing.T) {
	suite.Run(t, new(BacktestStateTestSuite))
}

func (suite *BacktestStateTestSuite) SetupTest() {
	suite.state = NewBacktestState(10000, commission_fee.NewPercentageCommissionFee(0.001))
	suite.t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BacktestStateTestSuite) TestInitialState() {
	suite.Equal(10000.0, suite.state.Balance())
	suite.Equal(10000.0, suite.state.InitialBalance())
	suite.False(suite.state.HasPosition())
	suite.Empty(suite.state.Trades())
}

func (suite *BacktestStateTestSuite) TestRoundTrip() {
	tests := []struct {
		name       string
		side       types.Side
		entry      float64
		exit       float64
		size       float64
		gross      float64
		fees       float64
		expectWins bool
	}{
		{name: "long winner", side: types.SideLong, entry: 100, exit: 110, size: 2, gross: 20, fees: 0.42, expectWins: true},
		{name: "long loser", side: types.SideLong, entry: 100, exit: 90, size: 2, gross: -20, fees: 0.38},
		{name: "short winner", side: types.SideShort, entry: 100, exit: 90, size: 2, gross: 20, fees: 0.38, expectWins: true},
		{name: "short loser", side: types.SideShort, entry: 100, exit: 110, size: 2, gross: -20, fees: 0.42},
		{name: "flat move loses the fees", side: types.SideLong, entry: 100, exit: 100, size: 1, gross: 0, fees: 0.2},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			state := NewBacktestState(10000, commission_fee.NewPercentageCommissionFee(0.001))

			position, err := state.Open(tc.side, tc.entry, tc.size, 1.5, suite.t0, 3)
			suite.Require().NoError(err)
			suite.InDelta(tc.entry*tc.size*0.001, position.EntryFee, 1e-9)

			// the balance is realized only on close
			suite.Equal(10000.0, state.Balance())

			trade, err := state.Close(tc.exit, suite.t0.Add(time.Hour), 4, types.ExitReasonTakeProfit)
			suite.Require().NoError(err)

			suite.InDelta(tc.gross, trade.GrossPnL, 1e-9)
			suite.InDelta(tc.fees, trade.Fees, 1e-9)
			suite.InDelta(tc.gross-tc.fees, trade.PnL, 1e-9)
			suite.InDelta(10000+tc.gross-tc.fees, state.Balance(), 1e-9)
			suite.Equal(state.Balance(), trade.Balance)
			suite.Equal(tc.expectWins, trade.PnL > 0)
			suite.Equal(1, trade.HoldingBars())
			suite.False(state.HasPosition())
			suite.Len(state.Trades(), 1)
		})
	}
}

func (suite *BacktestStateTestSuite) TestOpenTwice() {
	_, err := suite.state.Open(types.SideLong, 100, 1, 1, suite.t0, 0)
	suite.Require().NoError(err)

	_, err = suite.state.Open(types.SideShort, 100, 1, 1, suite.t0, 1)
	suite.Equal(errors.ErrCodePositionExists, errors.GetCode(err))
}

func (suite *BacktestStateTestSuite) TestOpenInvalidSize() {
	tests := []struct {
		name  string
		price float64
		size  float64
	}{
		{name: "zero size", price: 100, size: 0},
		{name: "negative size", price: 100, size: -1},
		{name: "zero price", price: 0, size: 1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := suite.state.Open(types.SideLong, tc.price, tc.size, 1, suite.t0, 0)
			suite.Equal(errors.ErrCodeInvalidPositionSize, errors.GetCode(err))
			suite.False(suite.state.HasPosition())
		})
	}
}

func (suite *BacktestStateTestSuite) TestCloseWithoutPosition() {
	_, err := suite.state.Close(100, suite.t0, 0, types.ExitReasonStopLoss)
	suite.Equal(errors.ErrCodePositionNotFound, errors.GetCode(err))
}

func (suite *BacktestStateTestSuite) TestZeroCommission() {
	state := NewBacktestState(1000, nil)

	_, err := state.Open(types.SideLong, 10, 5, 1, suite.t0, 0)
	suite.Require().NoError(err)

	trade, err := state.Close(12, suite.t0, 1, types.ExitReasonTakeProfit)
	suite.Require().NoError(err)
	suite.Equal(0.0, trade.Fees)
	suite.InDelta(10.0, trade.PnL, 1e-9)
	suite.InDelta(1010.0, state.Balance(), 1e-9)
}
