package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// BacktestState is the ledger of one backtest run: the realized balance, the
// single open position and the closed trade log. Balance only changes when a
// position closes.
type BacktestState struct {
	initialBalance decimal.Decimal
	balance        decimal.Decimal
	position       optional.Option[types.Position]
	trades         []types.ClosedTrade
	commission     commission_fee.CommissionFee
}

// NewBacktestState creates an empty ledger.
func NewBacktestState(initialBalance float64, commission commission_fee.CommissionFee) *BacktestState {
	if commission == nil {
		commission = commission_fee.NewZeroCommissionFee()
	}

	return &BacktestState{
		initialBalance: decimal.NewFromFloat(initialBalance),
		balance:        decimal.NewFromFloat(initialBalance),
		position:       optional.None[types.Position](),
		trades:         make([]types.ClosedTrade, 0),
		commission:     commission,
	}
}

// Balance returns the realized balance.
func (s *BacktestState) Balance() float64 {
	return s.balance.InexactFloat64()
}

// InitialBalance returns the starting balance.
func (s *BacktestState) InitialBalance() float64 {
	return s.initialBalance.InexactFloat64()
}

// Position returns the open position, if any.
func (s *BacktestState) Position() optional.Option[types.Position] {
	return s.position
}

// HasPosition reports whether a position is open.
func (s *BacktestState) HasPosition() bool {
	return s.position.IsSome()
}

// Trades returns the closed trade log in close order.
func (s *BacktestState) Trades() []types.ClosedTrade {
	return s.trades
}

// Open opens a position at price. The entry fee is charged when the position closes.
func (s *BacktestState) Open(side types.Side, price, size, atr float64, at time.Time, index int) (types.Position, error) {
	if s.HasPosition() {
		return types.Position{}, errors.New(errors.ErrCodePositionExists, "a position is already open")
	}

	if size <= 0 || price <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPositionSize,
			"cannot open %s position of size %v at %v", side, size, price)
	}

	position := types.Position{
		Side:       side,
		EntryPrice: price,
		EntryTime:  at,
		EntryIndex: index,
		Size:       size,
		EntryATR:   atr,
		EntryFee:   s.commission.Calculate(price * size),
	}

	s.position = optional.Some(position)

	return position, nil
}

// Close realizes the open position at price. Net P&L is the gross move minus
// the entry and exit fees, each charged on its own leg's notional.
func (s *BacktestState) Close(price float64, at time.Time, index int, reason types.ExitReason) (types.ClosedTrade, error) {
	position, err := s.position.Take()
	if err != nil {
		return types.ClosedTrade{}, errors.New(errors.ErrCodePositionNotFound, "no open position to close")
	}

	entry := decimal.NewFromFloat(position.EntryPrice)
	exit := decimal.NewFromFloat(price)
	size := decimal.NewFromFloat(position.Size)

	gross := exit.Sub(entry).Mul(size)
	if position.Side == types.SideShort {
		gross = gross.Neg()
	}

	fees := decimal.NewFromFloat(position.EntryFee).Add(decimal.NewFromFloat(s.commission.Calculate(price * position.Size)))
	pnl := gross.Sub(fees)

	s.balance = s.balance.Add(pnl)

	trade := types.ClosedTrade{
		Side:       position.Side,
		EntryTime:  position.EntryTime,
		ExitTime:   at,
		EntryIndex: position.EntryIndex,
		ExitIndex:  index,
		EntryPrice: position.EntryPrice,
		ExitPrice:  price,
		Size:       position.Size,
		GrossPnL:   gross.InexactFloat64(),
		Fees:       fees.InexactFloat64(),
		PnL:        pnl.InexactFloat64(),
		Balance:    s.balance.InexactFloat64(),
		ExitReason: reason,
	}

	s.trades = append(s.trades, trade)
	s.position = optional.None[types.Position]()

	return trade, nil
}
