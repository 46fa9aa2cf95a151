package types

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}

	return SideLong
}

type ExitReason string

const (
	ExitReasonStopLoss      ExitReason = "stop_loss"
	ExitReasonTakeProfit    ExitReason = "take_profit"
	ExitReasonTrendReversal ExitReason = "trend_reversal"
	ExitReasonEndOfSeries   ExitReason = "end_of_series"
)

// Position is the single open simulated position of a backtest run.
type Position struct {
	Side       Side      `json:"side" yaml:"side"`
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	EntryTime  time.Time `json:"entry_time" yaml:"entry_time"`
	EntryIndex int       `json:"entry_index" yaml:"entry_index"`
	Size       float64   `json:"size" yaml:"size"`
	// EntryATR is the ATR snapshot at entry, used by ATR based stop and target levels
	EntryATR float64 `json:"entry_atr" yaml:"entry_atr"`
	// EntryFee is the fee paid on the entry leg, settled when the position closes
	EntryFee float64 `json:"entry_fee" yaml:"entry_fee"`
}

// UnrealizedPnL returns the gross P&L of the position marked at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * p.Size
	}

	return (price - p.EntryPrice) * p.Size
}

// ClosedTrade is an immutable record of a round trip.
type ClosedTrade struct {
	Side       Side      `json:"side" yaml:"side"`
	EntryTime  time.Time `json:"entry_time" yaml:"entry_time"`
	ExitTime   time.Time `json:"exit_time" yaml:"exit_time"`
	EntryIndex int       `json:"entry_index" yaml:"entry_index"`
	ExitIndex  int       `json:"exit_index" yaml:"exit_index"`
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	ExitPrice  float64   `json:"exit_price" yaml:"exit_price"`
	Size       float64   `json:"size" yaml:"size"`
	GrossPnL   float64   `json:"gross_pnl" yaml:"gross_pnl"`
	Fees       float64   `json:"fees" yaml:"fees"`
	// PnL is the realized P&L net of the entry and exit fees
	PnL        float64    `json:"pnl" yaml:"pnl"`
	Balance    float64    `json:"balance" yaml:"balance"`
	ExitReason ExitReason `json:"exit_reason" yaml:"exit_reason"`
}

// HoldingBars is the number of bars between entry and exit.
func (t ClosedTrade) HoldingBars() int {
	return t.ExitIndex - t.EntryIndex
}
