package types

import "time"

type SignalType string

const (
	// SignalTypeBuyLong opens a long position
	SignalTypeBuyLong SignalType = "buy_long"
	// SignalTypeSellShort opens a short position
	SignalTypeSellShort SignalType = "sell_short"
	// SignalTypeClosePosition closes the open position
	SignalTypeClosePosition SignalType = "close_position"
	// SignalTypeNoAction leaves the book untouched
	SignalTypeNoAction SignalType = "no_action"
)

// Side returns the position side a signal opens, or false for non-entry signals.
func (s SignalType) Side() (Side, bool) {
	switch s {
	case SignalTypeBuyLong:
		return SideLong, true
	case SignalTypeSellShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Signal is the outcome of an entry evaluation on one bar.
type Signal struct {
	// Index is the bar index the signal was evaluated on
	Index int
	// Time is the bar time
	Time time.Time
	// Type is the type of the signal
	Type SignalType
	// Reason describes which rule produced the signal
	Reason string
}

// ExitDecision is the outcome of an exit evaluation for an open position.
type ExitDecision struct {
	// Exit is true when the position must be closed on this bar
	Exit bool
	// Price is the fill price of the exit
	Price float64
	// Reason is why the position is closed
	Reason ExitReason
}
