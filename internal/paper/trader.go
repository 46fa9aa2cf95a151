// Package paper simulates an exchange account that opens and closes positions
// at caller supplied prices without touching a real venue.
package paper

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultFeeRate is the taker fee charged on every leg.
const DefaultFeeRate = 0.001

type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// Trade is a paper position. Fees accumulate the entry fee and, once closed,
// the exit fee. PnL is only set on closed trades and is net of both fees.
type Trade struct {
	ID         string      `json:"id" yaml:"id"`
	Symbol     string      `json:"symbol" yaml:"symbol"`
	Exchange   string      `json:"exchange" yaml:"exchange"`
	Side       types.Side  `json:"side" yaml:"side"`
	EntryPrice float64     `json:"entry_price" yaml:"entry_price"`
	ExitPrice  float64     `json:"exit_price,omitempty" yaml:"exit_price,omitempty"`
	Size       float64     `json:"size" yaml:"size"`
	EntryTime  time.Time   `json:"entry_time" yaml:"entry_time"`
	ExitTime   time.Time   `json:"exit_time,omitempty" yaml:"exit_time,omitempty"`
	PnL        float64     `json:"pnl" yaml:"pnl"`
	Fees       float64     `json:"fees" yaml:"fees"`
	Status     TradeStatus `json:"status" yaml:"status"`
}

// Metrics summarizes the closed trades of a Trader.
type Metrics struct {
	TotalTrades int `json:"total_trades" yaml:"total_trades"`
	// WinRate is the share of closed trades with positive pnl, in percent
	WinRate   float64 `json:"win_rate" yaml:"win_rate"`
	AvgProfit float64 `json:"avg_profit" yaml:"avg_profit"`
	TotalPnL  float64 `json:"total_pnl" yaml:"total_pnl"`
	// MaxDrawdown is the largest decline of the closed trade running balance
	// from its peak, in percent
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
}

// Trader is a thread safe paper account holding at most one position per symbol.
type Trader struct {
	mu             sync.Mutex
	initialBalance decimal.Decimal
	balance        decimal.Decimal
	feeRate        decimal.Decimal
	open           map[string]*openTrade
	closed         []Trade
	now            func() time.Time
	newID          func() string
	log            *logger.Logger
}

// openTrade keeps the exact ledger amounts next to the reported trade.
type openTrade struct {
	trade    Trade
	cost     decimal.Decimal
	entryFee decimal.Decimal
}

type Option func(*Trader)

// WithFeeRate overrides DefaultFeeRate.
func WithFeeRate(rate float64) Option {
	return func(t *Trader) {
		t.feeRate = decimal.NewFromFloat(rate)
	}
}

// WithClock sets the time source of entry and exit timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Trader) {
		t.now = now
	}
}

// WithIDGenerator sets the trade id source.
func WithIDGenerator(newID func() string) Option {
	return func(t *Trader) {
		t.newID = newID
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(t *Trader) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTrader creates an account funded with initialBalance.
func NewTrader(initialBalance float64, opts ...Option) (*Trader, error) {
	if !(initialBalance > 0) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "initial balance must be positive, got %v", initialBalance)
	}

	t := &Trader{
		initialBalance: decimal.NewFromFloat(initialBalance),
		balance:        decimal.NewFromFloat(initialBalance),
		feeRate:        decimal.NewFromFloat(DefaultFeeRate),
		open:           make(map[string]*openTrade),
		closed:         make([]Trade, 0),
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
		log:            logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.feeRate.IsNegative() || t.feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "fee rate must be in [0, 1), got %s", t.feeRate)
	}

	return t, nil
}

// Balance returns the free balance. Opening a position reserves its cost and
// entry fee until the position closes.
func (t *Trader) Balance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.balance.InexactFloat64()
}

// MaxPositionSize returns the size whose notional at price equals riskPercent
// of the free balance.
func (t *Trader) MaxPositionSize(price, riskPercent float64) (float64, error) {
	if !(price > 0) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %v", price)
	}

	if !(riskPercent > 0 && riskPercent <= 1) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "risk must be in (0, 1], got %v", riskPercent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.balance.Mul(decimal.NewFromFloat(riskPercent)).Div(decimal.NewFromFloat(price)).InexactFloat64(), nil
}

// Open opens a position on symbol. It fails when the symbol already has an
// open position or when the cost plus the entry fee exceeds the free balance.
func (t *Trader) Open(symbol, exchange string, price, size float64, side types.Side) (Trade, error) {
	if side != types.SideLong && side != types.SideShort {
		return Trade{}, errors.Newf(errors.ErrCodeInvalidSide, "unknown side %q", side)
	}

	if !(price > 0) || !(size > 0) {
		return Trade{}, errors.Newf(errors.ErrCodeInvalidPositionSize, "cannot open %v %s at %v", size, symbol, price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.open[symbol]; ok {
		return Trade{}, errors.Newf(errors.ErrCodePositionExists, "position on %s is already open", symbol)
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size))
	fee := cost.Mul(t.feeRate)

	if cost.Add(fee).GreaterThan(t.balance) {
		return Trade{}, errors.Newf(errors.ErrCodeInsufficientBalance,
			"opening %s needs %s, balance is %s", symbol, cost.Add(fee).StringFixed(2), t.balance.StringFixed(2))
	}

	trade := Trade{
		ID:         t.newID(),
		Symbol:     symbol,
		Exchange:   exchange,
		Side:       side,
		EntryPrice: price,
		Size:       size,
		EntryTime:  t.now(),
		Fees:       fee.InexactFloat64(),
		Status:     TradeStatusOpen,
	}

	t.balance = t.balance.Sub(cost).Sub(fee)
	t.open[symbol] = &openTrade{trade: trade, cost: cost, entryFee: fee}

	t.log.Debug("Paper position opened",
		zap.String("id", trade.ID),
		zap.String("symbol", symbol),
		zap.String("exchange", exchange),
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("size", size),
	)

	return trade, nil
}

// Close closes the position on symbol at price. The reserved cost is released
// together with the gross pnl minus the exit fee, so the balance moves by the
// net pnl over the round trip for longs and shorts alike.
func (t *Trader) Close(symbol string, price float64) (Trade, error) {
	if !(price > 0) {
		return Trade{}, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %v", price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	position, ok := t.open[symbol]
	if !ok {
		return Trade{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position on %s", symbol)
	}

	trade := position.trade
	value := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(trade.Size))
	exitFee := value.Mul(t.feeRate)

	gross := value.Sub(position.cost)
	if trade.Side == types.SideShort {
		gross = gross.Neg()
	}

	pnl := gross.Sub(position.entryFee).Sub(exitFee)

	trade.ExitPrice = price
	trade.ExitTime = t.now()
	trade.PnL = pnl.InexactFloat64()
	trade.Fees = position.entryFee.Add(exitFee).InexactFloat64()
	trade.Status = TradeStatusClosed

	t.balance = t.balance.Add(position.cost).Add(gross).Sub(exitFee)
	t.closed = append(t.closed, trade)
	delete(t.open, symbol)

	t.log.Debug("Paper position closed",
		zap.String("id", trade.ID),
		zap.String("symbol", symbol),
		zap.Float64("price", price),
		zap.Float64("pnl", trade.PnL),
		zap.String("balance", t.balance.StringFixed(2)),
	)

	return trade, nil
}

// OpenPositions returns the open trades ordered by symbol.
func (t *Trader) OpenPositions() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	trades := make([]Trade, 0, len(t.open))
	for _, position := range t.open {
		trades = append(trades, position.trade)
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].Symbol < trades[j].Symbol
	})

	return trades
}

// ClosedTrades returns the closed trades in close order.
func (t *Trader) ClosedTrades() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Trade(nil), t.closed...)
}

// Metrics aggregates the closed trades. An account without closed trades
// reports zeros.
func (t *Trader) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.closed) == 0 {
		return Metrics{}
	}

	winning := 0
	total := decimal.Zero
	running := t.initialBalance
	peak := t.initialBalance
	drawdown := decimal.Zero

	for _, trade := range t.closed {
		pnl := decimal.NewFromFloat(trade.PnL)
		if pnl.IsPositive() {
			winning++
		}

		total = total.Add(pnl)
		running = running.Add(pnl)
		peak = decimal.Max(peak, running)

		if peak.IsPositive() {
			drawdown = decimal.Max(drawdown, peak.Sub(running).Div(peak))
		}
	}

	count := decimal.NewFromInt(int64(len(t.closed)))
	hundred := decimal.NewFromInt(100)

	return Metrics{
		TotalTrades: len(t.closed),
		WinRate:     decimal.NewFromInt(int64(winning)).Div(count).Mul(hundred).InexactFloat64(),
		AvgProfit:   total.Div(count).InexactFloat64(),
		TotalPnL:    total.InexactFloat64(),
		MaxDrawdown: drawdown.Mul(hundred).InexactFloat64(),
	}
}
