// Package arbitrage compares quotes of one symbol across exchanges and reports
// price gaps that stay profitable after paying the taker fee on both legs.
package arbitrage

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/logger"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata/provider"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFeeRate is the taker fee charged on each leg.
	DefaultFeeRate = 0.001
	// DefaultMinProfitPercent is the smallest fee adjusted profit, in percent
	// of the buy price, reported as an opportunity.
	DefaultMinProfitPercent = 0.1
	// DefaultOrderBookDepth is the number of levels fetched per side.
	DefaultOrderBookDepth = 100
)

// Opportunity is a buy on the cheaper exchange paired with a sell on the
// dearer one.
type Opportunity struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	BuyExchange   string  `json:"buy_exchange" yaml:"buy_exchange"`
	SellExchange  string  `json:"sell_exchange" yaml:"sell_exchange"`
	BuyPrice      float64 `json:"buy_price" yaml:"buy_price"`
	SellPrice     float64 `json:"sell_price" yaml:"sell_price"`
	SpreadPercent float64 `json:"spread_percent" yaml:"spread_percent"`
	ProfitPercent float64 `json:"potential_profit_percent" yaml:"potential_profit_percent"`
}

// ExecutionPath is the most profitable way to buy amount on one exchange and
// sell it on another, walking both order books.
type ExecutionPath struct {
	Symbol       string  `json:"symbol" yaml:"symbol"`
	BuyExchange  string  `json:"buy_exchange" yaml:"buy_exchange"`
	SellExchange string  `json:"sell_exchange" yaml:"sell_exchange"`
	BuyPrice     float64 `json:"buy_price" yaml:"buy_price"`
	SellPrice    float64 `json:"sell_price" yaml:"sell_price"`
	Amount       float64 `json:"amount" yaml:"amount"`
	Fees         float64 `json:"fees" yaml:"fees"`
	NetProfit    float64 `json:"net_profit" yaml:"net_profit"`
}

// SpreadPoint is the close to close spread of a pair at one bar time, in percent
// of the base exchange close.
type SpreadPoint struct {
	Time    time.Time `json:"time" yaml:"time"`
	Percent float64   `json:"percent" yaml:"percent"`
}

// SpreadSeries holds the historical spread of Quote over Base.
type SpreadSeries struct {
	Base   string        `json:"base" yaml:"base"`
	Quote  string        `json:"quote" yaml:"quote"`
	Points []SpreadPoint `json:"points" yaml:"points"`
}

// Detector looks for arbitrage across a fixed set of exchanges.
type Detector struct {
	exchanges        map[string]provider.Provider
	feeRate          decimal.Decimal
	minProfitPercent decimal.Decimal
	depth            int
	log              *logger.Logger
}

type Option func(*Detector)

func WithFeeRate(rate float64) Option {
	return func(d *Detector) {
		d.feeRate = decimal.NewFromFloat(rate)
	}
}

func WithMinProfitPercent(percent float64) Option {
	return func(d *Detector) {
		d.minProfitPercent = decimal.NewFromFloat(percent)
	}
}

func WithOrderBookDepth(depth int) Option {
	return func(d *Detector) {
		d.depth = depth
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDetector creates a detector over exchanges keyed by exchange name.
func NewDetector(exchanges map[string]provider.Provider, opts ...Option) *Detector {
	d := &Detector{
		exchanges:        exchanges,
		feeRate:          decimal.NewFromFloat(DefaultFeeRate),
		minProfitPercent: decimal.NewFromFloat(DefaultMinProfitPercent),
		depth:            DefaultOrderBookDepth,
		log:              logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// FindOpportunities compares the last price of symbol on every pair of the
// given exchanges and returns the pairs clearing the profit threshold, most
// profitable first. Exchanges that are unknown or fail to quote are skipped.
// Fewer than two quotes yield no opportunities.
func (d *Detector) FindOpportunities(ctx context.Context, symbol string, exchanges []string) ([]Opportunity, error) {
	tickers, err := fetch(ctx, d, exchanges, func(ctx context.Context, p provider.Provider) (types.Ticker, error) {
		return p.Ticker(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}

	type quote struct {
		exchange string
		price    decimal.Decimal
	}

	quotes := make([]quote, 0, len(exchanges))

	for i, ticker := range tickers {
		if ticker.IsNone() {
			continue
		}

		last := ticker.Unwrap().Last
		if !(last > 0) {
			continue
		}

		quotes = append(quotes, quote{exchange: exchanges[i], price: decimal.NewFromFloat(last)})
	}

	opportunities := make([]Opportunity, 0)
	if len(quotes) < 2 {
		return opportunities, nil
	}

	hundred := decimal.NewFromInt(100)

	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			first, second := quotes[i], quotes[j]

			spread := second.price.Sub(first.price).Div(first.price).Mul(hundred)
			fees := first.price.Add(second.price).Mul(d.feeRate)
			profit := second.price.Sub(first.price).Abs().Sub(fees).Div(first.price).Mul(hundred)

			if !profit.GreaterThan(d.minProfitPercent) {
				continue
			}

			buy, sell := first, second
			if second.price.LessThan(first.price) {
				buy, sell = second, first
				spread = spread.Neg()
			}

			opportunities = append(opportunities, Opportunity{
				Symbol:        symbol,
				BuyExchange:   buy.exchange,
				SellExchange:  sell.exchange,
				BuyPrice:      buy.price.InexactFloat64(),
				SellPrice:     sell.price.InexactFloat64(),
				SpreadPercent: spread.InexactFloat64(),
				ProfitPercent: profit.InexactFloat64(),
			})
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPercent > opportunities[j].ProfitPercent
	})

	d.log.Debug("Arbitrage scan finished",
		zap.String("symbol", symbol),
		zap.Int("quotes", len(quotes)),
		zap.Int("opportunities", len(opportunities)),
	)

	return opportunities, nil
}

// BestExecutionPath walks the ask side of every exchange against the bid side
// of every other exchange for amount and returns the pair with the highest
// positive net profit. It returns None when fewer than two order books are
// available or no pair is profitable after fees.
func (d *Detector) BestExecutionPath(ctx context.Context, symbol string, exchanges []string, amount float64) (optional.Option[ExecutionPath], error) {
	if !(amount > 0) {
		return optional.None[ExecutionPath](), errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %v", amount)
	}

	books, err := fetch(ctx, d, exchanges, func(ctx context.Context, p provider.Provider) (types.OrderBook, error) {
		return p.OrderBook(ctx, symbol, d.depth)
	})
	if err != nil {
		return optional.None[ExecutionPath](), err
	}

	available := 0

	for _, book := range books {
		if book.IsSome() {
			available++
		}
	}

	if available < 2 {
		return optional.None[ExecutionPath](), nil
	}

	size := decimal.NewFromFloat(amount)
	best := optional.None[ExecutionPath]()
	bestProfit := decimal.Zero

	for i, buyBook := range books {
		if buyBook.IsNone() {
			continue
		}

		buyPrice, err := effectivePrice(buyBook.Unwrap().Asks, size)
		if err != nil {
			continue
		}

		for j, sellBook := range books {
			if i == j || sellBook.IsNone() {
				continue
			}

			sellPrice, err := effectivePrice(sellBook.Unwrap().Bids, size)
			if err != nil {
				continue
			}

			fees := buyPrice.Add(sellPrice).Mul(size).Mul(d.feeRate)
			profit := sellPrice.Sub(buyPrice).Mul(size).Sub(fees)

			if !profit.GreaterThan(bestProfit) {
				continue
			}

			bestProfit = profit
			best = optional.Some(ExecutionPath{
				Symbol:       symbol,
				BuyExchange:  exchanges[i],
				SellExchange: exchanges[j],
				BuyPrice:     buyPrice.InexactFloat64(),
				SellPrice:    sellPrice.InexactFloat64(),
				Amount:       amount,
				Fees:         fees.InexactFloat64(),
				NetProfit:    profit.InexactFloat64(),
			})
		}
	}

	return best, nil
}

// HistoricalSpreads aligns the klines of every pair of exchanges on bar time
// and returns the close spread of the later exchange over the earlier one.
// Exchanges without data are skipped.
func (d *Detector) HistoricalSpreads(ctx context.Context, symbol string, exchanges []string, interval string, start, end time.Time) ([]SpreadSeries, error) {
	klines, err := fetch(ctx, d, exchanges, func(ctx context.Context, p provider.Provider) ([]types.Bar, error) {
		return p.Klines(ctx, symbol, interval, start, end)
	})
	if err != nil {
		return nil, err
	}

	type history struct {
		exchange string
		bars     []types.Bar
		closes   map[time.Time]float64
	}

	histories := make([]history, 0, len(exchanges))

	for i, bars := range klines {
		if bars.IsNone() || len(bars.Unwrap()) == 0 {
			continue
		}

		closes := make(map[time.Time]float64, len(bars.Unwrap()))
		for _, bar := range bars.Unwrap() {
			closes[bar.Time.UTC()] = bar.Close
		}

		histories = append(histories, history{exchange: exchanges[i], bars: bars.Unwrap(), closes: closes})
	}

	series := make([]SpreadSeries, 0)

	for i := 0; i < len(histories); i++ {
		for j := i + 1; j < len(histories); j++ {
			base, quote := histories[i], histories[j]
			points := make([]SpreadPoint, 0)

			for _, bar := range base.bars {
				other, ok := quote.closes[bar.Time.UTC()]
				if !ok || !(bar.Close > 0) {
					continue
				}

				points = append(points, SpreadPoint{
					Time:    bar.Time,
					Percent: (other - bar.Close) / bar.Close * 100,
				})
			}

			if len(points) > 0 {
				series = append(series, SpreadSeries{Base: base.exchange, Quote: quote.exchange, Points: points})
			}
		}
	}

	return series, nil
}

// EffectivePrice returns the average fill price of amount against levels,
// consumed best first. It fails with ErrCodeInsufficientLiquidity when the
// levels hold less than amount.
func EffectivePrice(levels []types.BookLevel, amount float64) (float64, error) {
	if !(amount > 0) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %v", amount)
	}

	price, err := effectivePrice(levels, decimal.NewFromFloat(amount))
	if err != nil {
		return 0, err
	}

	return price.InexactFloat64(), nil
}

func effectivePrice(levels []types.BookLevel, amount decimal.Decimal) (decimal.Decimal, error) {
	remaining := amount
	cost := decimal.Zero

	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}

		executed := decimal.Min(remaining, decimal.NewFromFloat(level.Amount))
		if !executed.IsPositive() {
			continue
		}

		cost = cost.Add(executed.Mul(decimal.NewFromFloat(level.Price)))
		remaining = remaining.Sub(executed)
	}

	if remaining.IsPositive() {
		return decimal.Zero, errors.Newf(errors.ErrCodeInsufficientLiquidity,
			"book depth is short by %s", remaining.String())
	}

	return cost.Div(amount), nil
}

// fetch queries every exchange concurrently. A failing or unknown exchange
// leaves a None in its slot, so results line up with exchanges. Only context
// cancellation fails the whole fetch.
func fetch[T any](ctx context.Context, d *Detector, exchanges []string, call func(context.Context, provider.Provider) (T, error)) ([]optional.Option[T], error) {
	results := make([]optional.Option[T], len(exchanges))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, name := range exchanges {
		results[i] = optional.None[T]()

		exchange, ok := d.exchanges[name]
		if !ok {
			d.log.Warn("Unknown exchange", zap.String("exchange", name))

			continue
		}

		group.Go(func() error {
			value, err := call(groupCtx, exchange)
			if err != nil {
				d.log.Warn("Exchange query failed", zap.String("exchange", name), zap.Error(err))

				return nil
			}

			results[i] = optional.Some(value)

			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "exchange query cancelled", err)
	}

	return results, nil
}
