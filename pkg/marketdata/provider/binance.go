package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

// binanceKlinesLimit is the maximum number of klines Binance returns per request.
const binanceKlinesLimit = 1000

const defaultOrderBookDepth = 100

// BinanceAPIClient is the part of the Binance REST API the client talks to.
type BinanceAPIClient interface {
	Klines(ctx context.Context, symbol string, interval string, startTime int64, endTime int64, limit int) ([]*binance.Kline, error)
	PriceChangeStats(ctx context.Context, symbol string) (*binance.PriceChangeStats, error)
	Depth(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error)
}

type binanceAPIAdapter struct {
	client *binance.Client
}

func (a *binanceAPIAdapter) Klines(ctx context.Context, symbol string, interval string, startTime int64, endTime int64, limit int) ([]*binance.Kline, error) {
	return a.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(startTime).
		EndTime(endTime).
		Limit(limit).
		Do(ctx)
}

func (a *binanceAPIAdapter) PriceChangeStats(ctx context.Context, symbol string) (*binance.PriceChangeStats, error) {
	stats, err := a.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}

	if len(stats) == 0 {
		return nil, fmt.Errorf("no ticker statistics for %s", symbol)
	}

	return stats[0], nil
}

func (a *binanceAPIAdapter) Depth(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error) {
	return a.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
}

type BinanceClient struct {
	apiClient  BinanceAPIClient
	onProgress OnDownloadProgress
	now        func() time.Time
}

// NewBinanceClient creates a client for the public Binance market data API.
func NewBinanceClient() *BinanceClient {
	return NewBinanceClientWithAPI(&binanceAPIAdapter{client: binance.NewClient("", "")})
}

// NewBinanceClientWithAPI creates a client on top of the given API implementation.
func NewBinanceClientWithAPI(apiClient BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient:  apiClient,
		onProgress: nil,
		now:        time.Now,
	}
}

// OnProgress registers a callback invoked after every fetched kline page.
func (c *BinanceClient) OnProgress(onProgress OnDownloadProgress) {
	c.onProgress = onProgress
}

func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// Klines pages through the kline endpoint, starting each request one
// millisecond after the close of the previous page's last kline.
func (c *BinanceClient) Klines(ctx context.Context, symbol string, interval string, start time.Time, end time.Time) ([]types.Bar, error) {
	if !end.After(start) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "end %s must be after start %s", end, start)
	}

	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()
	current := startMillis

	bars := make([]types.Bar, 0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "kline download cancelled", err)
		}

		klines, err := c.apiClient.Klines(ctx, symbol, interval, current, endMillis, binanceKlinesLimit)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s klines from Binance", symbol)
		}

		page, err := convertKlines(symbol, klines)
		if err != nil {
			return nil, err
		}

		bars = append(bars, page...)

		if c.onProgress != nil {
			c.onProgress(float64(current-startMillis), float64(endMillis-startMillis),
				fmt.Sprintf("Downloading %s klines from Binance", symbol))
		}

		if len(klines) < binanceKlinesLimit {
			break
		}

		current = klines[len(klines)-1].CloseTime + 1
		if current > endMillis {
			break
		}
	}

	return bars, nil
}

// Ticker reads the rolling 24h statistics, which carry the last price and the top of book.
func (c *BinanceClient) Ticker(ctx context.Context, symbol string) (types.Ticker, error) {
	stats, err := c.apiClient.PriceChangeStats(ctx, symbol)
	if err != nil {
		return types.Ticker{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s ticker from Binance", symbol)
	}

	values, err := parseFloats(stats.BidPrice, stats.AskPrice, stats.LastPrice, stats.Volume)
	if err != nil {
		return types.Ticker{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid %s ticker", symbol)
	}

	at := c.now().UTC()
	if stats.CloseTime > 0 {
		at = time.UnixMilli(stats.CloseTime).UTC()
	}

	return types.Ticker{
		Symbol:   symbol,
		Exchange: c.Name(),
		Bid:      values[0],
		Ask:      values[1],
		Last:     values[2],
		Volume:   values[3],
		Time:     at,
	}, nil
}

func (c *BinanceClient) OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error) {
	if depth <= 0 {
		depth = defaultOrderBookDepth
	}

	response, err := c.apiClient.Depth(ctx, symbol, depth)
	if err != nil {
		return types.OrderBook{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s order book from Binance", symbol)
	}

	bids := make([]types.BookLevel, 0, len(response.Bids))
	for _, bid := range response.Bids {
		level, err := parseLevel(bid.Price, bid.Quantity)
		if err != nil {
			return types.OrderBook{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid %s bid", symbol)
		}

		bids = append(bids, level)
	}

	asks := make([]types.BookLevel, 0, len(response.Asks))
	for _, ask := range response.Asks {
		level, err := parseLevel(ask.Price, ask.Quantity)
		if err != nil {
			return types.OrderBook{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid %s ask", symbol)
		}

		asks = append(asks, level)
	}

	return types.OrderBook{
		Symbol:   symbol,
		Exchange: c.Name(),
		Bids:     bids,
		Asks:     asks,
		Time:     c.now().UTC(),
	}, nil
}

// convertKlines converts Binance klines to bars stamped with the kline open time.
func convertKlines(symbol string, klines []*binance.Kline) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(klines))

	for _, k := range klines {
		values, err := parseFloats(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid kline at %d", k.OpenTime)
		}

		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	return bars, nil
}

func parseLevel(price, quantity string) (types.BookLevel, error) {
	values, err := parseFloats(price, quantity)
	if err != nil {
		return types.BookLevel{}, err
	}

	return types.BookLevel{Price: values[0], Amount: values[1]}, nil
}

func parseFloats(raw ...string) ([]float64, error) {
	values := make([]float64, len(raw))

	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}
