package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
)

// OnDownloadProgress reports paging progress in milliseconds of the requested range.
type OnDownloadProgress = func(current float64, total float64, message string)

// Provider is a source of exchange market data.
type Provider interface {
	// Name is the exchange identifier reported on tickers and order books.
	Name() string
	// Klines returns the bars of symbol with open time in [start, end], oldest first.
	// example:
	// Klines(ctx, "BTCUSDT", "1h", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	Klines(ctx context.Context, symbol string, interval string, start time.Time, end time.Time) ([]types.Bar, error)
	// Ticker returns the current top of book and last price of symbol.
	Ticker(ctx context.Context, symbol string) (types.Ticker, error)
	// OrderBook returns up to depth levels per side of the order book of symbol.
	OrderBook(ctx context.Context, symbol string, depth int) (types.OrderBook, error)
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, onProgress OnDownloadProgress) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		client := NewBinanceClient()
		client.OnProgress(onProgress)

		return client, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported market data provider: %s", providerType)
	}
}
