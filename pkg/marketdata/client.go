package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata/provider"
	"github.com/rxtech-lab/moth-trading/pkg/marketdata/writer"
)

// OutputFormat is the file format of downloaded bars.
type OutputFormat string

const (
	OutputFormatCSV     OutputFormat = "csv"
	OutputFormatParquet OutputFormat = "parquet"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType provider.ProviderType `validate:"required,oneof=binance"`
	Format       OutputFormat          `validate:"required,oneof=csv parquet"`
	DataPath     string                `validate:"required"`
}

// DownloadParams holds the parameters for a market data download request.
type DownloadParams struct {
	Ticker    string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
	Interval  Timespan  `validate:"required"`
}

// Client downloads bars from a provider and stores them with a writer.
type Client struct {
	provider provider.Provider
	config   ClientConfig
	validate *validator.Validate
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig, onProgress provider.OnDownloadProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	marketProvider, err := provider.NewMarketDataProvider(config.ProviderType, onProgress)
	if err != nil {
		return nil, err
	}

	return &Client{
		provider: marketProvider,
		config:   config,
		validate: validate,
	}, nil
}

// NewClientWithProvider creates a client on top of an existing provider.
func NewClientWithProvider(marketProvider provider.Provider, config ClientConfig) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	return &Client{
		provider: marketProvider,
		config:   config,
		validate: validate,
	}, nil
}

// Download fetches the requested klines and writes them to a file under the
// configured data path. It returns the path of the written file.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if !params.Interval.Valid() {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", params.Interval)
	}

	bars, err := c.provider.Klines(ctx, params.Ticker, string(params.Interval), params.StartDate, params.EndDate)
	if err != nil {
		return "", err
	}

	marketWriter, err := c.setupWriter(params)
	if err != nil {
		return "", err
	}
	defer marketWriter.Close()

	for _, bar := range bars {
		if err := marketWriter.Write(bar); err != nil {
			return "", err
		}
	}

	return marketWriter.Finalize()
}

// OutputPath returns the file a download of params is written to:
// TICKER_START_END_INTERVAL.format under the data path.
func (c *Client) OutputPath(params DownloadParams) string {
	fileName := fmt.Sprintf("%s_%s_%s_%s.%s",
		params.Ticker,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		params.Interval,
		c.config.Format)

	return filepath.Join(c.config.DataPath, fileName)
}

func (c *Client) setupWriter(params DownloadParams) (writer.MarketDataWriter, error) {
	if err := os.MkdirAll(c.config.DataPath, 0755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create data path %s", c.config.DataPath)
	}

	duckdbWriter := writer.NewDuckDBWriter(c.OutputPath(params))
	if err := duckdbWriter.Initialize(); err != nil {
		return nil, err
	}

	return duckdbWriter, nil
}
