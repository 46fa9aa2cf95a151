package datasource

import (
	"iter"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/moth-trading/internal/types"
)

// Interval is the bucket size bars are resampled to.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

type DataSource interface {
	// Initialize loads the bar file at path. Parquet and CSV files are supported.
	Initialize(path string) error
	// ReadAll yields the bars in [start, end] ordered by time
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) iter.Seq2[types.Bar, error]
	// GetRange returns the bars in [start, end], resampled to interval when one is given
	GetRange(start optional.Option[time.Time], end optional.Option[time.Time], interval optional.Option[Interval]) ([]types.Bar, error)
	// Count returns the number of bars in [start, end]
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources
	Close() error
}

// Collect materializes every bar yielded by ReadAll.
func Collect(source DataSource, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	bars := make([]types.Bar, 0)

	for bar, err := range source.ReadAll(start, end) {
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
