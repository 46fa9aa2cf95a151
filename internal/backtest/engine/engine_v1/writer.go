package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
)

const (
	statsFileName         = "stats.yaml"
	tradesFileName        = "trades.csv"
	tradesParquetFileName = "trades.parquet"
	equityFileName        = "equity.csv"

	insertBatchSize = 500
)

// SummaryFileName is the file WriteSummary writes under the results folder.
const SummaryFileName = "summary.yaml"

var tradeColumns = []string{
	"side", "entry_time", "exit_time", "entry_index", "exit_index", "entry_price", "exit_price",
	"size", "gross_pnl", "fees", "pnl", "balance", "exit_reason",
}

// ResultWriter stages a run's trades and equity curve in an in-memory DuckDB
// database and exports them to a results folder.
type ResultWriter struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewResultWriter opens the staging database.
func NewResultWriter() (*ResultWriter, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to open DuckDB", err)
	}

	return &ResultWriter{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Close releases the staging database.
func (w *ResultWriter) Close() error {
	return w.db.Close()
}

// Write exports the result of one run into folder: trades.csv, trades.parquet,
// equity.csv and stats.yaml. bars supplies the timestamps of the equity curve.
// The returned stats carry the written file paths.
func (w *ResultWriter) Write(folder string, stats types.RunStats, result *Result, bars []types.Bar) (types.RunStats, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return stats, errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to create results folder %s", folder)
	}

	if err := w.reset(); err != nil {
		return stats, err
	}

	if err := w.insertTrades(result.Trades); err != nil {
		return stats, err
	}

	if err := w.insertEquity(result.EquityCurve, bars); err != nil {
		return stats, err
	}

	stats.TradesFilePath = filepath.Join(folder, tradesFileName)
	stats.EquityFilePath = filepath.Join(folder, equityFileName)
	stats.Report = result.Report

	exports := []struct {
		query string
		path  string
		opts  string
	}{
		{query: "SELECT * FROM trades ORDER BY exit_index", path: stats.TradesFilePath, opts: "FORMAT CSV, HEADER"},
		{query: "SELECT * FROM trades ORDER BY exit_index", path: filepath.Join(folder, tradesParquetFileName), opts: "FORMAT PARQUET"},
		{query: "SELECT * FROM equity ORDER BY idx", path: stats.EquityFilePath, opts: "FORMAT CSV, HEADER"},
	}

	for _, export := range exports {
		query := fmt.Sprintf("COPY (%s) TO '%s' (%s)", export.query, quoteLiteral(export.path), export.opts)
		if _, err := w.db.Exec(query); err != nil {
			return stats, errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to export %s", export.path)
		}
	}

	if err := types.WriteRunStats(filepath.Join(folder, statsFileName), []types.RunStats{stats}); err != nil {
		return stats, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write stats", err)
	}

	return stats, nil
}

func (w *ResultWriter) reset() error {
	_, err := w.db.Exec(`
		CREATE OR REPLACE TABLE trades (
			side TEXT,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_index INTEGER,
			exit_index INTEGER,
			entry_price DOUBLE,
			exit_price DOUBLE,
			size DOUBLE,
			gross_pnl DOUBLE,
			fees DOUBLE,
			pnl DOUBLE,
			balance DOUBLE,
			exit_reason TEXT
		);
		CREATE OR REPLACE TABLE equity (
			idx INTEGER,
			time TIMESTAMP,
			equity DOUBLE
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create result tables", err)
	}

	return nil
}

func (w *ResultWriter) insertTrades(trades []types.ClosedTrade) error {
	for start := 0; start < len(trades); start += insertBatchSize {
		insert := w.sq.Insert("trades").Columns(tradeColumns...)

		for _, t := range trades[start:min(start+insertBatchSize, len(trades))] {
			insert = insert.Values(string(t.Side), t.EntryTime, t.ExitTime, t.EntryIndex, t.ExitIndex, t.EntryPrice,
				t.ExitPrice, t.Size, t.GrossPnL, t.Fees, t.PnL, t.Balance, string(t.ExitReason))
		}

		if err := w.exec(insert); err != nil {
			return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to insert trades", err)
		}
	}

	return nil
}

func (w *ResultWriter) insertEquity(equity []float64, bars []types.Bar) error {
	for start := 0; start < len(equity); start += insertBatchSize {
		insert := w.sq.Insert("equity").Columns("idx", "time", "equity")

		for i := start; i < min(start+insertBatchSize, len(equity)); i++ {
			var at *time.Time
			if i < len(bars) {
				at = &bars[i].Time
			}

			insert = insert.Values(i, at, equity[i])
		}

		if err := w.exec(insert); err != nil {
			return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to insert equity curve", err)
		}
	}

	return nil
}

func (w *ResultWriter) exec(insert squirrel.InsertBuilder) error {
	query, args, err := insert.ToSql()
	if err != nil {
		return err
	}

	_, err = w.db.Exec(query, args...)

	return err
}

// WriteSummary writes the stats of every run of a sweep to summary.yaml in folder.
func WriteSummary(folder string, stats []types.RunStats) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to create results folder %s", folder)
	}

	if err := types.WriteRunStats(filepath.Join(folder, SummaryFileName), stats); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write summary", err)
	}

	return nil
}

func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
