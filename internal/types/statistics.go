package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Report aggregates a finished backtest's trade log and equity curve.
type Report struct {
	// Count of all closed trades.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// Count of trades with positive net pnl.
	WinningTrades int `yaml:"winning_trades" json:"winning_trades"`
	// Count of trades with negative net pnl.
	LosingTrades int `yaml:"losing_trades" json:"losing_trades"`
	// Win rate in percent, 0 when there are no trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Gross profit divided by gross loss. +Inf when nothing was lost but something was won.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// Sum of the net pnl of winning trades.
	GrossProfit float64 `yaml:"gross_profit" json:"gross_profit"`
	// Absolute sum of the net pnl of losing trades.
	GrossLoss float64 `yaml:"gross_loss" json:"gross_loss"`
	// Fees paid on both legs of every trade.
	TotalFees float64 `yaml:"total_fees" json:"total_fees"`
	// Total return in percent of the initial balance.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// Maximum peak to trough decline of the equity curve in percent.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// Average number of bars a trade was held.
	AvgHoldingBars float64 `yaml:"avg_holding_bars" json:"avg_holding_bars"`
	// Return in percent of holding the asset from the first to the last close.
	BuyAndHoldReturn float64 `yaml:"buy_and_hold_return" json:"buy_and_hold_return"`

	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance"`
	FinalBalance   float64 `yaml:"final_balance" json:"final_balance"`
}

// RunStats describes one backtest run written to a results folder.
type RunStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// ConfigName identifies the configuration the run used.
	ConfigName string `yaml:"config_name" json:"config_name"`
	// DataPath is the path to the bar file used for this run.
	DataPath string `yaml:"data_path" json:"data_path"`
	// Report holds the performance figures.
	Report Report `yaml:"report" json:"report"`
	// TradesFilePath is the path to the trades csv file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
	// EquityFilePath is the path to the equity curve csv file.
	EquityFilePath string `yaml:"equity_file_path" json:"equity_file_path"`
	// EngineVersion is the build version of the engine that produced the run.
	EngineVersion string `yaml:"engine_version" json:"engine_version"`
}

func WriteRunStats(path string, stats []RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats to file: %w", err)
	}

	return nil
}

// ReadRunStats loads stats previously written by WriteRunStats.
func ReadRunStats(path string) ([]RunStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run stats file: %w", err)
	}

	var stats []RunStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}

	return stats, nil
}
