package engine

import (
	"math"

	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/shopspring/decimal"
)

// NewReport aggregates a trade log and an equity curve. bars only feeds the
// buy and hold comparison and may be empty.
func NewReport(initialBalance float64, trades []types.ClosedTrade, equity []float64, bars []types.Bar) types.Report {
	report := types.Report{
		TotalTrades:      len(trades),
		InitialBalance:   initialBalance,
		FinalBalance:     initialBalance,
		MaxDrawdown:      maxDrawdown(initialBalance, equity),
		BuyAndHoldReturn: buyAndHoldReturn(bars),
	}

	if len(trades) == 0 {
		return report
	}

	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	fees := decimal.Zero
	holding := 0

	for _, trade := range trades {
		pnl := decimal.NewFromFloat(trade.PnL)

		switch {
		case pnl.IsPositive():
			report.WinningTrades++
			grossProfit = grossProfit.Add(pnl)
		case pnl.IsNegative():
			report.LosingTrades++
			grossLoss = grossLoss.Add(pnl.Abs())
		}

		fees = fees.Add(decimal.NewFromFloat(trade.Fees))
		holding += trade.HoldingBars()
	}

	report.GrossProfit = grossProfit.InexactFloat64()
	report.GrossLoss = grossLoss.InexactFloat64()
	report.TotalFees = fees.InexactFloat64()
	report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades) * 100
	report.AvgHoldingBars = float64(holding) / float64(report.TotalTrades)
	report.ProfitFactor = profitFactor(grossProfit, grossLoss)
	report.FinalBalance = trades[len(trades)-1].Balance

	if initialBalance > 0 {
		report.TotalReturn = (report.FinalBalance - initialBalance) / initialBalance * 100
	}

	return report
}

// profitFactor is gross profit over gross loss, +Inf when only profits were
// made and 0 when nothing was made at all.
func profitFactor(grossProfit, grossLoss decimal.Decimal) float64 {
	if grossLoss.IsZero() {
		if grossProfit.IsPositive() {
			return math.Inf(1)
		}

		return 0
	}

	return grossProfit.Div(grossLoss).InexactFloat64()
}

// maxDrawdown is the largest decline from a running peak, in percent of that
// peak and capped at 100. The peak starts at the initial balance and never
// decreases.
func maxDrawdown(initialBalance float64, equity []float64) float64 {
	peak := initialBalance
	drawdown := 0.0

	for _, value := range equity {
		peak = math.Max(peak, value)
		if peak <= 0 {
			continue
		}

		drawdown = math.Max(drawdown, (peak-value)/peak*100)
	}

	return math.Min(drawdown, 100)
}

func buyAndHoldReturn(bars []types.Bar) float64 {
	first, last := math.NaN(), math.NaN()

	for _, bar := range bars {
		if math.IsNaN(bar.Close) || bar.Close <= 0 {
			continue
		}

		if math.IsNaN(first) {
			first = bar.Close
		}

		last = bar.Close
	}

	if math.IsNaN(first) {
		return 0
	}

	return (last - first) / first * 100
}
