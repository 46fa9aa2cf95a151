package indicator

import (
	"math"
	"sort"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

// summaryWindow is the number of trailing bars covered by the 24h statistics
// on hourly data.
const summaryWindow = 24

// Trend is the position of the last close relative to the medium SMA.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
)

// Momentum is the side of the RSI midline.
type Momentum string

const (
	MomentumPositive Momentum = "positive"
	MomentumNegative Momentum = "negative"
)

// MACDBias is the side of the MACD line relative to its signal.
type MACDBias string

const (
	MACDBiasBuy  MACDBias = "buy"
	MACDBiasSell MACDBias = "sell"
)

// MarketSummary describes the latest state of an augmented series.
type MarketSummary struct {
	LastPrice      float64  `json:"last_price" yaml:"last_price"`
	PriceChange24h float64  `json:"price_change_24h" yaml:"price_change_24h"`
	High24h        float64  `json:"high_24h" yaml:"high_24h"`
	Low24h         float64  `json:"low_24h" yaml:"low_24h"`
	Volume24h      float64  `json:"volume_24h" yaml:"volume_24h"`
	Volatility24h  float64  `json:"volatility_24h" yaml:"volatility_24h"`
	Trend          Trend    `json:"trend" yaml:"trend"`
	Momentum       Momentum `json:"momentum" yaml:"momentum"`
	Signal         MACDBias `json:"signal" yaml:"signal"`
	RSI            float64  `json:"rsi" yaml:"rsi"`
	MACD           float64  `json:"macd" yaml:"macd"`
	MACDSignal     float64  `json:"macd_signal" yaml:"macd_signal"`
}

// Summarize returns the market summary of rows. An empty series gives a zero summary.
func Summarize(rows []types.IndicatorRow) MarketSummary {
	if len(rows) == 0 {
		return MarketSummary{}
	}

	last := rows[len(rows)-1]

	from := 0
	if len(rows) >= summaryWindow {
		from = len(rows) - summaryWindow
	}

	window := rows[from:]

	summary := MarketSummary{
		LastPrice:  last.Close,
		High24h:    math.Inf(-1),
		Low24h:     math.Inf(1),
		RSI:        last.RSI,
		MACD:       last.MACDLine,
		MACDSignal: last.MACDSignal,
		Trend:      TrendBearish,
		Momentum:   MomentumNegative,
		Signal:     MACDBiasSell,
	}

	if ref := window[0].Close; ref != 0 {
		summary.PriceChange24h = (last.Close - ref) / ref * 100
	}

	for _, r := range window {
		summary.High24h = math.Max(summary.High24h, r.High)
		summary.Low24h = math.Min(summary.Low24h, r.Low)
		summary.Volume24h += r.Volume
	}

	summary.Volatility24h = returnsStdDev(rows, from) * 100

	if last.Close > last.SMA50 {
		summary.Trend = TrendBullish
	}

	if last.RSI > 50 {
		summary.Momentum = MomentumPositive
	}

	if last.MACDLine > last.MACDSignal {
		summary.Signal = MACDBiasBuy
	}

	return summary
}

// returnsStdDev is the sample standard deviation of the close-to-close returns
// ending at the bars from index from onward.
func returnsStdDev(rows []types.IndicatorRow, from int) float64 {
	returns := make([]float64, 0, len(rows)-from)

	for i := max(from, 1); i < len(rows); i++ {
		prev := rows[i-1].Close
		if prev == 0 {
			continue
		}

		returns = append(returns, rows[i].Close/prev-1)
	}

	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	sum := 0.0
	for _, r := range returns {
		sum += (r - mean) * (r - mean)
	}

	return math.Sqrt(sum / float64(len(returns)-1))
}

// PriceLevel is one bucket of a volume profile.
type PriceLevel struct {
	Price  float64 `json:"price" yaml:"price"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// VolumeProfile is the distribution of traded volume across close prices.
type VolumeProfile struct {
	Levels         []PriceLevel `json:"levels" yaml:"levels"`
	PointOfControl PriceLevel   `json:"point_of_control" yaml:"point_of_control"`
	ValueAreaLow   float64      `json:"value_area_low" yaml:"value_area_low"`
	ValueAreaHigh  float64      `json:"value_area_high" yaml:"value_area_high"`
}

// valueAreaShare is the share of total volume the value area holds.
const valueAreaShare = 0.7

// AnalyzeVolumeProfile buckets bar volume by close price into levels equal
// price bins between the lowest low and the highest high.
func AnalyzeVolumeProfile(bars []types.Bar, levels int) (VolumeProfile, bool) {
	if len(bars) == 0 || levels <= 0 {
		return VolumeProfile{}, false
	}

	low, high := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		low = math.Min(low, b.Low)
		high = math.Max(high, b.High)
	}

	step := (high - low) / float64(levels)

	profile := VolumeProfile{Levels: make([]PriceLevel, levels)}
	for i := range profile.Levels {
		profile.Levels[i].Price = low + float64(i)*step
	}

	for _, b := range bars {
		idx := 0
		if step > 0 {
			idx = int((b.Close - low) / step)
		}

		idx = min(max(idx, 0), levels-1)
		profile.Levels[idx].Volume += b.Volume
	}

	profile.PointOfControl = profile.Levels[0]

	total := 0.0
	for _, l := range profile.Levels {
		total += l.Volume

		if l.Volume > profile.PointOfControl.Volume {
			profile.PointOfControl = l
		}
	}

	byVolume := make([]PriceLevel, len(profile.Levels))
	copy(byVolume, profile.Levels)
	sort.SliceStable(byVolume, func(i, j int) bool { return byVolume[i].Volume > byVolume[j].Volume })

	profile.ValueAreaLow = profile.PointOfControl.Price
	profile.ValueAreaHigh = profile.PointOfControl.Price

	cumulative := 0.0
	for _, l := range byVolume {
		cumulative += l.Volume
		if cumulative > total*valueAreaShare {
			break
		}

		profile.ValueAreaLow = math.Min(profile.ValueAreaLow, l.Price)
		profile.ValueAreaHigh = math.Max(profile.ValueAreaHigh, l.Price)
	}

	return profile, true
}
