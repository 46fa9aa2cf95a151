package types

import "math"

type IndicatorType string

const (
	IndicatorTypeMA             IndicatorType = "ma"
	IndicatorTypeEMA            IndicatorType = "ema"
	IndicatorTypeRSI            IndicatorType = "rsi"
	IndicatorTypeMACD           IndicatorType = "macd"
	IndicatorTypeATR            IndicatorType = "atr"
	IndicatorTypeBollingerBands IndicatorType = "bollinger_bands"
	IndicatorTypeADX            IndicatorType = "adx"
)

// IndicatorRow is a Bar augmented with the derived indicator columns.
// Every column always carries a number: rows inside an indicator's warmup window
// hold that indicator's fallback value instead of NaN.
type IndicatorRow struct {
	Bar `yaml:",inline"`

	SMA20  float64 `json:"sma_20" yaml:"sma_20"`
	SMA50  float64 `json:"sma_50" yaml:"sma_50"`
	SMA200 float64 `json:"sma_200" yaml:"sma_200"`

	EMAFast float64 `json:"ema_fast" yaml:"ema_fast"`
	EMAMid  float64 `json:"ema_mid" yaml:"ema_mid"`
	EMASlow float64 `json:"ema_slow" yaml:"ema_slow"`

	RSI float64 `json:"rsi" yaml:"rsi"`

	MACDLine   float64 `json:"macd_line" yaml:"macd_line"`
	MACDSignal float64 `json:"macd_signal" yaml:"macd_signal"`
	MACDHist   float64 `json:"macd_hist" yaml:"macd_hist"`

	ATR float64 `json:"atr" yaml:"atr"`
	ADX float64 `json:"adx" yaml:"adx"`

	BBUpper  float64 `json:"bb_upper" yaml:"bb_upper"`
	BBMiddle float64 `json:"bb_middle" yaml:"bb_middle"`
	BBLower  float64 `json:"bb_lower" yaml:"bb_lower"`
}

// NewIndicatorRow seeds a row from a bar with every column at its fallback value.
func NewIndicatorRow(bar Bar) IndicatorRow {
	return IndicatorRow{
		Bar:        bar,
		SMA20:      bar.Close,
		SMA50:      bar.Close,
		SMA200:     bar.Close,
		EMAFast:    bar.Close,
		EMAMid:     bar.Close,
		EMASlow:    bar.Close,
		RSI:        50,
		MACDLine:   0,
		MACDSignal: 0,
		MACDHist:   0,
		ATR:        bar.High - bar.Low,
		ADX:        0,
		BBUpper:    bar.Close,
		BBMiddle:   bar.Close,
		BBLower:    bar.Close,
	}
}

// HasNaN reports whether the bar or any column the signal rules can read is
// NaN. ADX is checked even when no rule filters on it: NewIndicatorRow gives it
// a finite fallback, so only rows built outside the pipeline can trip on it.
func (r IndicatorRow) HasNaN() bool {
	if r.Bar.HasNaN() {
		return true
	}

	for _, v := range []float64{r.EMAFast, r.EMAMid, r.EMASlow, r.RSI, r.MACDLine, r.MACDSignal, r.ATR, r.ADX} {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}

// Column names one derived field of an IndicatorRow.
type Column string

const (
	ColumnSMA20      Column = "sma_20"
	ColumnSMA50      Column = "sma_50"
	ColumnSMA200     Column = "sma_200"
	ColumnEMAFast    Column = "ema_fast"
	ColumnEMAMid     Column = "ema_mid"
	ColumnEMASlow    Column = "ema_slow"
	ColumnRSI        Column = "rsi"
	ColumnMACDLine   Column = "macd_line"
	ColumnMACDSignal Column = "macd_signal"
	ColumnMACDHist   Column = "macd_hist"
	ColumnATR        Column = "atr"
	ColumnADX        Column = "adx"
	ColumnBBUpper    Column = "bb_upper"
	ColumnBBMiddle   Column = "bb_middle"
	ColumnBBLower    Column = "bb_lower"
)

func (r *IndicatorRow) field(c Column) *float64 {
	switch c {
	case ColumnSMA20:
		return &r.SMA20
	case ColumnSMA50:
		return &r.SMA50
	case ColumnSMA200:
		return &r.SMA200
	case ColumnEMAFast:
		return &r.EMAFast
	case ColumnEMAMid:
		return &r.EMAMid
	case ColumnEMASlow:
		return &r.EMASlow
	case ColumnRSI:
		return &r.RSI
	case ColumnMACDLine:
		return &r.MACDLine
	case ColumnMACDSignal:
		return &r.MACDSignal
	case ColumnMACDHist:
		return &r.MACDHist
	case ColumnATR:
		return &r.ATR
	case ColumnADX:
		return &r.ADX
	case ColumnBBUpper:
		return &r.BBUpper
	case ColumnBBMiddle:
		return &r.BBMiddle
	case ColumnBBLower:
		return &r.BBLower
	default:
		return nil
	}
}

// Set writes a column value. It returns false for an unknown column.
func (r *IndicatorRow) Set(c Column, v float64) bool {
	f := r.field(c)
	if f == nil {
		return false
	}

	*f = v

	return true
}

// Get reads a column value. Unknown columns read as NaN.
func (r *IndicatorRow) Get(c Column) float64 {
	f := r.field(c)
	if f == nil {
		return math.NaN()
	}

	return *f
}
