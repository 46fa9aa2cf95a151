package indicator

import (
	"time"

	"github.com/rxtech-lab/moth-trading/internal/types"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// linearBars returns bars whose close moves by step each hour with a constant
// one unit range around the close.
func linearBars(n int, start, step float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		c := start + float64(i)*step
		bars[i] = types.Bar{
			Symbol: "BTCUSDT",
			Time:   testStart.Add(time.Duration(i) * time.Hour),
			Open:   c - step/2,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 100,
		}
	}

	return bars
}

func closeBars(values ...float64) []types.Bar {
	bars := make([]types.Bar, len(values))
	for i, v := range values {
		bars[i] = types.Bar{
			Symbol: "BTCUSDT",
			Time:   testStart.Add(time.Duration(i) * time.Hour),
			Open:   v,
			High:   v,
			Low:    v,
			Close:  v,
			Volume: 1,
		}
	}

	return bars
}
