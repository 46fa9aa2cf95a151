package commission_fee

import "math"

// PercentageCommissionFee charges a flat rate of each leg's notional.
type PercentageCommissionFee struct {
	rate float64
}

func NewPercentageCommissionFee(rate float64) CommissionFee {
	return &PercentageCommissionFee{rate: rate}
}

// Rate returns the fee rate per leg.
func (c *PercentageCommissionFee) Rate() float64 {
	return c.rate
}

func (c *PercentageCommissionFee) Calculate(notional float64) float64 {
	return math.Abs(notional) * c.rate
}
