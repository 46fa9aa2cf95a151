package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for one leg with the given notional value
	Calculate(notional float64) float64
}

type Broker string

const (
	BrokerPercentage Broker = "percentage"
	BrokerZero       Broker = "zero_commission"
)

// DefaultFeeRate is the per-leg taker fee of the supported exchanges.
const DefaultFeeRate = 0.001

var AllBrokers = []any{
	BrokerPercentage,
	BrokerZero,
}

// GetCommissionFeeHandler returns the fee schedule of broker. Unknown brokers
// fall back to the percentage schedule.
func GetCommissionFeeHandler(broker Broker, rate float64) CommissionFee {
	switch broker {
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewPercentageCommissionFee(rate)
	}
}
