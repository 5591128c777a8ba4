package engine

import "github.com/shopspring/decimal"

// px converts a float candle price into an exact decimal using the
// shortest representation that round-trips, so 1.1005 stays 1.1005.
func px(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func f64(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
