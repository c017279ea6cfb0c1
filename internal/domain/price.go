package domain

import "math/big"

// PriceScale is the fixed-point scale for all price values: prices are
// quote smallest-units per base smallest-unit, multiplied by 1e18.
// Every multiplication by a price is followed by a truncating division
// by PriceScale; no floating point participates anywhere in the money path.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// PriceSample is one observed pool price, derived externally from a swap
// event's tick. Samples are loaded into the price index in non-decreasing
// timestamp order.
type PriceSample struct {
	Timestamp int64    // block timestamp, Unix seconds
	Price     *big.Int // PriceScale-scaled quote per base
}
