// Package tickmath converts AMM ticks to fixed-point prices using exact
// integer arithmetic. The pool encodes price as a Q64.96 square root; the
// conversion below reproduces the pool's own bit-ladder computation on
// math/big so no floating-point intermediate ever touches the money path.
package tickmath

import (
	"errors"
	"math/big"

	"uniswap-lp-lab/internal/domain"
)

// Valid tick domain of the AMM price curve.
const (
	MinTick = -887272
	MaxTick = 887272
)

// Errors returned by conversions.
var (
	ErrTickOutOfRange  = errors.New("tick outside valid domain")
	ErrPriceOutOfRange = errors.New("price outside representable tick domain")
)

// Magic multipliers for sqrt(1.0001^-(2^i)) in Q128.128, one per bit of the
// tick magnitude. Same ladder the pool contract uses.
var ratioMultipliers = []string{
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
}

var (
	ratioBase   = mustHex("fffcb933bd6fad37aa2d162d1a594001")
	ratioOne    = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint256  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	two192      = new(big.Int).Lsh(big.NewInt(1), 192)
	multipliers []*big.Int
)

func init() {
	multipliers = make([]*big.Int, len(ratioMultipliers))
	for i, s := range ratioMultipliers {
		multipliers[i] = mustHex(s)
	}
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("tickmath: bad hex constant " + s)
	}
	return v
}

// SqrtRatioX96 returns sqrt(1.0001^tick) as a Q64.96 fixed-point integer.
func SqrtRatioX96(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioBase)
	} else {
		ratio.Set(ratioOne)
	}
	for i, m := range multipliers {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, m)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	rem := new(big.Int).And(ratio, new(big.Int).SetUint64(1<<32-1))
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// Converter is the tick<->price conversion collaborator handed to the
// position builder. Prices are quote (token0) smallest-units per base
// (token1) smallest-unit at domain.PriceScale, which makes the price
// strictly decreasing in tick over the usable domain.
type Converter struct{}

// NewConverter returns the exact integer converter.
func NewConverter() *Converter {
	return &Converter{}
}

// PriceOfTick returns the PriceScale-scaled quote-per-base price at tick.
// price = 2^192 * SCALE / sqrtRatio^2, truncating.
func (c *Converter) PriceOfTick(tick int) (*big.Int, error) {
	sqrt, err := SqrtRatioX96(tick)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(two192, domain.PriceScale)
	denom := new(big.Int).Mul(sqrt, sqrt)
	return num.Div(num, denom), nil
}

// TickOfPrice returns the largest tick whose price is >= the given price,
// the inverse of PriceOfTick up to truncation. Prices outside the value
// range of the tick domain yield ErrPriceOutOfRange.
func (c *Converter) TickOfPrice(price *big.Int) (int, error) {
	if price == nil || price.Sign() <= 0 {
		return 0, ErrPriceOutOfRange
	}

	highest, err := c.PriceOfTick(MinTick)
	if err != nil {
		return 0, err
	}
	lowest, err := c.PriceOfTick(MaxTick)
	if err != nil {
		return 0, err
	}
	if price.Cmp(highest) > 0 || price.Cmp(lowest) < 0 {
		return 0, ErrPriceOutOfRange
	}

	// Price decreases with tick: binary search for the first tick whose
	// price drops below the target, then step back one.
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		p, err := c.PriceOfTick(mid)
		if err != nil {
			return 0, err
		}
		if p.Cmp(price) >= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
