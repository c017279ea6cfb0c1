package tickmath

import (
	"errors"
	"math/big"
	"testing"

	"uniswap-lp-lab/internal/domain"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad integer literal %q", s)
	}
	return v
}

func TestSqrtRatioX96_KnownValues(t *testing.T) {
	cases := []struct {
		tick int
		want string
	}{
		// Boundary constants published by the pool contract itself.
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
		// sqrt(1.0001^0) is exactly 2^96.
		{0, "79228162514264337593543950336"},
	}

	for _, tc := range cases {
		got, err := SqrtRatioX96(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tc.tick, err)
		}
		if got.Cmp(mustBig(t, tc.want)) != 0 {
			t.Errorf("tick %d: expected %s, got %s", tc.tick, tc.want, got)
		}
	}
}

func TestSqrtRatioX96_OutOfRange(t *testing.T) {
	for _, tick := range []int{MinTick - 1, MaxTick + 1} {
		if _, err := SqrtRatioX96(tick); !errors.Is(err, ErrTickOutOfRange) {
			t.Errorf("tick %d: expected ErrTickOutOfRange, got %v", tick, err)
		}
	}
}

func TestPriceOfTick_Zero(t *testing.T) {
	conv := NewConverter()

	p, err := conv.PriceOfTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cmp(domain.PriceScale) != 0 {
		t.Errorf("expected price at tick 0 to be exactly SCALE, got %s", p)
	}
}

func TestPriceOfTick_DecreasesWithTick(t *testing.T) {
	conv := NewConverter()

	ticks := []int{-300000, -100, -1, 0, 1, 100, 300000}
	var prev *big.Int
	for _, tick := range ticks {
		p, err := conv.PriceOfTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if prev != nil && p.Cmp(prev) >= 0 {
			t.Errorf("price at tick %d (%s) not below previous (%s)", tick, p, prev)
		}
		prev = p
	}
}

func TestPriceOfTick_OutOfRange(t *testing.T) {
	conv := NewConverter()
	if _, err := conv.PriceOfTick(MaxTick + 1); !errors.Is(err, ErrTickOutOfRange) {
		t.Errorf("expected ErrTickOutOfRange, got %v", err)
	}
}

func TestTickOfPrice_RoundTrip(t *testing.T) {
	conv := NewConverter()

	// Ticks in the range real pools actually trade in.
	for _, tick := range []int{-201450, -60, -1, 0, 1, 60, 201450, 250000} {
		p, err := conv.PriceOfTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		got, err := conv.TickOfPrice(p)
		if err != nil {
			t.Fatalf("tick %d: inverse failed: %v", tick, err)
		}
		if got < tick-1 || got > tick+1 {
			t.Errorf("round trip of tick %d drifted to %d", tick, got)
		}
	}
}

func TestTickOfPrice_OutOfRange(t *testing.T) {
	conv := NewConverter()

	if _, err := conv.TickOfPrice(big.NewInt(0)); !errors.Is(err, ErrPriceOutOfRange) {
		t.Errorf("expected ErrPriceOutOfRange for zero price, got %v", err)
	}

	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(60), nil)
	if _, err := conv.TickOfPrice(huge); !errors.Is(err, ErrPriceOutOfRange) {
		t.Errorf("expected ErrPriceOutOfRange for huge price, got %v", err)
	}
}
