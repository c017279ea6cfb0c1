package accounting

import (
	"math/big"

	"uniswap-lp-lab/internal/domain"
)

// Summary aggregates a reconstruction run across all finalized positions.
// Sideways positions stay in the raw counts but are excluded from the yield
// figures, since the one-sided fee decomposition does not apply to them.
type Summary struct {
	Finalized   int
	ByDirection map[domain.Direction]int

	// YieldPositions is the number of positions contributing to the yield
	// aggregates (finalized minus sideways).
	YieldPositions int

	TotalFeesInQuote    *big.Int
	TotalOpeningInQuote *big.Int
	TotalNetReturn      *big.Int

	// MeanGrossYieldBps is the arithmetic mean of per-position yields over
	// YieldPositions, truncating.
	MeanGrossYieldBps int64

	Exclusions domain.Exclusions
}

// Summarize computes run-level aggregates from finalized reports.
func Summarize(reports []*domain.PositionReport, excl domain.Exclusions) *Summary {
	s := &Summary{
		Finalized:           len(reports),
		ByDirection:         make(map[domain.Direction]int),
		TotalFeesInQuote:    new(big.Int),
		TotalOpeningInQuote: new(big.Int),
		TotalNetReturn:      new(big.Int),
		Exclusions:          excl,
	}

	var yieldSum int64
	for _, r := range reports {
		s.ByDirection[r.Direction]++
		if r.Direction == domain.DirectionSideways {
			continue
		}
		s.YieldPositions++
		s.TotalFeesInQuote.Add(s.TotalFeesInQuote, r.FeesTotalInQuote)
		s.TotalOpeningInQuote.Add(s.TotalOpeningInQuote, r.OpeningLiquidityInQuote)
		s.TotalNetReturn.Add(s.TotalNetReturn, r.NetReturn)
		yieldSum += r.GrossYieldBps
	}

	if s.YieldPositions > 0 {
		s.MeanGrossYieldBps = yieldSum / int64(s.YieldPositions)
	}
	return s
}
