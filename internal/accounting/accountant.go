// Package accounting computes direction-dependent fee decomposition and the
// derived yield metrics for reconstructed positions. All arithmetic is
// arbitrary-precision integer with truncating division; the only scale
// factor in play is domain.PriceScale.
package accounting

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"sort"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/priceindex"
)

// ErrMissingRequiredField means a pass read a field an earlier pass never
// set. That is a programming-contract violation, not a data problem, so it
// fails the run instead of being defaulted away.
var ErrMissingRequiredField = errors.New("required field read before being set")

// Accountant runs the fee, price and metric passes over a position map.
type Accountant struct {
	index *priceindex.Index
	excl  domain.Exclusions
}

// NewAccountant creates an accountant reading prices from the given index.
func NewAccountant(index *priceindex.Index) *Accountant {
	return &Accountant{index: index}
}

// DecomposeFees splits each closing withdrawal into principal and fee
// income. For a one-sided close, the leg that was fully converted carries
// no principal, so its entire raw transfer amount is fees; the other leg's
// fees are the transfer total minus the principal from the
// liquidity-decrease event.
//
// A negative fee value is an anomaly observed in real data: the position is
// excluded and counted, never clamped.
func (a *Accountant) DecomposeFees(positions map[uint64]*domain.Position) error {
	var drop []uint64

	for tokenID, pos := range positions {
		if pos.Direction == domain.DirectionUnknown {
			return fmt.Errorf("token %d: direction: %w", tokenID, ErrMissingRequiredField)
		}
		if pos.WithdrawnBase == nil || pos.WithdrawnQuote == nil ||
			pos.ClosingLiquidityBase == nil || pos.ClosingLiquidityQuote == nil {
			return fmt.Errorf("token %d: withdrawal amounts: %w", tokenID, ErrMissingRequiredField)
		}

		switch pos.Direction {
		case domain.DirectionTradedDown:
			pos.FeesQuote = new(big.Int).Set(pos.WithdrawnQuote)
			pos.FeesBase = new(big.Int).Sub(pos.WithdrawnBase, pos.ClosingLiquidityBase)
		case domain.DirectionTradedUp:
			pos.FeesBase = new(big.Int).Set(pos.WithdrawnBase)
			pos.FeesQuote = new(big.Int).Sub(pos.WithdrawnQuote, pos.ClosingLiquidityQuote)
		case domain.DirectionSideways:
			pos.FeesBase = new(big.Int)
			pos.FeesQuote = new(big.Int)
		}

		if pos.FeesBase.Sign() < 0 || pos.FeesQuote.Sign() < 0 {
			log.Printf("[accounting] negative fee anomaly: token=%d direction=%s feesBase=%s feesQuote=%s",
				tokenID, pos.Direction, pos.FeesBase, pos.FeesQuote)
			a.excl.NegativeFeeAnomaly++
			drop = append(drop, tokenID)
		}
	}

	for _, id := range drop {
		delete(positions, id)
	}
	return nil
}

// AttachPrices looks up the pool price at each position's opening and
// closing timestamps. A missing price is a property of the supplied price
// history, not of one position, so it is a hard failure.
func (a *Accountant) AttachPrices(positions map[uint64]*domain.Position) error {
	for tokenID, pos := range positions {
		opening, err := a.index.PriceAt(pos.OpenedAt)
		if err != nil {
			return fmt.Errorf("token %d opened at %d: %w", tokenID, pos.OpenedAt, err)
		}
		closing, err := a.index.PriceAt(pos.ClosedAt)
		if err != nil {
			return fmt.Errorf("token %d closed at %d: %w", tokenID, pos.ClosedAt, err)
		}
		pos.PriceAtOpening = opening
		pos.PriceAtClosing = closing
	}
	return nil
}

// Finalize computes the derived metrics and produces the flat report
// records, sorted by token id. Positions whose opening value is zero cannot
// be expressed as a yield and are excluded.
func (a *Accountant) Finalize(positions map[uint64]*domain.Position) ([]*domain.PositionReport, error) {
	reports := make([]*domain.PositionReport, 0, len(positions))

	for tokenID, pos := range positions {
		if pos.FeesBase == nil || pos.FeesQuote == nil {
			return nil, fmt.Errorf("token %d: fees: %w", tokenID, ErrMissingRequiredField)
		}
		if pos.PriceAtOpening == nil || pos.PriceAtClosing == nil {
			return nil, fmt.Errorf("token %d: prices: %w", tokenID, ErrMissingRequiredField)
		}
		if pos.OpeningLiquidityQuote == nil || pos.OpeningLiquidityBase == nil ||
			pos.ClosingLiquidityQuote == nil || pos.ClosingLiquidityBase == nil {
			return nil, fmt.Errorf("token %d: liquidity amounts: %w", tokenID, ErrMissingRequiredField)
		}

		feesTotal := quoteValue(pos.FeesQuote, pos.FeesBase, pos.PriceAtClosing)
		openingTotal := quoteValue(pos.OpeningLiquidityQuote, pos.OpeningLiquidityBase, pos.PriceAtOpening)
		closingTotal := quoteValue(pos.ClosingLiquidityQuote, pos.ClosingLiquidityBase, pos.PriceAtClosing)

		if openingTotal.Sign() == 0 {
			a.excl.InvariantViolation++
			continue
		}

		yield := new(big.Int).Mul(feesTotal, big.NewInt(10000))
		yield.Div(yield, openingTotal)

		il := new(big.Int).Sub(closingTotal, openingTotal)

		net := new(big.Int).Set(feesTotal)
		if pos.GasPaid != nil {
			net.Sub(net, pos.GasPaid)
		}
		net.Add(net, il)

		reports = append(reports, &domain.PositionReport{
			TokenID:                 tokenID,
			Direction:               pos.Direction,
			RangeWidthBps:           pos.RangeWidthBps,
			OpenedAt:                pos.OpenedAt,
			ClosedAt:                pos.ClosedAt,
			TimeOpenSeconds:         pos.ClosedAt - pos.OpenedAt,
			OpeningLiquidityInQuote: openingTotal,
			ClosingLiquidityInQuote: closingTotal,
			FeesTotalInQuote:        feesTotal,
			GrossYieldBps:           yield.Int64(),
			ImpermanentLoss:         il,
			NetReturn:               net,
			GasPaid:                 pos.GasPaid,
			PriceAtOpening:          pos.PriceAtOpening,
			PriceAtClosing:          pos.PriceAtClosing,
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TokenID < reports[j].TokenID
	})
	return reports, nil
}

// Exclusions returns the counts accumulated by the accountant's passes.
func (a *Accountant) Exclusions() domain.Exclusions {
	return a.excl
}

// quoteValue converts (quote, base) legs into a single quote-denominated
// total: quote + base*price/SCALE, truncating.
func quoteValue(quote, base, price *big.Int) *big.Int {
	v := new(big.Int).Mul(base, price)
	v.Div(v, domain.PriceScale)
	return v.Add(v, quote)
}
