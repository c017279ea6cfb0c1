package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Direction classifies how the market moved over a position's lifetime,
// decoded from the closing liquidity-decrease event.
type Direction string

const (
	// DirectionUnknown is the zero state before classification has run.
	DirectionUnknown Direction = "UNKNOWN"
	// DirectionTradedUp: the base-asset principal was fully liquidated
	// (amount1 == 0); the position's value moved entirely into the quote asset.
	DirectionTradedUp Direction = "TRADED_UP"
	// DirectionTradedDown: the quote-asset principal was fully liquidated
	// (amount0 == 0); the position's value moved entirely into the base asset.
	DirectionTradedDown Direction = "TRADED_DOWN"
	// DirectionSideways: the position closed while the price was still inside
	// its range. Retained in raw counts, excluded from yield aggregation.
	DirectionSideways Direction = "SIDEWAYS"
)

// Position is the reconstructed lifecycle of one concentrated-liquidity
// position, keyed by the AMM's numeric token id. It is mutated by the
// builder and accountant passes in their documented order and becomes
// immutable once finalized or excluded.
//
// All monetary fields are unsigned big integers in each asset's native
// smallest unit. Quote asset = token0, base asset = token1; with that
// ordering the pool price is strictly decreasing in tick.
type Position struct {
	TokenID uint64

	Direction Direction

	OpenedAt int64 // opening transaction's block timestamp, Unix seconds
	ClosedAt int64 // closing transaction's block timestamp, Unix seconds

	OpenTx  common.Hash
	CloseTx common.Hash

	// RangeWidthBps is the price range width in basis points around the
	// midpoint, derived from the opening mint event's tick bounds.
	RangeWidthBps int64

	// Opening transfers into the pool, summed from the opening transaction.
	OpeningLiquidityBase  *big.Int
	OpeningLiquidityQuote *big.Int

	// Principal portion of the withdrawal, from the liquidity-decrease event.
	ClosingLiquidityBase  *big.Int
	ClosingLiquidityQuote *big.Int

	// Total transfers back to the account in the closing transaction
	// (principal plus fees).
	WithdrawnBase  *big.Int
	WithdrawnQuote *big.Int

	// Fee decomposition, valid only after Direction is set.
	FeesBase  *big.Int
	FeesQuote *big.Int

	// PriceScale-scaled prices from the price index.
	PriceAtOpening *big.Int
	PriceAtClosing *big.Int

	// GasPaid is attached by the receipt collaborator; nil when unknown.
	GasPaid *big.Int
}
