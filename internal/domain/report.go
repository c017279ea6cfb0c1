package domain

import "math/big"

// PositionReport is the flat finalized record for one position, suitable
// for tabular export. All fixed-point values keep their native integer
// representation; formatting happens in the reporting layer.
type PositionReport struct {
	TokenID       uint64
	Direction     Direction
	RangeWidthBps int64

	OpenedAt int64 // Unix seconds
	ClosedAt int64 // Unix seconds

	// TimeOpenSeconds = ClosedAt - OpenedAt.
	TimeOpenSeconds int64

	// Quote-denominated totals (quote smallest units).
	OpeningLiquidityInQuote *big.Int
	ClosingLiquidityInQuote *big.Int
	FeesTotalInQuote        *big.Int

	// GrossYieldBps is fees over opening liquidity in basis points;
	// the bps intermediate keeps two decimal digits of percent without
	// floating point.
	GrossYieldBps int64

	// ImpermanentLoss = closing total - opening total. Positive means the
	// held value increased.
	ImpermanentLoss *big.Int

	// NetReturn = fees - gas (when known) + impermanent loss.
	NetReturn *big.Int

	// GasPaid in quote smallest units; nil when the receipt collaborator
	// did not supply it.
	GasPaid *big.Int

	PriceAtOpening *big.Int
	PriceAtClosing *big.Int
}
