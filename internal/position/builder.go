// Package position reconstructs concentrated-liquidity position lifecycles
// from indexed log subsets. The builder runs three ordered passes over the
// position map: direction classification, range-width derivation, and raw
// amount extraction. Each pass collects exclusions into a separate set and
// filters once after the pass completes, so exclusion order is deterministic
// and independent of map iteration order.
package position

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/evmlog"
	"uniswap-lp-lab/internal/logindex"
)

// TickConverter is the external tick->price conversion collaborator.
// Implementations must be pure and must error on ticks outside the AMM's
// valid tick domain.
type TickConverter interface {
	PriceOfTick(tick int) (*big.Int, error)
}

// PoolConfig identifies the contracts and account one reconstruction run
// reads. Quote asset is token0, base asset is token1.
type PoolConfig struct {
	Pool            common.Address
	PositionManager common.Address
	QuoteToken      common.Address
	BaseToken       common.Address
	Account         common.Address
}

type trackedPosition struct {
	pos  *domain.Position
	logs *logindex.PositionLogs
}

// Builder holds the mutable position map between passes.
type Builder struct {
	cfg     PoolConfig
	conv    TickConverter
	tracked map[uint64]*trackedPosition
	excl    domain.Exclusions
}

// NewBuilder creates a builder for one pool configuration.
func NewBuilder(cfg PoolConfig, conv TickConverter) *Builder {
	return &Builder{
		cfg:     cfg,
		conv:    conv,
		tracked: make(map[uint64]*trackedPosition),
	}
}

// Seed creates a position for every token id whose opening and closing
// transactions were both located. Ids missing either side are counted as
// incomplete and never enter the map; that is a normal filtering outcome,
// not an error.
func (b *Builder) Seed(index map[uint64]*logindex.PositionLogs) {
	for tokenID, logs := range index {
		if logs.Opening == nil || logs.Closing == nil {
			b.excl.Incomplete++
			continue
		}
		pos := &domain.Position{
			TokenID:   tokenID,
			Direction: domain.DirectionUnknown,
			OpenedAt:  logs.Opening[0].Timestamp,
			ClosedAt:  logs.Closing[0].Timestamp,
			OpenTx:    logs.Opening[0].TxHash,
			CloseTx:   logs.Closing[0].TxHash,
		}
		b.tracked[tokenID] = &trackedPosition{pos: pos, logs: logs}
	}
}

// ClassifyDirections decodes each position's closing liquidity-decrease
// event and sets the direction from which principal leg was fully
// liquidated. Must run before any fee computation.
func (b *Builder) ClassifyDirections() {
	var drop []uint64

	for tokenID, tp := range b.tracked {
		amount0, amount1, ok := b.decreaseAmounts(tokenID, tp.logs.Closing)
		if !ok {
			b.excl.Incomplete++
			drop = append(drop, tokenID)
			continue
		}
		switch {
		case amount0.Sign() == 0:
			tp.pos.Direction = domain.DirectionTradedDown
		case amount1.Sign() == 0:
			tp.pos.Direction = domain.DirectionTradedUp
		default:
			// Closed while price was inside the range; the one-sided fee
			// decomposition does not apply. Kept in raw counts.
			tp.pos.Direction = domain.DirectionSideways
		}
	}

	b.remove(drop)
}

// DeriveRangeWidths decodes tick bounds from each opening transaction's
// pool mint event and computes range width in basis points. The price is
// quote-per-base and decreases as the tick rises, so tickUpper maps to
// priceLower and tickLower maps to priceUpper; that inversion is load
// bearing and must not be "fixed".
func (b *Builder) DeriveRangeWidths() {
	var drop []uint64

	for tokenID, tp := range b.tracked {
		tickLower, tickUpper, ok := b.mintTicks(tp.logs.Opening)
		if !ok {
			b.excl.Incomplete++
			drop = append(drop, tokenID)
			continue
		}

		priceLower, errLower := b.conv.PriceOfTick(tickUpper)
		priceUpper, errUpper := b.conv.PriceOfTick(tickLower)
		if errLower != nil || errUpper != nil {
			// Out-of-domain ticks show up in bulk historical data; drop the
			// position rather than failing the run.
			b.excl.InvariantViolation++
			drop = append(drop, tokenID)
			continue
		}

		width, ok := rangeWidthBps(priceLower, priceUpper)
		if !ok {
			b.excl.InvariantViolation++
			drop = append(drop, tokenID)
			continue
		}
		tp.pos.RangeWidthBps = width
	}

	b.remove(drop)
}

// ExtractAmounts sums the asset transfers of the opening and closing
// transactions and reads the principal withdrawal amounts from the closing
// liquidity-decrease event.
func (b *Builder) ExtractAmounts() {
	var drop []uint64

	for tokenID, tp := range b.tracked {
		openBase, openQuote, ok := b.sumTransfers(tp.logs.Opening, transferFromAccount)
		if !ok {
			b.excl.Incomplete++
			drop = append(drop, tokenID)
			continue
		}
		withdrawnBase, withdrawnQuote, ok := b.sumTransfers(tp.logs.Closing, transferToAccount)
		if !ok {
			b.excl.Incomplete++
			drop = append(drop, tokenID)
			continue
		}
		amount0, amount1, ok := b.decreaseAmounts(tokenID, tp.logs.Closing)
		if !ok {
			b.excl.Incomplete++
			drop = append(drop, tokenID)
			continue
		}

		tp.pos.OpeningLiquidityBase = openBase
		tp.pos.OpeningLiquidityQuote = openQuote
		tp.pos.WithdrawnBase = withdrawnBase
		tp.pos.WithdrawnQuote = withdrawnQuote
		tp.pos.ClosingLiquidityQuote = amount0
		tp.pos.ClosingLiquidityBase = amount1
	}

	b.remove(drop)
}

// Positions returns the surviving position map.
func (b *Builder) Positions() map[uint64]*domain.Position {
	out := make(map[uint64]*domain.Position, len(b.tracked))
	for tokenID, tp := range b.tracked {
		out[tokenID] = tp.pos
	}
	return out
}

// Exclusions returns the counts accumulated so far.
func (b *Builder) Exclusions() domain.Exclusions {
	return b.excl
}

func (b *Builder) remove(ids []uint64) {
	for _, id := range ids {
		delete(b.tracked, id)
	}
}

// decreaseAmounts finds the first liquidity-decrease event carrying tokenID
// and decodes its principal amounts (amount0 = quote, amount1 = base).
func (b *Builder) decreaseAmounts(tokenID uint64, logs []*domain.EventLog) (amount0, amount1 *big.Int, ok bool) {
	for _, l := range logs {
		if l.Address != b.cfg.PositionManager || len(l.Topics) < 2 {
			continue
		}
		if l.Topics[0] != evmlog.TopicDecreaseLiquidity || evmlog.U64FromTopic(l.Topics[1]) != tokenID {
			continue
		}
		// data: liquidity, amount0, amount1
		a0, err0 := evmlog.U256(l.Data, 1)
		a1, err1 := evmlog.U256(l.Data, 2)
		if err0 != nil || err1 != nil {
			return nil, nil, false
		}
		return a0, a1, true
	}
	return nil, nil, false
}

// mintTicks finds the opening transaction's pool mint event and decodes its
// tick bounds from the indexed topics.
func (b *Builder) mintTicks(logs []*domain.EventLog) (tickLower, tickUpper int, ok bool) {
	for _, l := range logs {
		if l.Address != b.cfg.Pool || len(l.Topics) < 4 {
			continue
		}
		if l.Topics[0] != evmlog.TopicPoolMint {
			continue
		}
		return evmlog.Int24FromTopic(l.Topics[2]), evmlog.Int24FromTopic(l.Topics[3]), true
	}
	return 0, 0, false
}

type transferSide int

const (
	transferFromAccount transferSide = iota
	transferToAccount
)

// sumTransfers totals the base- and quote-asset transfer amounts in a
// transaction's logs, filtered to the configured account side.
func (b *Builder) sumTransfers(logs []*domain.EventLog, side transferSide) (base, quote *big.Int, ok bool) {
	base = new(big.Int)
	quote = new(big.Int)

	for _, l := range logs {
		if len(l.Topics) < 3 || l.Topics[0] != evmlog.TopicERC20Transfer {
			continue
		}
		if l.Address != b.cfg.BaseToken && l.Address != b.cfg.QuoteToken {
			continue
		}

		var counterparty common.Address
		if side == transferFromAccount {
			counterparty = evmlog.AddressFromTopic(l.Topics[1])
		} else {
			counterparty = evmlog.AddressFromTopic(l.Topics[2])
		}
		if counterparty != b.cfg.Account {
			continue
		}

		value, err := evmlog.U256(l.Data, 0)
		if err != nil {
			return nil, nil, false
		}
		if l.Address == b.cfg.BaseToken {
			base.Add(base, value)
		} else {
			quote.Add(quote, value)
		}
	}
	return base, quote, true
}

// rangeWidthBps computes (priceUpper - priceLower) * 10000 / midpoint with
// truncating division, midpoint = priceLower + (priceUpper-priceLower)/2.
func rangeWidthBps(priceLower, priceUpper *big.Int) (int64, bool) {
	span := new(big.Int).Sub(priceUpper, priceLower)
	if span.Sign() < 0 {
		return 0, false
	}
	midpoint := new(big.Int).Add(priceLower, new(big.Int).Rsh(span, 1))
	if midpoint.Sign() == 0 {
		return 0, false
	}
	width := span.Mul(span, big.NewInt(10000))
	width.Div(width, midpoint)
	return width.Int64(), true
}
