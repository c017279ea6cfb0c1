package position

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/evmlog"
	"uniswap-lp-lab/internal/logindex"
	"uniswap-lp-lab/internal/tickmath"
)

var testCfg = PoolConfig{
	Pool:            common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"),
	PositionManager: common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88"),
	QuoteToken:      common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	BaseToken:       common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	Account:         common.HexToAddress("0x000000000000000000000000000000000000beef"),
}

func packWords(words ...*big.Int) []byte {
	out := make([]byte, 0, len(words)*evmlog.WordSize)
	for _, w := range words {
		b := make([]byte, evmlog.WordSize)
		w.FillBytes(b)
		out = append(out, b...)
	}
	return out
}

func uintTopic(v uint64) common.Hash {
	var h common.Hash
	new(big.Int).SetUint64(v).FillBytes(h[:])
	return h
}

func intTopic(v int64) common.Hash {
	enc := big.NewInt(v)
	if enc.Sign() < 0 {
		enc.Add(enc, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	var h common.Hash
	enc.FillBytes(h[:])
	return h
}

func addrTopic(a common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], a[:])
	return h
}

func decreaseLog(tx byte, logIndex int, ts int64, tokenID uint64, amount0, amount1 *big.Int) *domain.EventLog {
	return &domain.EventLog{
		Address:   testCfg.PositionManager,
		Topics:    []common.Hash{evmlog.TopicDecreaseLiquidity, uintTopic(tokenID)},
		Data:      packWords(big.NewInt(1), amount0, amount1),
		Timestamp: ts,
		TxHash:    common.Hash{tx},
		LogIndex:  logIndex,
	}
}

func increaseLog(tx byte, logIndex int, ts int64, tokenID uint64) *domain.EventLog {
	return &domain.EventLog{
		Address:   testCfg.PositionManager,
		Topics:    []common.Hash{evmlog.TopicIncreaseLiquidity, uintTopic(tokenID)},
		Data:      packWords(big.NewInt(1), big.NewInt(0), big.NewInt(0)),
		Timestamp: ts,
		TxHash:    common.Hash{tx},
		LogIndex:  logIndex,
	}
}

func mintLog(tx byte, logIndex int, ts int64, tickLower, tickUpper int64) *domain.EventLog {
	return &domain.EventLog{
		Address:   testCfg.Pool,
		Topics:    []common.Hash{evmlog.TopicPoolMint, addrTopic(testCfg.PositionManager), intTopic(tickLower), intTopic(tickUpper)},
		Data:      packWords(big.NewInt(1), big.NewInt(0), big.NewInt(0)),
		Timestamp: ts,
		TxHash:    common.Hash{tx},
		LogIndex:  logIndex,
	}
}

func transferLog(tx byte, logIndex int, ts int64, token common.Address, from, to common.Address, value *big.Int) *domain.EventLog {
	return &domain.EventLog{
		Address:   token,
		Topics:    []common.Hash{evmlog.TopicERC20Transfer, addrTopic(from), addrTopic(to)},
		Data:      packWords(value),
		Timestamp: ts,
		TxHash:    common.Hash{tx},
		LogIndex:  logIndex,
	}
}

// lifecycle assembles a complete open+close log pair for one position.
func lifecycle(tokenID uint64, tickLower, tickUpper int64, amount0, amount1 *big.Int) *logindex.PositionLogs {
	opening := []*domain.EventLog{
		mintLog(1, 0, 1000, tickLower, tickUpper),
		transferLog(1, 1, 1000, testCfg.QuoteToken, testCfg.Account, testCfg.Pool, big.NewInt(5_000_000)),
		transferLog(1, 2, 1000, testCfg.BaseToken, testCfg.Account, testCfg.Pool, big.NewInt(2_000)),
		increaseLog(1, 3, 1000, tokenID),
	}
	closing := []*domain.EventLog{
		decreaseLog(2, 0, 2000, tokenID, amount0, amount1),
		transferLog(2, 1, 2000, testCfg.QuoteToken, testCfg.Pool, testCfg.Account, big.NewInt(3_000_000)),
		transferLog(2, 2, 2000, testCfg.BaseToken, testCfg.Pool, testCfg.Account, big.NewInt(2_500)),
	}
	return &logindex.PositionLogs{Opening: opening, Closing: closing}
}

func newTestBuilder() *Builder {
	return NewBuilder(testCfg, tickmath.NewConverter())
}

func TestSeed_IncompleteExcluded(t *testing.T) {
	b := newTestBuilder()

	index := map[uint64]*logindex.PositionLogs{
		1: lifecycle(1, -100, 100, big.NewInt(0), big.NewInt(10)),
		2: {Closing: lifecycle(2, -100, 100, big.NewInt(0), big.NewInt(10)).Closing}, // close only
		3: {Opening: lifecycle(3, -100, 100, big.NewInt(0), big.NewInt(10)).Opening}, // open only
	}

	b.Seed(index)

	if len(b.Positions()) != 1 {
		t.Errorf("expected 1 seeded position, got %d", len(b.Positions()))
	}
	if b.Exclusions().Incomplete != 2 {
		t.Errorf("expected 2 incomplete exclusions, got %d", b.Exclusions().Incomplete)
	}
}

func TestClassifyDirections(t *testing.T) {
	cases := []struct {
		name    string
		amount0 *big.Int
		amount1 *big.Int
		want    domain.Direction
	}{
		{"amount0 zero means traded down", big.NewInt(0), big.NewInt(10), domain.DirectionTradedDown},
		{"amount1 zero means traded up", big.NewInt(10), big.NewInt(0), domain.DirectionTradedUp},
		{"both nonzero means sideways", big.NewInt(10), big.NewInt(10), domain.DirectionSideways},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBuilder()
			b.Seed(map[uint64]*logindex.PositionLogs{7: lifecycle(7, -100, 100, tc.amount0, tc.amount1)})
			b.ClassifyDirections()

			pos := b.Positions()[7]
			if pos == nil {
				t.Fatal("position dropped unexpectedly")
			}
			if pos.Direction != tc.want {
				t.Errorf("expected %s, got %s", tc.want, pos.Direction)
			}
		})
	}
}

func TestDeriveRangeWidths_SymmetricRange(t *testing.T) {
	b := newTestBuilder()
	b.Seed(map[uint64]*logindex.PositionLogs{7: lifecycle(7, -100, 100, big.NewInt(0), big.NewInt(10))})
	b.ClassifyDirections()
	b.DeriveRangeWidths()

	pos := b.Positions()[7]
	if pos == nil {
		t.Fatal("position dropped unexpectedly")
	}
	// +-100 ticks is ~1% either side of the midpoint.
	if pos.RangeWidthBps < 195 || pos.RangeWidthBps > 205 {
		t.Errorf("expected width near 200 bps, got %d", pos.RangeWidthBps)
	}
}

func TestDeriveRangeWidths_TickOutOfDomain(t *testing.T) {
	b := newTestBuilder()
	b.Seed(map[uint64]*logindex.PositionLogs{7: lifecycle(7, -900000, 100, big.NewInt(0), big.NewInt(10))})
	b.ClassifyDirections()
	b.DeriveRangeWidths()

	if len(b.Positions()) != 0 {
		t.Error("out-of-domain tick should drop the position")
	}
	if b.Exclusions().InvariantViolation != 1 {
		t.Errorf("expected 1 invariant violation, got %d", b.Exclusions().InvariantViolation)
	}
}

func TestDeriveRangeWidths_MissingMintEvent(t *testing.T) {
	b := newTestBuilder()
	lc := lifecycle(7, -100, 100, big.NewInt(0), big.NewInt(10))
	lc.Opening = lc.Opening[1:] // strip the mint event
	b.Seed(map[uint64]*logindex.PositionLogs{7: lc})
	b.ClassifyDirections()
	b.DeriveRangeWidths()

	if len(b.Positions()) != 0 {
		t.Error("missing mint event should drop the position")
	}
	if b.Exclusions().Incomplete != 1 {
		t.Errorf("expected 1 incomplete exclusion, got %d", b.Exclusions().Incomplete)
	}
}

func TestExtractAmounts(t *testing.T) {
	b := newTestBuilder()
	b.Seed(map[uint64]*logindex.PositionLogs{7: lifecycle(7, -100, 100, big.NewInt(1_500_000), big.NewInt(900))})
	b.ClassifyDirections()
	b.DeriveRangeWidths()
	b.ExtractAmounts()

	pos := b.Positions()[7]
	if pos == nil {
		t.Fatal("position dropped unexpectedly")
	}

	checks := []struct {
		name string
		got  *big.Int
		want int64
	}{
		{"opening quote", pos.OpeningLiquidityQuote, 5_000_000},
		{"opening base", pos.OpeningLiquidityBase, 2_000},
		{"withdrawn quote", pos.WithdrawnQuote, 3_000_000},
		{"withdrawn base", pos.WithdrawnBase, 2_500},
		{"closing quote", pos.ClosingLiquidityQuote, 1_500_000},
		{"closing base", pos.ClosingLiquidityBase, 900},
	}
	for _, c := range checks {
		if c.got == nil || c.got.Int64() != c.want {
			t.Errorf("%s: expected %d, got %s", c.name, c.want, c.got)
		}
	}
}

func TestExtractAmounts_IgnoresForeignTransfers(t *testing.T) {
	b := newTestBuilder()
	lc := lifecycle(7, -100, 100, big.NewInt(0), big.NewInt(10))
	stranger := common.HexToAddress("0x000000000000000000000000000000000000dead")
	lc.Opening = append(lc.Opening,
		transferLog(1, 9, 1000, testCfg.QuoteToken, stranger, testCfg.Pool, big.NewInt(999_999_999)))
	b.Seed(map[uint64]*logindex.PositionLogs{7: lc})
	b.ClassifyDirections()
	b.DeriveRangeWidths()
	b.ExtractAmounts()

	pos := b.Positions()[7]
	if pos.OpeningLiquidityQuote.Int64() != 5_000_000 {
		t.Errorf("foreign transfer leaked into opening quote: %s", pos.OpeningLiquidityQuote)
	}
}
