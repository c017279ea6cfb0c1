package pipeline

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/evmlog"
	"uniswap-lp-lab/internal/position"
	"uniswap-lp-lab/internal/storage"
)

// Fixture pool: a USDC/WETH-style pair where the quote asset has 6 decimals
// and the base asset 18. Token ids and amounts are synthetic but shaped like
// mainnet data.
var fixturePool = position.PoolConfig{
	Pool:            common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"),
	PositionManager: common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88"),
	QuoteToken:      common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	BaseToken:       common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	Account:         common.HexToAddress("0x000000000000000000000000000000000000beef"),
}

// FixturePool returns the pool configuration matching the fixture logs.
func FixturePool() position.PoolConfig {
	return fixturePool
}

// LoadFixtures populates stores with synthetic reconstruction data: two
// complete lifecycles (one closed below range, one above) and one position
// that never closes inside the window.
func LoadFixtures(ctx context.Context, logStore storage.EventLogStore, sampleStore storage.PriceSampleStore) error {
	if err := logStore.InsertBulk(ctx, FixtureLogs()); err != nil {
		return err
	}
	return sampleStore.InsertBulk(ctx, FixtureSamples())
}

// FixtureSamples returns the fixture pool's price history: 3000 then 2500
// quote units per base unit, at 1e18 scale for a 6/18-decimal pair.
func FixtureSamples() []domain.PriceSample {
	return []domain.PriceSample{
		{Timestamp: 1699999000, Price: fixturePrice(3000)},
		{Timestamp: 1700080000, Price: fixturePrice(2500)},
	}
}

// FixtureLogs returns the raw event logs of the fixture lifecycles.
func FixtureLogs() []*domain.EventLog {
	var logs []*domain.EventLog

	// Token 1001: closed below range (base leg fully converted to quote on
	// the way down, withdrawal is quote principal + fees on both legs).
	logs = append(logs, fixtureOpen(0xA1, 1700000000, 1001, -100, 100,
		big.NewInt(5_000_000_000), weiMilli(1000))...)
	logs = append(logs, fixtureClose(0xA2, 1700086400, 1001,
		big.NewInt(0), weiMilli(37),
		big.NewInt(534_970_000), weiMilli(248))...)

	// Token 1002: closed above range.
	logs = append(logs, fixtureOpen(0xB1, 1700010000, 1002, -200, 200,
		big.NewInt(5_000_000_000), weiMilli(1000))...)
	logs = append(logs, fixtureClose(0xB2, 1700090000, 1002,
		big.NewInt(329_520_000), big.NewInt(0),
		big.NewInt(500_000_000), weiMilli(37))...)

	// Token 1003: opened but never closed inside the window.
	logs = append(logs, fixtureOpen(0xC1, 1700020000, 1003, -50, 50,
		big.NewInt(1_000_000_000), weiMilli(400))...)

	return logs
}

// FixtureGasByTx returns per-transaction gas costs in quote smallest units.
func FixtureGasByTx() map[common.Hash]*big.Int {
	return map[common.Hash]*big.Int{
		{0xA1}: big.NewInt(12_000_000),
		{0xA2}: big.NewInt(9_000_000),
		{0xB1}: big.NewInt(11_000_000),
		{0xB2}: big.NewInt(8_000_000),
	}
}

func fixtureOpen(tx byte, ts int64, tokenID uint64, tickLower, tickUpper int64, quoteIn, baseIn *big.Int) []*domain.EventLog {
	txHash := common.Hash{tx}
	return []*domain.EventLog{
		{
			Address:   fixturePool.Pool,
			Topics:    []common.Hash{evmlog.TopicPoolMint, addressTopic(fixturePool.PositionManager), intTopic(tickLower), intTopic(tickUpper)},
			Data:      packWords(big.NewInt(1), big.NewInt(0), big.NewInt(0)),
			Timestamp: ts,
			TxHash:    txHash,
			LogIndex:  0,
		},
		fixtureTransfer(txHash, 1, ts, fixturePool.QuoteToken, fixturePool.Account, fixturePool.Pool, quoteIn),
		fixtureTransfer(txHash, 2, ts, fixturePool.BaseToken, fixturePool.Account, fixturePool.Pool, baseIn),
		{
			Address:   fixturePool.PositionManager,
			Topics:    []common.Hash{evmlog.TopicIncreaseLiquidity, uintTopic(tokenID)},
			Data:      packWords(big.NewInt(1), quoteIn, baseIn),
			Timestamp: ts,
			TxHash:    txHash,
			LogIndex:  3,
		},
	}
}

func fixtureClose(tx byte, ts int64, tokenID uint64, amount0, amount1, quoteOut, baseOut *big.Int) []*domain.EventLog {
	txHash := common.Hash{tx}
	return []*domain.EventLog{
		{
			Address:   fixturePool.PositionManager,
			Topics:    []common.Hash{evmlog.TopicDecreaseLiquidity, uintTopic(tokenID)},
			Data:      packWords(big.NewInt(1), amount0, amount1),
			Timestamp: ts,
			TxHash:    txHash,
			LogIndex:  0,
		},
		fixtureTransfer(txHash, 1, ts, fixturePool.QuoteToken, fixturePool.Pool, fixturePool.Account, quoteOut),
		fixtureTransfer(txHash, 2, ts, fixturePool.BaseToken, fixturePool.Pool, fixturePool.Account, baseOut),
	}
}

func fixtureTransfer(txHash common.Hash, logIndex int, ts int64, token, from, to common.Address, value *big.Int) *domain.EventLog {
	return &domain.EventLog{
		Address:   token,
		Topics:    []common.Hash{evmlog.TopicERC20Transfer, addressTopic(from), addressTopic(to)},
		Data:      packWords(value),
		Timestamp: ts,
		TxHash:    txHash,
		LogIndex:  logIndex,
	}
}

// fixturePrice converts whole quote units per base unit to the 1e18-scaled
// smallest-unit price for a 6/18-decimal pair.
func fixturePrice(quoteUnits int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(quoteUnits), big.NewInt(1_000_000))
}

func weiMilli(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1_000_000_000_000_000))
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

func addressTopic(a common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], a[:])
	return h
}
