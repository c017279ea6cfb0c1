package ingestion

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/eth"
)

// GasCollector resolves transaction gas costs from receipts.
type GasCollector struct {
	rpc    eth.RPCClient
	logger *log.Logger
}

// NewGasCollector creates a gas cost collector.
func NewGasCollector(rpc eth.RPCClient, logger *log.Logger) *GasCollector {
	if logger == nil {
		logger = log.Default()
	}
	return &GasCollector{rpc: rpc, logger: logger}
}

// Collect fetches receipts for the given transactions and returns each one's
// gas cost in wei. Transactions without a receipt are skipped with a warning;
// the pipeline treats missing gas as zero rather than failing the run.
func (g *GasCollector) Collect(ctx context.Context, hashes []common.Hash) (map[common.Hash]*big.Int, error) {
	costs := make(map[common.Hash]*big.Int, len(hashes))

	for _, h := range hashes {
		if _, ok := costs[h]; ok {
			continue
		}
		receipt, err := g.rpc.TransactionReceipt(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("receipt for %s: %w", h.Hex(), err)
		}
		if receipt == nil {
			g.logger.Printf("[gas] no receipt for %s, treating gas as unknown", h.Hex())
			continue
		}
		costs[h] = receipt.GasCost()
	}

	return costs, nil
}

// ConvertToQuote converts wei-denominated gas costs to quote smallest units
// using a scaled quote-per-base price. The division truncates, matching the
// rounding convention of the accounting core.
func ConvertToQuote(weiCosts map[common.Hash]*big.Int, price *big.Int) map[common.Hash]*big.Int {
	out := make(map[common.Hash]*big.Int, len(weiCosts))
	for h, wei := range weiCosts {
		v := new(big.Int).Mul(wei, price)
		out[h] = v.Quo(v, domain.PriceScale)
	}
	return out
}
