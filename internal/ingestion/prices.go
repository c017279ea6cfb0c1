package ingestion

import (
	"fmt"
	"sort"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/evmlog"
	"uniswap-lp-lab/internal/position"
)

// DerivePriceSamples builds the pool price history from swap events. Each
// swap log carries the post-trade tick in its fifth data word; the tick is
// converted to a scaled quote-per-base price. When several swaps share a
// block timestamp only the last one is kept, so the history has at most one
// sample per second and is strictly increasing in timestamp.
func DerivePriceSamples(logs []*domain.EventLog, cfg position.PoolConfig, conv position.TickConverter) ([]domain.PriceSample, error) {
	samples := make([]domain.PriceSample, 0)

	for _, l := range logs {
		if l.Address != cfg.Pool || !evmlog.IsEvent(l.Topics, evmlog.TopicPoolSwap) {
			continue
		}

		tick, err := evmlog.I256(l.Data, 4)
		if err != nil {
			return nil, fmt.Errorf("swap log %s[%d]: %w", l.TxHash.Hex(), l.LogIndex, err)
		}

		price, err := conv.PriceOfTick(int(tick.Int64()))
		if err != nil {
			return nil, fmt.Errorf("swap log %s[%d]: %w", l.TxHash.Hex(), l.LogIndex, err)
		}

		samples = append(samples, domain.PriceSample{
			Timestamp: l.Timestamp,
			Price:     price,
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})

	// Collapse equal timestamps, keeping the last swap of each second.
	deduped := samples[:0]
	for _, s := range samples {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp == s.Timestamp {
			deduped[n-1] = s
			continue
		}
		deduped = append(deduped, s)
	}

	return deduped, nil
}
