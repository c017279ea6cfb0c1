// Package priceindex holds the time-ordered record of observed pool price,
// queried with last-known-value-at-or-before semantics. The pool price only
// changes at discrete swap events, so treating it as constant between
// samples is exact, not an approximation.
package priceindex

import (
	"errors"
	"math/big"
	"sort"

	"uniswap-lp-lab/internal/domain"
)

// Errors returned by the index.
var (
	// ErrNoPriceData means the query timestamp precedes the first sample.
	// This indicates the price history itself is insufficient, not a
	// property of any one position, so callers treat it as a hard failure.
	ErrNoPriceData = errors.New("no price data available at or before timestamp")

	// ErrInvalidOrdering means the samples were not supplied in
	// non-decreasing timestamp order.
	ErrInvalidOrdering = errors.New("price samples are not in timestamp order")
)

// Index is a read-only timestamp->price store. Built once per run from the
// complete swap history, then safe for concurrent reads.
type Index struct {
	timestamps []int64
	prices     []*big.Int
}

// Load constructs an index from timestamp-ordered samples. O(n) build,
// O(log n) queries.
func Load(samples []domain.PriceSample) (*Index, error) {
	idx := &Index{
		timestamps: make([]int64, 0, len(samples)),
		prices:     make([]*big.Int, 0, len(samples)),
	}

	var last int64
	for i, s := range samples {
		if i > 0 && s.Timestamp < last {
			return nil, ErrInvalidOrdering
		}
		last = s.Timestamp
		idx.timestamps = append(idx.timestamps, s.Timestamp)
		idx.prices = append(idx.prices, new(big.Int).Set(s.Price))
	}
	return idx, nil
}

// PriceAt returns the price of the latest sample with timestamp <= t.
// Returns ErrNoPriceData when no sample precedes t.
func (ix *Index) PriceAt(t int64) (*big.Int, error) {
	// First sample strictly after t; the answer is the one before it.
	i := sort.Search(len(ix.timestamps), func(j int) bool {
		return ix.timestamps[j] > t
	})
	if i == 0 {
		return nil, ErrNoPriceData
	}
	return new(big.Int).Set(ix.prices[i-1]), nil
}

// Len returns the number of loaded samples.
func (ix *Index) Len() int {
	return len(ix.timestamps)
}

// Span returns the first and last sample timestamps. Zero values when empty.
func (ix *Index) Span() (first, last int64) {
	if len(ix.timestamps) == 0 {
		return 0, 0
	}
	return ix.timestamps[0], ix.timestamps[len(ix.timestamps)-1]
}
