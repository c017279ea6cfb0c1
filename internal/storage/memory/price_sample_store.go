package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// PriceSampleStore is an in-memory implementation of storage.PriceSampleStore.
type PriceSampleStore struct {
	mu   sync.RWMutex
	data map[int64]*big.Int // keyed by timestamp
}

// NewPriceSampleStore creates a new in-memory price sample store.
func NewPriceSampleStore() *PriceSampleStore {
	return &PriceSampleStore{
		data: make(map[int64]*big.Int),
	}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
func (s *PriceSampleStore) InsertBulk(_ context.Context, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(samples))
	for _, sample := range samples {
		if sample.Price == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[sample.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[sample.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[sample.Timestamp] = struct{}{}
	}

	for _, sample := range samples {
		s.data[sample.Timestamp] = new(big.Int).Set(sample.Price)
	}
	return nil
}

// GetByTimeRange retrieves samples within [start, end] (inclusive), ordered
// by timestamp ASC.
func (s *PriceSampleStore) GetByTimeRange(_ context.Context, start, end int64) ([]domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceSample
	for ts, price := range s.data {
		if ts >= start && ts <= end {
			result = append(result, domain.PriceSample{Timestamp: ts, Price: new(big.Int).Set(price)})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// GetAll retrieves all samples ordered by timestamp ASC.
func (s *PriceSampleStore) GetAll(_ context.Context) ([]domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PriceSample, 0, len(s.data))
	for ts, price := range s.data {
		result = append(result, domain.PriceSample{Timestamp: ts, Price: new(big.Int).Set(price)})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}
