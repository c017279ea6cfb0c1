package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// PositionReportStore is an in-memory implementation of storage.PositionReportStore.
type PositionReportStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.PositionReport // keyed by token id
}

// NewPositionReportStore creates a new in-memory position report store.
func NewPositionReportStore() *PositionReportStore {
	return &PositionReportStore{
		data: make(map[uint64]*domain.PositionReport),
	}
}

// Compile-time interface check.
var _ storage.PositionReportStore = (*PositionReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if token_id exists.
func (s *PositionReportStore) Insert(_ context.Context, r *domain.PositionReport) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TokenID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.TokenID] = copyReport(r)
	return nil
}

// InsertBulk adds multiple reports atomically. Fails entire batch on any duplicate.
func (s *PositionReportStore) InsertBulk(_ context.Context, reports []*domain.PositionReport) error {
	if len(reports) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[uint64]struct{}, len(reports))
	for _, r := range reports {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.TokenID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TokenID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TokenID] = struct{}{}
	}

	for _, r := range reports {
		s.data[r.TokenID] = copyReport(r)
	}
	return nil
}

// GetByTokenID retrieves a report by token id. Returns ErrNotFound if not exists.
func (s *PositionReportStore) GetByTokenID(_ context.Context, tokenID uint64) (*domain.PositionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[tokenID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyReport(r), nil
}

// GetAll retrieves all reports ordered by token id ASC.
func (s *PositionReportStore) GetAll(_ context.Context) ([]*domain.PositionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PositionReport, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyReport(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})
	return result, nil
}

func copyReport(r *domain.PositionReport) *domain.PositionReport {
	out := *r
	out.OpeningLiquidityInQuote = copyBig(r.OpeningLiquidityInQuote)
	out.ClosingLiquidityInQuote = copyBig(r.ClosingLiquidityInQuote)
	out.FeesTotalInQuote = copyBig(r.FeesTotalInQuote)
	out.ImpermanentLoss = copyBig(r.ImpermanentLoss)
	out.NetReturn = copyBig(r.NetReturn)
	out.GasPaid = copyBig(r.GasPaid)
	out.PriceAtOpening = copyBig(r.PriceAtOpening)
	out.PriceAtClosing = copyBig(r.PriceAtClosing)
	return &out
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
