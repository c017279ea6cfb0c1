package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// EventLogStore is an in-memory implementation of storage.EventLogStore.
type EventLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EventLog // keyed by (tx_hash, log_index)
}

// NewEventLogStore creates a new in-memory event log store.
func NewEventLogStore() *EventLogStore {
	return &EventLogStore{
		data: make(map[string]*domain.EventLog),
	}
}

// Compile-time interface check.
var _ storage.EventLogStore = (*EventLogStore)(nil)

func logKey(txHash common.Hash, logIndex int) string {
	return fmt.Sprintf("%s|%d", txHash.Hex(), logIndex)
}

// Insert adds a single log. Returns ErrDuplicateKey if (tx_hash, log_index) exists.
func (s *EventLogStore) Insert(_ context.Context, l *domain.EventLog) error {
	if l == nil || len(l.Topics) == 0 {
		return storage.ErrInvalidInput
	}

	key := logKey(l.TxHash, l.LogIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = copyLog(l)
	return nil
}

// InsertBulk adds multiple logs atomically. Fails entire batch on any duplicate.
func (s *EventLogStore) InsertBulk(_ context.Context, logs []*domain.EventLog) error {
	if len(logs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			return storage.ErrInvalidInput
		}
		key := logKey(l.TxHash, l.LogIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, l := range logs {
		s.data[logKey(l.TxHash, l.LogIndex)] = copyLog(l)
	}
	return nil
}

// GetByTxHash retrieves all logs of one transaction, ordered by log index ASC.
func (s *EventLogStore) GetByTxHash(_ context.Context, txHash common.Hash) ([]*domain.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventLog
	for _, l := range s.data {
		if l.TxHash == txHash {
			result = append(result, copyLog(l))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LogIndex < result[j].LogIndex
	})
	return result, nil
}

// GetByTimeRange retrieves logs within [start, end] (inclusive).
func (s *EventLogStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventLog
	for _, l := range s.data {
		if l.Timestamp >= start && l.Timestamp <= end {
			result = append(result, copyLog(l))
		}
	}
	sortLogs(result)
	return result, nil
}

// GetAll retrieves every stored log.
func (s *EventLogStore) GetAll(_ context.Context) ([]*domain.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EventLog, 0, len(s.data))
	for _, l := range s.data {
		result = append(result, copyLog(l))
	}
	sortLogs(result)
	return result, nil
}

func sortLogs(logs []*domain.EventLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Timestamp != logs[j].Timestamp {
			return logs[i].Timestamp < logs[j].Timestamp
		}
		if logs[i].TxHash != logs[j].TxHash {
			return logs[i].TxHash.Hex() < logs[j].TxHash.Hex()
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}

func copyLog(l *domain.EventLog) *domain.EventLog {
	out := *l
	out.Topics = append([]common.Hash(nil), l.Topics...)
	out.Data = append([]byte(nil), l.Data...)
	return &out
}
