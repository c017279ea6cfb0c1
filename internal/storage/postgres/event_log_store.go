package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// EventLogStore implements storage.EventLogStore using PostgreSQL.
type EventLogStore struct {
	pool *Pool
}

// NewEventLogStore creates a new EventLogStore.
func NewEventLogStore(pool *Pool) *EventLogStore {
	return &EventLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventLogStore = (*EventLogStore)(nil)

// Insert adds a single log. Returns ErrDuplicateKey if (tx_hash, log_index) exists.
func (s *EventLogStore) Insert(ctx context.Context, l *domain.EventLog) error {
	if l == nil || len(l.Topics) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO event_logs (
			tx_hash, log_index, address, topics, data, block_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		l.TxHash.Hex(),
		l.LogIndex,
		l.Address.Hex(),
		topicsToStrings(l.Topics),
		l.Data,
		l.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// InsertBulk adds multiple logs atomically. Fails entire batch on any duplicate.
func (s *EventLogStore) InsertBulk(ctx context.Context, logs []*domain.EventLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO event_logs (
			tx_hash, log_index, address, topics, data, block_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			l.TxHash.Hex(),
			l.LogIndex,
			l.Address.Hex(),
			topicsToStrings(l.Topics),
			l.Data,
			l.Timestamp,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event log in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTxHash retrieves all logs of one transaction, ordered by log index ASC.
func (s *EventLogStore) GetByTxHash(ctx context.Context, txHash common.Hash) ([]*domain.EventLog, error) {
	query := `
		SELECT tx_hash, log_index, address, topics, data, block_timestamp
		FROM event_logs
		WHERE tx_hash = $1
		ORDER BY log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, txHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("get event logs by tx hash: %w", err)
	}
	defer rows.Close()

	return scanEventLogs(rows)
}

// GetByTimeRange retrieves logs within [start, end] (inclusive), ordered by
// timestamp, then transaction hash, then log index.
func (s *EventLogStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EventLog, error) {
	query := `
		SELECT tx_hash, log_index, address, topics, data, block_timestamp
		FROM event_logs
		WHERE block_timestamp >= $1 AND block_timestamp <= $2
		ORDER BY block_timestamp ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get event logs by time range: %w", err)
	}
	defer rows.Close()

	return scanEventLogs(rows)
}

// GetAll retrieves every stored log in the GetByTimeRange ordering.
func (s *EventLogStore) GetAll(ctx context.Context) ([]*domain.EventLog, error) {
	query := `
		SELECT tx_hash, log_index, address, topics, data, block_timestamp
		FROM event_logs
		ORDER BY block_timestamp ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all event logs: %w", err)
	}
	defer rows.Close()

	return scanEventLogs(rows)
}

func topicsToStrings(topics []common.Hash) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Hex()
	}
	return out
}

// scanEventLogs scans multiple rows.
func scanEventLogs(rows pgx.Rows) ([]*domain.EventLog, error) {
	var logs []*domain.EventLog

	for rows.Next() {
		var (
			l       domain.EventLog
			txHash  string
			address string
			topics  []string
		)

		err := rows.Scan(&txHash, &l.LogIndex, &address, &topics, &l.Data, &l.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan event log row: %w", err)
		}

		l.TxHash = common.HexToHash(txHash)
		l.Address = common.HexToAddress(address)
		l.Topics = make([]common.Hash, len(topics))
		for i, t := range topics {
			l.Topics[i] = common.HexToHash(t)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event log rows: %w", err)
	}

	return logs, nil
}
