package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
)

// EventLogStore provides access to raw event log storage.
type EventLogStore interface {
	// Insert adds a single log. Returns ErrDuplicateKey if (tx_hash, log_index) exists.
	Insert(ctx context.Context, l *domain.EventLog) error

	// InsertBulk adds multiple logs atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, logs []*domain.EventLog) error

	// GetByTxHash retrieves all logs of one transaction, ordered by log index ASC.
	GetByTxHash(ctx context.Context, txHash common.Hash) ([]*domain.EventLog, error)

	// GetByTimeRange retrieves logs within [start, end] (inclusive), ordered by
	// timestamp, then transaction hash, then log index.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.EventLog, error)

	// GetAll retrieves every stored log in the GetByTimeRange ordering.
	GetAll(ctx context.Context) ([]*domain.EventLog, error)
}

// PriceSampleStore provides access to pool price history storage.
type PriceSampleStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
	InsertBulk(ctx context.Context, samples []domain.PriceSample) error

	// GetByTimeRange retrieves samples within [start, end] (inclusive), ordered
	// by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]domain.PriceSample, error)

	// GetAll retrieves all samples ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]domain.PriceSample, error)
}

// PositionReportStore provides access to finalized position report storage.
type PositionReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if token_id exists.
	Insert(ctx context.Context, r *domain.PositionReport) error

	// InsertBulk adds multiple reports atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, reports []*domain.PositionReport) error

	// GetByTokenID retrieves a report by token id. Returns ErrNotFound if not exists.
	GetByTokenID(ctx context.Context, tokenID uint64) (*domain.PositionReport, error)

	// GetAll retrieves all reports ordered by token id ASC.
	GetAll(ctx context.Context) ([]*domain.PositionReport, error)
}
