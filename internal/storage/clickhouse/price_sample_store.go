package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
// Prices are stored as decimal strings; the scaled values exceed UInt64 range
// and must round-trip without loss.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
// ClickHouse does not enforce uniqueness at insert time, so duplicates are
// detected with explicit checks before the batch is sent.
func (s *PriceSampleStore) InsertBulk(ctx context.Context, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(samples))
	for _, p := range samples {
		if p.Price == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.Timestamp] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, p := range samples {
		exists, err := s.exists(ctx, p.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_samples (timestamp, price)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		if err := batch.Append(uint64(p.Timestamp), p.Price.String()); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves samples within [start, end] (inclusive), ordered
// by timestamp ASC.
func (s *PriceSampleStore) GetByTimeRange(ctx context.Context, start, end int64) ([]domain.PriceSample, error) {
	query := `
		SELECT timestamp, price
		FROM price_samples FINAL
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query samples by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceSamples(rows)
}

// GetAll retrieves all samples ordered by timestamp ASC.
func (s *PriceSampleStore) GetAll(ctx context.Context) ([]domain.PriceSample, error) {
	query := `
		SELECT timestamp, price
		FROM price_samples FINAL
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all samples: %w", err)
	}
	defer rows.Close()

	return scanPriceSamples(rows)
}

// exists checks if a sample with the given timestamp exists.
func (s *PriceSampleStore) exists(ctx context.Context, timestamp int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM price_samples WHERE timestamp = ?`,
		uint64(timestamp)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanPriceSamples scans multiple rows.
func scanPriceSamples(rows chRows) ([]domain.PriceSample, error) {
	var samples []domain.PriceSample

	for rows.Next() {
		var (
			timestamp uint64
			price     string
		)
		if err := rows.Scan(&timestamp, &price); err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}

		v, ok := new(big.Int).SetString(price, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stored price %q", price)
		}
		samples = append(samples, domain.PriceSample{
			Timestamp: int64(timestamp),
			Price:     v,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}

	return samples, nil
}
