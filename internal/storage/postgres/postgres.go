// Package postgres implements the durable stores on PostgreSQL. Event logs
// and finalized position reports live here; the high-volume price history
// lives in ClickHouse.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool so the stores and the migration runner share one
// handle.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a connection pool for the given DSN and verifies it with a
// ping before handing it out.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

const pgErrUniqueViolation = "23505" // unique_violation

// isDuplicateKeyError reports whether err is a unique violation. Both tables
// use natural primary keys, (tx_hash, log_index) and token_id, so a
// re-ingested window or a rerun of the reconstruction lands here.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// isNotFoundError reports whether err is pgx's empty query result.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
