package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/storage"
)

// PositionReportStore implements storage.PositionReportStore using PostgreSQL.
// Big integers are stored as decimal text, so no precision is lost on either
// side and no driver numeric conversion participates.
type PositionReportStore struct {
	pool *Pool
}

// NewPositionReportStore creates a new PositionReportStore.
func NewPositionReportStore(pool *Pool) *PositionReportStore {
	return &PositionReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionReportStore = (*PositionReportStore)(nil)

const positionReportColumns = `
	token_id, direction, range_width_bps, opened_at, closed_at,
	time_open_seconds, opening_liquidity_in_quote, closing_liquidity_in_quote,
	fees_total_in_quote, gross_yield_bps, impermanent_loss, net_return,
	gas_paid, price_at_opening, price_at_closing
`

// Insert adds a new report. Returns ErrDuplicateKey if token_id exists.
func (s *PositionReportStore) Insert(ctx context.Context, r *domain.PositionReport) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO position_reports (` + positionReportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query, insertArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position report: %w", err)
	}
	return nil
}

// InsertBulk adds multiple reports atomically. Fails entire batch on any duplicate.
func (s *PositionReportStore) InsertBulk(ctx context.Context, reports []*domain.PositionReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO position_reports (` + positionReportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for _, r := range reports {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, query, insertArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert position report in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTokenID retrieves a report by token id. Returns ErrNotFound if not exists.
func (s *PositionReportStore) GetByTokenID(ctx context.Context, tokenID uint64) (*domain.PositionReport, error) {
	query := `
		SELECT ` + positionReportColumns + `
		FROM position_reports
		WHERE token_id = $1
	`

	row := s.pool.QueryRow(ctx, query, int64(tokenID))
	r, err := scanPositionReport(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position report by token id: %w", err)
	}
	return r, nil
}

// GetAll retrieves all reports ordered by token id ASC.
func (s *PositionReportStore) GetAll(ctx context.Context) ([]*domain.PositionReport, error) {
	query := `
		SELECT ` + positionReportColumns + `
		FROM position_reports
		ORDER BY token_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all position reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.PositionReport
	for rows.Next() {
		r, err := scanPositionReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position report rows: %w", err)
	}

	return reports, nil
}

func insertArgs(r *domain.PositionReport) []interface{} {
	return []interface{}{
		int64(r.TokenID),
		string(r.Direction),
		r.RangeWidthBps,
		r.OpenedAt,
		r.ClosedAt,
		r.TimeOpenSeconds,
		bigToText(r.OpeningLiquidityInQuote),
		bigToText(r.ClosingLiquidityInQuote),
		bigToText(r.FeesTotalInQuote),
		r.GrossYieldBps,
		bigToText(r.ImpermanentLoss),
		bigToText(r.NetReturn),
		bigToText(r.GasPaid),
		bigToText(r.PriceAtOpening),
		bigToText(r.PriceAtClosing),
	}
}

func scanPositionReport(row pgx.Row) (*domain.PositionReport, error) {
	var (
		r         domain.PositionReport
		tokenID   int64
		direction string
		opening   *string
		closing   *string
		fees      *string
		il        *string
		net       *string
		gas       *string
		priceOpen *string
		priceCls  *string
	)

	err := row.Scan(
		&tokenID, &direction, &r.RangeWidthBps, &r.OpenedAt, &r.ClosedAt,
		&r.TimeOpenSeconds, &opening, &closing, &fees, &r.GrossYieldBps,
		&il, &net, &gas, &priceOpen, &priceCls,
	)
	if err != nil {
		return nil, err
	}

	r.TokenID = uint64(tokenID)
	r.Direction = domain.Direction(direction)
	if r.OpeningLiquidityInQuote, err = textToBig(opening); err != nil {
		return nil, err
	}
	if r.ClosingLiquidityInQuote, err = textToBig(closing); err != nil {
		return nil, err
	}
	if r.FeesTotalInQuote, err = textToBig(fees); err != nil {
		return nil, err
	}
	if r.ImpermanentLoss, err = textToBig(il); err != nil {
		return nil, err
	}
	if r.NetReturn, err = textToBig(net); err != nil {
		return nil, err
	}
	if r.GasPaid, err = textToBig(gas); err != nil {
		return nil, err
	}
	if r.PriceAtOpening, err = textToBig(priceOpen); err != nil {
		return nil, err
	}
	if r.PriceAtClosing, err = textToBig(priceCls); err != nil {
		return nil, err
	}
	return &r, nil
}

func bigToText(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func textToBig(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", *s)
	}
	return v, nil
}
