// Package pipeline wires the reconstruction passes together: log indexing,
// position building, fee accounting and summary aggregation, in that order.
package pipeline

import (
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/accounting"
	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/logindex"
	"uniswap-lp-lab/internal/observability"
	"uniswap-lp-lab/internal/position"
	"uniswap-lp-lab/internal/priceindex"
)

// Result is the output of one reconstruction run.
type Result struct {
	Reports    []*domain.PositionReport
	Summary    *accounting.Summary
	Stats      *logindex.Stats
	Exclusions domain.Exclusions
}

// Reconstructor runs the full position reconstruction over a log window.
type Reconstructor struct {
	cfg     position.PoolConfig
	conv    position.TickConverter
	metrics *observability.Metrics
	clock   func() time.Time
}

// NewReconstructor creates a reconstructor for one pool configuration.
func NewReconstructor(cfg position.PoolConfig, conv position.TickConverter) *Reconstructor {
	return &Reconstructor{
		cfg:   cfg,
		conv:  conv,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches Prometheus metrics to the run.
func (r *Reconstructor) WithMetrics(m *observability.Metrics) *Reconstructor {
	r.metrics = m
	return r
}

// WithClock sets a custom clock function for deterministic output.
func (r *Reconstructor) WithClock(clock func() time.Time) *Reconstructor {
	r.clock = clock
	return r
}

// Run reconstructs position lifecycles from raw logs and price history.
// gasByTx optionally maps transaction hashes to their total gas cost in the
// quote asset; positions whose transactions are absent from the map carry no
// gas figure.
//
// The pass order is fixed: directions must be known before fees are
// decomposed, and amounts must be extracted before prices are attached.
func (r *Reconstructor) Run(logs []*domain.EventLog, samples []domain.PriceSample, gasByTx map[common.Hash]*big.Int) (*Result, error) {
	started := r.clock()

	index, err := priceindex.Load(samples)
	if err != nil {
		r.observeRun("error", started)
		return nil, fmt.Errorf("load price index: %w", err)
	}

	indexer := logindex.NewIndexer(r.cfg.PositionManager)
	byTx := indexer.GroupByTransaction(logs)
	positionLogs, stats := indexer.IndexPositions(byTx)

	builder := position.NewBuilder(r.cfg, r.conv)
	builder.Seed(positionLogs)
	builder.ClassifyDirections()
	builder.DeriveRangeWidths()
	builder.ExtractAmounts()

	positions := builder.Positions()
	attachGas(positions, gasByTx)

	accountant := accounting.NewAccountant(index)
	if err := accountant.DecomposeFees(positions); err != nil {
		r.observeRun("error", started)
		return nil, err
	}
	if err := accountant.AttachPrices(positions); err != nil {
		r.observeRun("error", started)
		return nil, err
	}
	reports, err := accountant.Finalize(positions)
	if err != nil {
		r.observeRun("error", started)
		return nil, err
	}

	excl := builder.Exclusions()
	excl.Add(accountant.Exclusions())
	excl.DuplicateLifecycle += stats.DuplicateOpens + stats.DuplicateCloses

	summary := accounting.Summarize(reports, excl)

	log.Printf("[pipeline] run complete: txs=%d skipped=%d finalized=%d excluded=%d duplicates=%d",
		stats.Transactions, stats.SkippedTransactions, len(reports), excl.Total(), excl.DuplicateLifecycle)

	if r.metrics != nil {
		r.metrics.TransactionsScanned.Add(float64(stats.Transactions))
		r.metrics.PositionsFinalized.Add(float64(len(reports)))
		r.metrics.PriceSamplesIndexed.Set(float64(index.Len()))
		r.metrics.ObserveExclusions(excl.Incomplete, excl.InvariantViolation,
			excl.NegativeFeeAnomaly, excl.DuplicateLifecycle)
		r.metrics.LastSuccessfulPipeline.Set(float64(r.clock().Unix()))
	}
	r.observeRun("ok", started)

	return &Result{
		Reports:    reports,
		Summary:    summary,
		Stats:      stats,
		Exclusions: excl,
	}, nil
}

func (r *Reconstructor) observeRun(status string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	r.metrics.PipelineDuration.Observe(r.clock().Sub(started).Seconds())
}

// attachGas sums the gas cost of each position's opening and closing
// transactions.
func attachGas(positions map[uint64]*domain.Position, gasByTx map[common.Hash]*big.Int) {
	if len(gasByTx) == 0 {
		return
	}
	for _, pos := range positions {
		total := new(big.Int)
		found := false
		if g, ok := gasByTx[pos.OpenTx]; ok {
			total.Add(total, g)
			found = true
		}
		if g, ok := gasByTx[pos.CloseTx]; ok {
			total.Add(total, g)
			found = true
		}
		if found {
			pos.GasPaid = total
		}
	}
}
