package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/eth"
	"uniswap-lp-lab/internal/evmlog"
	"uniswap-lp-lab/internal/observability"
	"uniswap-lp-lab/internal/position"
	"uniswap-lp-lab/internal/storage"
)

// Backfiller handles historical event log ingestion from RPC.
type Backfiller struct {
	rpc       eth.RPCClient
	logStore  storage.EventLogStore
	cfg       position.PoolConfig
	chunkSize uint64
	batchSize int
	logger    *log.Logger
	metrics   *observability.Metrics
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC       eth.RPCClient
	LogStore  storage.EventLogStore
	Pool      position.PoolConfig
	ChunkSize uint64 // blocks per eth_getLogs call
	BatchSize int    // logs per InsertBulk
	Logger    *log.Logger
	Metrics   *observability.Metrics
}

// NewBackfiller creates a new historical event log backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = 2000
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Backfiller{
		rpc:       opts.RPC,
		logStore:  opts.LogStore,
		cfg:       opts.Pool,
		chunkSize: chunkSize,
		batchSize: batchSize,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	LogsFetched       int
	LogsStored        int
	DuplicatesSkipped int
	RemovedSkipped    int
	Errors            int
	HighestBlock      uint64
	Duration          time.Duration
}

// BackfillRange fetches and stores every relevant log in [fromBlock, toBlock].
// The filter covers the position manager, the pool and both token contracts;
// logs with other signatures are dropped before storage.
func (b *Backfiller) BackfillRange(ctx context.Context, fromBlock, toBlock uint64) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	if fromBlock > toBlock {
		return nil, fmt.Errorf("invalid block range [%d, %d]", fromBlock, toBlock)
	}

	b.logger.Printf("[backfill] starting blocks %d..%d", fromBlock, toBlock)

	timestamps := make(map[uint64]int64)

	for chunkStart := fromBlock; chunkStart <= toBlock; chunkStart += b.chunkSize {
		chunkEnd := chunkStart + b.chunkSize - 1
		if chunkEnd > toBlock {
			chunkEnd = toBlock
		}

		rawLogs, err := b.rpc.GetLogs(ctx, eth.LogFilter{
			FromBlock: chunkStart,
			ToBlock:   chunkEnd,
			Addresses: trackedAddresses(b.cfg),
		})
		if err != nil {
			if b.metrics != nil {
				b.metrics.IngestionErrors.WithLabelValues("get_logs").Inc()
			}
			return result, fmt.Errorf("get logs for blocks %d..%d: %w", chunkStart, chunkEnd, err)
		}

		result.LogsFetched += len(rawLogs)
		if b.metrics != nil {
			b.metrics.LogsFetched.Add(float64(len(rawLogs)))
		}

		logs, skipped, err := b.resolveLogs(ctx, rawLogs, timestamps)
		if err != nil {
			return result, err
		}
		result.RemovedSkipped += skipped

		stored, dupes, errs := b.storeLogs(ctx, logs)
		result.LogsStored += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs

		if chunkEnd > result.HighestBlock {
			result.HighestBlock = chunkEnd
		}
		if b.metrics != nil {
			b.metrics.LogsStored.Add(float64(stored))
			b.metrics.BlocksBackfilled.Add(float64(chunkEnd - chunkStart + 1))
			b.metrics.HighestBlockIngested.Set(float64(chunkEnd))
		}
	}

	result.Duration = time.Since(start)
	if b.metrics != nil {
		b.metrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
	}
	b.logger.Printf("[backfill] complete: %d fetched, %d stored, %d dupes, %d removed, %d errors in %v",
		result.LogsFetched, result.LogsStored, result.DuplicatesSkipped,
		result.RemovedSkipped, result.Errors, result.Duration)

	return result, nil
}

// BackfillLatest backfills the most recent n blocks.
func (b *Backfiller) BackfillLatest(ctx context.Context, blocks uint64) (*BackfillResult, error) {
	head, err := b.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get head block: %w", err)
	}

	from := uint64(0)
	if head > blocks {
		from = head - blocks + 1
	}
	return b.BackfillRange(ctx, from, head)
}

// trackedAddresses lists the contracts whose logs a pool configuration needs.
func trackedAddresses(cfg position.PoolConfig) []common.Address {
	return []common.Address{
		cfg.PositionManager,
		cfg.Pool,
		cfg.QuoteToken,
		cfg.BaseToken,
	}
}

// resolveLogs converts raw RPC logs to domain logs, resolving each block's
// timestamp once. Logs flagged as removed by a reorg are dropped.
func (b *Backfiller) resolveLogs(ctx context.Context, rawLogs []eth.Log, timestamps map[uint64]int64) ([]*domain.EventLog, int, error) {
	logs := make([]*domain.EventLog, 0, len(rawLogs))
	skipped := 0

	for _, raw := range rawLogs {
		if raw.Removed {
			skipped++
			continue
		}
		if len(raw.Topics) == 0 || !relevantTopic(raw.Topics[0]) {
			skipped++
			continue
		}

		ts, ok := timestamps[raw.BlockNumber]
		if !ok {
			var err error
			ts, err = b.rpc.BlockTimestamp(ctx, raw.BlockNumber)
			if err != nil {
				if b.metrics != nil {
					b.metrics.IngestionErrors.WithLabelValues("block_timestamp").Inc()
				}
				return nil, skipped, fmt.Errorf("resolve timestamp of block %d: %w", raw.BlockNumber, err)
			}
			timestamps[raw.BlockNumber] = ts
		}

		logs = append(logs, &domain.EventLog{
			Address:   raw.Address,
			Topics:    raw.Topics,
			Data:      raw.Data,
			Timestamp: ts,
			TxHash:    raw.TxHash,
			LogIndex:  raw.LogIndex,
		})
	}

	return logs, skipped, nil
}

// relevantTopic reports whether a signature topic belongs to one of the
// events the reconstruction reads.
func relevantTopic(sig common.Hash) bool {
	switch sig {
	case evmlog.TopicERC20Transfer,
		evmlog.TopicPoolSwap,
		evmlog.TopicPoolMint,
		evmlog.TopicIncreaseLiquidity,
		evmlog.TopicDecreaseLiquidity,
		evmlog.TopicCollect:
		return true
	}
	return false
}

// storeLogs stores logs in batches, handling duplicates.
func (b *Backfiller) storeLogs(ctx context.Context, logs []*domain.EventLog) (stored, dupes, errs int) {
	if b.logStore == nil {
		return 0, 0, 0
	}

	for i := 0; i < len(logs); i += b.batchSize {
		end := i + b.batchSize
		if end > len(logs) {
			end = len(logs)
		}

		batch := logs[i:end]
		err := b.logStore.InsertBulk(ctx, batch)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				// Insert one by one to find which are duplicates
				for _, l := range batch {
					if err := b.logStore.Insert(ctx, l); err != nil {
						if errors.Is(err, storage.ErrDuplicateKey) {
							dupes++
						} else {
							errs++
						}
					} else {
						stored++
					}
				}
			} else {
				errs += len(batch)
				b.logger.Printf("[backfill] error storing batch: %v", err)
			}
		} else {
			stored += len(batch)
		}
	}

	return stored, dupes, errs
}
