package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/eth"
	"uniswap-lp-lab/internal/observability"
	"uniswap-lp-lab/internal/position"
	"uniswap-lp-lab/internal/storage"
)

// LogSubscriber is the live log feed, implemented by eth.WSClient.
type LogSubscriber interface {
	SubscribeLogs(ctx context.Context, filter eth.LogFilter) (<-chan eth.Log, error)
}

// Watcher stores logs from a live subscription as they arrive.
type Watcher struct {
	sub      LogSubscriber
	rpc      eth.RPCClient
	logStore storage.EventLogStore
	cfg      position.PoolConfig
	logger   *log.Logger
	metrics  *observability.Metrics
}

// WatchOptions contains configuration for creating a Watcher.
type WatchOptions struct {
	Subscriber LogSubscriber
	RPC        eth.RPCClient
	LogStore   storage.EventLogStore
	Pool       position.PoolConfig
	Logger     *log.Logger
	Metrics    *observability.Metrics
}

// NewWatcher creates a live log watcher.
func NewWatcher(opts WatchOptions) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		sub:      opts.Subscriber,
		rpc:      opts.RPC,
		logStore: opts.LogStore,
		cfg:      opts.Pool,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// WatchResult contains statistics from a watch session.
type WatchResult struct {
	LogsReceived      int
	LogsStored        int
	DuplicatesSkipped int
	Skipped           int
	Errors            int
	Duration          time.Duration
}

// Run subscribes to the tracked contracts and stores every relevant log until
// the context is cancelled or the feed closes. Reorg-removed notifications
// are skipped; a removed log that was already stored stays stored and is
// handled by a later backfill over the affected range.
func (w *Watcher) Run(ctx context.Context) (*WatchResult, error) {
	start := time.Now()
	result := &WatchResult{}

	addrs := trackedAddresses(w.cfg)
	ch, err := w.sub.SubscribeLogs(ctx, eth.LogFilter{Addresses: addrs})
	if err != nil {
		return nil, err
	}
	w.logger.Printf("[watch] subscribed to %d contracts", len(addrs))

	timestamps := make(map[uint64]int64)

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			w.logger.Printf("[watch] stopping: %d received, %d stored, %d dupes, %d skipped, %d errors in %v",
				result.LogsReceived, result.LogsStored, result.DuplicatesSkipped,
				result.Skipped, result.Errors, result.Duration)
			return result, ctx.Err()

		case raw, ok := <-ch:
			if !ok {
				result.Duration = time.Since(start)
				return result, errors.New("log subscription closed")
			}
			result.LogsReceived++
			if w.metrics != nil {
				w.metrics.LogsFetched.Inc()
			}
			w.handleLog(ctx, raw, timestamps, result)
		}
	}
}

func (w *Watcher) handleLog(ctx context.Context, raw eth.Log, timestamps map[uint64]int64, result *WatchResult) {
	if raw.Removed || len(raw.Topics) == 0 || !relevantTopic(raw.Topics[0]) {
		result.Skipped++
		return
	}

	ts, ok := timestamps[raw.BlockNumber]
	if !ok {
		var err error
		ts, err = w.rpc.BlockTimestamp(ctx, raw.BlockNumber)
		if err != nil {
			result.Errors++
			if w.metrics != nil {
				w.metrics.IngestionErrors.WithLabelValues("block_timestamp").Inc()
			}
			w.logger.Printf("[watch] drop log %s[%d]: resolve timestamp of block %d: %v",
				raw.TxHash.Hex(), raw.LogIndex, raw.BlockNumber, err)
			return
		}
		timestamps[raw.BlockNumber] = ts
	}

	err := w.logStore.Insert(ctx, &domain.EventLog{
		Address:   raw.Address,
		Topics:    raw.Topics,
		Data:      raw.Data,
		Timestamp: ts,
		TxHash:    raw.TxHash,
		LogIndex:  raw.LogIndex,
	})
	switch {
	case err == nil:
		result.LogsStored++
		if w.metrics != nil {
			w.metrics.LogsStored.Inc()
			w.metrics.HighestBlockIngested.Set(float64(raw.BlockNumber))
		}
	case errors.Is(err, storage.ErrDuplicateKey):
		result.DuplicatesSkipped++
	default:
		result.Errors++
		if w.metrics != nil {
			w.metrics.IngestionErrors.WithLabelValues("store").Inc()
		}
		w.logger.Printf("[watch] error storing log %s[%d]: %v", raw.TxHash.Hex(), raw.LogIndex, err)
	}
}
