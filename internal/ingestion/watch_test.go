package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/eth"
	"uniswap-lp-lab/internal/storage/memory"
)

type stubSubscriber struct {
	ch     chan eth.Log
	filter eth.LogFilter
}

func (s *stubSubscriber) SubscribeLogs(_ context.Context, filter eth.LogFilter) (<-chan eth.Log, error) {
	s.filter = filter
	return s.ch, nil
}

func TestWatcher_StoresLiveLogs(t *testing.T) {
	sub := &stubSubscriber{ch: make(chan eth.Log, 10)}
	rpc := &stubRPC{timestamps: map[uint64]int64{100: 1700000000}}
	store := memory.NewEventLogStore()

	w := NewWatcher(WatchOptions{
		Subscriber: sub,
		RPC:        rpc,
		LogStore:   store,
		Pool:       testPool,
		Logger:     quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *WatchResult, 1)
	go func() {
		result, _ := w.Run(ctx)
		done <- result
	}()

	sub.ch <- increaseLog(100, common.Hash{0xa1}, 0)
	sub.ch <- increaseLog(100, common.Hash{0xa1}, 0) // duplicate delivery

	removed := increaseLog(100, common.Hash{0xa2}, 0)
	removed.Removed = true
	sub.ch <- removed

	// Give the watcher time to drain before stopping.
	time.Sleep(100 * time.Millisecond)
	cancel()

	var result *WatchResult
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	if result.LogsReceived != 3 {
		t.Errorf("expected 3 received, got %d", result.LogsReceived)
	}
	if result.LogsStored != 1 || result.DuplicatesSkipped != 1 || result.Skipped != 1 {
		t.Errorf("stored/dupes/skipped: got %d/%d/%d",
			result.LogsStored, result.DuplicatesSkipped, result.Skipped)
	}
	if len(sub.filter.Addresses) != 4 {
		t.Errorf("expected 4 tracked addresses in filter, got %d", len(sub.filter.Addresses))
	}

	stored, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(stored) != 1 || stored[0].Timestamp != 1700000000 {
		t.Fatalf("expected 1 stored log with resolved timestamp, got %+v", stored)
	}
}

func TestWatcher_FeedClosed(t *testing.T) {
	sub := &stubSubscriber{ch: make(chan eth.Log)}
	close(sub.ch)

	w := NewWatcher(WatchOptions{
		Subscriber: sub,
		RPC:        &stubRPC{},
		LogStore:   memory.NewEventLogStore(),
		Pool:       testPool,
		Logger:     quietLogger(),
	})

	_, err := w.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("expected a feed-closed error, got %v", err)
	}
}
