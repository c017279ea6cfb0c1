// Package logindex groups raw event logs by transaction and derives, per
// position token id, the log subsets of its opening and closing
// transactions. Later passes rely on first-occurrence semantics, so
// within-transaction order is restored from the log index before scanning.
package logindex

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-lp-lab/internal/domain"
	"uniswap-lp-lab/internal/evmlog"
)

// PositionLogs holds the full log lists of the transactions that opened and
// closed one position. Either side may be nil when the corresponding
// transaction was not found in the input window.
type PositionLogs struct {
	Opening []*domain.EventLog
	Closing []*domain.EventLog
}

// Stats reports what the indexer saw. Transactions without a decodable
// position id are normal (not every transaction from the source account is a
// position operation) and are skipped silently apart from the counter.
type Stats struct {
	Transactions        int
	SkippedTransactions int
	DuplicateOpens      int
	DuplicateCloses     int
}

// Indexer derives per-position log subsets from raw logs.
type Indexer struct {
	positionManager common.Address
}

// NewIndexer creates an indexer bound to one position-manager contract.
func NewIndexer(positionManager common.Address) *Indexer {
	return &Indexer{positionManager: positionManager}
}

// GroupByTransaction partitions logs by transaction hash, ordering each
// group by log index.
func (ix *Indexer) GroupByTransaction(logs []*domain.EventLog) map[common.Hash][]*domain.EventLog {
	byTx := make(map[common.Hash][]*domain.EventLog)
	for _, l := range logs {
		byTx[l.TxHash] = append(byTx[l.TxHash], l)
	}
	for _, group := range byTx {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].LogIndex < group[j].LogIndex
		})
	}
	return byTx
}

// IndexPositions scans each transaction's logs for position-manager
// liquidity events and records the transaction's full log list against the
// decoded token id. A transaction may both open and close positions (a
// re-range); each side is recorded independently.
//
// Upstream data is assumed to carry exactly one full open and one full close
// per token id; when it does not, the chronologically last transaction wins
// and the duplicate is counted. Transactions are scanned in (timestamp, tx
// hash) order so the winner does not depend on map iteration order.
func (ix *Indexer) IndexPositions(byTx map[common.Hash][]*domain.EventLog) (map[uint64]*PositionLogs, *Stats) {
	index := make(map[uint64]*PositionLogs)
	stats := &Stats{}

	for _, logs := range orderTransactions(byTx) {
		stats.Transactions++

		opened, closed := ix.scanTransaction(logs)
		if len(opened) == 0 && len(closed) == 0 {
			stats.SkippedTransactions++
			continue
		}

		for _, tokenID := range opened {
			entry := getEntry(index, tokenID)
			if entry.Opening != nil {
				stats.DuplicateOpens++
			}
			entry.Opening = logs
		}
		for _, tokenID := range closed {
			entry := getEntry(index, tokenID)
			if entry.Closing != nil {
				stats.DuplicateCloses++
			}
			entry.Closing = logs
		}
	}

	return index, stats
}

// scanTransaction returns the token ids opened and closed by one
// transaction's logs, in log order.
func (ix *Indexer) scanTransaction(logs []*domain.EventLog) (opened, closed []uint64) {
	for _, l := range logs {
		if l.Address != ix.positionManager || len(l.Topics) < 2 {
			continue
		}
		switch l.Topics[0] {
		case evmlog.TopicIncreaseLiquidity:
			opened = append(opened, evmlog.U64FromTopic(l.Topics[1]))
		case evmlog.TopicDecreaseLiquidity:
			closed = append(closed, evmlog.U64FromTopic(l.Topics[1]))
		}
	}
	return opened, closed
}

// orderTransactions flattens the by-transaction map into a deterministic
// scan order: earliest first-log timestamp first, tx hash as tiebreak.
func orderTransactions(byTx map[common.Hash][]*domain.EventLog) [][]*domain.EventLog {
	out := make([][]*domain.EventLog, 0, len(byTx))
	for _, logs := range byTx {
		if len(logs) > 0 {
			out = append(out, logs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i][0], out[j][0]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.TxHash.Hex() < b.TxHash.Hex()
	})
	return out
}

func getEntry(index map[uint64]*PositionLogs, tokenID uint64) *PositionLogs {
	entry, ok := index[tokenID]
	if !ok {
		entry = &PositionLogs{}
		index[tokenID] = entry
	}
	return entry
}
