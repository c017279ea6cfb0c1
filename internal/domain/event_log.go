package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// EventLog is a single immutable log record emitted by a contract.
// Records arrive from the ledger-query collaborator either unordered or
// grouped by transaction; LogIndex restores within-transaction order.
type EventLog struct {
	Address   common.Address // emitting contract
	Topics    []common.Hash  // topic[0] is the event signature
	Data      []byte         // ABI-encoded non-indexed arguments
	Timestamp int64          // block timestamp, Unix seconds
	TxHash    common.Hash    // transaction the log belongs to
	LogIndex  int            // log index within the block
}
