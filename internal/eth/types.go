// Package eth provides JSON-RPC and WebSocket clients for an Ethereum
// execution node, covering the small method surface the ingestion layer
// needs.
package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RPCClient is the node read interface used by ingestion.
type RPCClient interface {
	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the Unix timestamp of a block.
	BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)

	// GetLogs returns the logs matching the filter, in node order.
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// TransactionReceipt returns the receipt of a mined transaction.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

// LogFilter selects logs by block range, emitting contracts and first topic.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    []common.Hash // first-topic alternatives; empty matches all
}

// Log is one event log as returned by the node.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    int
	Removed     bool
}

// Receipt carries the gas accounting fields of a mined transaction.
type Receipt struct {
	TxHash            common.Hash
	GasUsed           *big.Int
	EffectiveGasPrice *big.Int
	Status            uint64
}

// GasCost returns gasUsed * effectiveGasPrice in wei.
func (r *Receipt) GasCost() *big.Int {
	return new(big.Int).Mul(r.GasUsed, r.EffectiveGasPrice)
}

// hexUint64 parses a 0x-prefixed quantity.
func hexUint64(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return v, nil
}

// hexBig parses a 0x-prefixed quantity of arbitrary size.
func hexBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	v, err := hexutil.DecodeBig(s)
	if err != nil {
		return nil, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return v, nil
}

// hexBytes parses 0x-prefixed binary data; "0x" decodes to empty.
func hexBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("data missing 0x prefix")
	}
	v, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	return v, nil
}
