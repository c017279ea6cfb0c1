// Package ingestion acquires the reconstruction inputs: parsing exported
// event-log records, backfilling logs from a node over block ranges,
// deriving the price history from pool swap events and collecting gas
// receipts. The accounting core consumes its inputs fully materialized; this
// package is where all I/O and retries live.
package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"uniswap-lp-lab/internal/domain"
)

// eventLogRecord is the exported-file schema for one event log.
type eventLogRecord struct {
	BlockTimestamp  string   `json:"blockTimestamp"` // ISO-8601
	TransactionID   string   `json:"transactionId"`
	EmittingAddress string   `json:"emittingAddress"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"` // 0x-prefixed hex
	LogIndex        int      `json:"logIndex"`
}

// priceSampleRecord is the exported-file schema for one price sample.
type priceSampleRecord struct {
	BlockTimestamp string `json:"blockTimestamp"`
	Price          string `json:"price"` // decimal, 1e18-scaled
}

// ParseEventLogRecords decodes a JSON array of exported event log records.
// Timestamps are normalized to Unix seconds.
func ParseEventLogRecords(r io.Reader) ([]*domain.EventLog, error) {
	var records []eventLogRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode event log records: %w", err)
	}

	logs := make([]*domain.EventLog, 0, len(records))
	for i, rec := range records {
		l, err := rec.toEventLog()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (rec *eventLogRecord) toEventLog() (*domain.EventLog, error) {
	ts, err := parseTimestamp(rec.BlockTimestamp)
	if err != nil {
		return nil, err
	}
	if len(rec.Topics) == 0 || len(rec.Topics) > 4 {
		return nil, fmt.Errorf("expected 1-4 topics, got %d", len(rec.Topics))
	}

	topics := make([]common.Hash, len(rec.Topics))
	for i, t := range rec.Topics {
		topics[i] = common.HexToHash(t)
	}

	var data []byte
	if rec.Data != "" && rec.Data != "0x" {
		data, err = hexutil.Decode(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}

	return &domain.EventLog{
		Address:   common.HexToAddress(rec.EmittingAddress),
		Topics:    topics,
		Data:      data,
		Timestamp: ts,
		TxHash:    common.HexToHash(rec.TransactionID),
		LogIndex:  rec.LogIndex,
	}, nil
}

// ParsePriceSampleRecords decodes a JSON array of exported price samples.
// The order of the input is preserved; the price index requires it to be
// non-decreasing by timestamp.
func ParsePriceSampleRecords(r io.Reader) ([]domain.PriceSample, error) {
	var records []priceSampleRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode price sample records: %w", err)
	}

	samples := make([]domain.PriceSample, 0, len(records))
	for i, rec := range records {
		ts, err := parseTimestamp(rec.BlockTimestamp)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		price, ok := new(big.Int).SetString(rec.Price, 10)
		if !ok {
			return nil, fmt.Errorf("sample %d: invalid price %q", i, rec.Price)
		}
		samples = append(samples, domain.PriceSample{Timestamp: ts, Price: price})
	}
	return samples, nil
}

// parseTimestamp accepts RFC 3339 with or without sub-second precision.
func parseTimestamp(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.Unix(), nil
}
