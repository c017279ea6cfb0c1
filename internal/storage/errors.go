package storage

import "errors"

// Sentinel errors shared by the event log, price sample and position report
// stores. Every backend translates its native failures into these so callers
// can branch with errors.Is regardless of where a record lives.
var (
	// ErrNotFound is returned when a requested record does not exist,
	// e.g. a position report looked up by a token id that was never
	// finalized.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key is
	// already stored. Logs, samples and reports are immutable once
	// written; re-ingesting a block window surfaces as duplicates, never
	// as updates.
	ErrDuplicateKey = errors.New("duplicate key: stored records are immutable")

	// ErrInvalidInput is returned for records that cannot be stored,
	// such as an event log without topics or a price sample with a nil
	// price.
	ErrInvalidInput = errors.New("invalid input")
)
