package domain

// Exclusions aggregates soft-exclusion counts across a reconstruction run.
// Excluded positions are a normal filtering outcome, not errors; the counts
// are reported alongside the finalized set so data-quality trends stay
// visible without logging every excluded token id.
type Exclusions struct {
	// Incomplete: missing the opening or closing log subset, or a log subset
	// without the expected event.
	Incomplete int
	// InvariantViolation: a tick bound outside the valid tick domain during
	// range-width derivation.
	InvariantViolation int
	// NegativeFeeAnomaly: the fee decomposition produced a negative value.
	// Indicates upstream data irregularity rather than normal filtering.
	NegativeFeeAnomaly int
	// DuplicateLifecycle: a token id seen in more than one opening or more
	// than one closing transaction. Last write wins; the count makes the
	// single-open/single-close assumption observable.
	DuplicateLifecycle int
}

// Total returns the number of positions dropped for any reason.
// DuplicateLifecycle is informational and does not drop positions.
func (e *Exclusions) Total() int {
	return e.Incomplete + e.InvariantViolation + e.NegativeFeeAnomaly
}

// Add merges counts from another set into this one.
func (e *Exclusions) Add(other Exclusions) {
	e.Incomplete += other.Incomplete
	e.InvariantViolation += other.InvariantViolation
	e.NegativeFeeAnomaly += other.NegativeFeeAnomaly
	e.DuplicateLifecycle += other.DuplicateLifecycle
}
