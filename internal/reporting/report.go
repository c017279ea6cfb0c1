// Package reporting renders reconstruction results into CSV and Markdown
// artifacts. All monetary columns are exact smallest-unit integers; the only
// fractional formatting is fixed two-decimal rendering of centi-valued
// figures (basis points and day counts), done in integer arithmetic.
package reporting

import (
	"time"

	"uniswap-lp-lab/internal/accounting"
	"uniswap-lp-lab/internal/domain"
)

// RunReport is the complete output of one reporting run.
type RunReport struct {
	RunID       string
	GeneratedAt time.Time

	Positions []*domain.PositionReport
	Summary   *accounting.Summary
}
