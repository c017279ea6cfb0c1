package reporting

import (
	"fmt"
	"strings"

	"uniswap-lp-lab/internal/domain"
)

// RenderMarkdown renders a run report as a Markdown summary.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString("# Position Reconstruction Report\n\n")
	sb.WriteString("Run ID: " + r.RunID + "\n\n")
	sb.WriteString("Generated at: " + r.GeneratedAt.Format("2006-01-02 15:04:05 UTC") + "\n\n")

	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Finalized positions: %d\n", s.Finalized))
	sb.WriteString(fmt.Sprintf("- Yield positions (excl. sideways): %d\n", s.YieldPositions))
	sb.WriteString(fmt.Sprintf("- Total fees in quote: %s\n", s.TotalFeesInQuote))
	sb.WriteString(fmt.Sprintf("- Total opening liquidity in quote: %s\n", s.TotalOpeningInQuote))
	sb.WriteString(fmt.Sprintf("- Total net return in quote: %s\n", s.TotalNetReturn))
	sb.WriteString(fmt.Sprintf("- Mean gross yield: %s%%\n", formatCenti(s.MeanGrossYieldBps)))
	sb.WriteString("\n")

	sb.WriteString("## Directions\n\n")
	sb.WriteString("| Direction | Count |\n")
	sb.WriteString("|-----------|-------|\n")
	for _, d := range []domain.Direction{
		domain.DirectionTradedUp, domain.DirectionTradedDown, domain.DirectionSideways,
	} {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", d, s.ByDirection[d]))
	}
	sb.WriteString("\n")

	sb.WriteString("## Exclusions\n\n")
	sb.WriteString("| Reason | Count |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Incomplete lifecycle | %d |\n", s.Exclusions.Incomplete))
	sb.WriteString(fmt.Sprintf("| Invariant violation | %d |\n", s.Exclusions.InvariantViolation))
	sb.WriteString(fmt.Sprintf("| Negative fee anomaly | %d |\n", s.Exclusions.NegativeFeeAnomaly))
	sb.WriteString(fmt.Sprintf("| Duplicate lifecycle (informational) | %d |\n", s.Exclusions.DuplicateLifecycle))
	sb.WriteString("\n")

	if len(r.Positions) > 0 {
		sb.WriteString("## Positions\n\n")
		sb.WriteString("| Token | Direction | Width (bps) | Days Open | Fees (quote) | Gross Yield |\n")
		sb.WriteString("|-------|-----------|-------------|-----------|--------------|-------------|\n")
		for _, p := range r.Positions {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %s%% |\n",
				p.TokenID,
				p.Direction,
				p.RangeWidthBps,
				formatCenti(p.TimeOpenSeconds*100/86400),
				p.FeesTotalInQuote,
				formatCenti(p.GrossYieldBps),
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
