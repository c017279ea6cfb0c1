package reporting

import (
	"fmt"
	"strings"

	"uniswap-lp-lab/internal/domain"
)

// RenderPositionsCSV renders finalized positions as a CSV string.
func RenderPositionsCSV(reports []*domain.PositionReport) string {
	var sb strings.Builder

	sb.WriteString("token_id,direction,range_width_bps,opened_at,closed_at,time_open_days,")
	sb.WriteString("opening_liquidity_in_quote,closing_liquidity_in_quote,fees_total_in_quote,")
	sb.WriteString("gross_yield_percent,impermanent_loss,net_return,gas_paid\n")

	for _, r := range reports {
		gas := "0"
		if r.GasPaid != nil {
			gas = r.GasPaid.String()
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s\n",
			r.TokenID,
			r.Direction,
			r.RangeWidthBps,
			r.OpenedAt,
			r.ClosedAt,
			formatCenti(r.TimeOpenSeconds*100/86400),
			r.OpeningLiquidityInQuote,
			r.ClosingLiquidityInQuote,
			r.FeesTotalInQuote,
			formatCenti(r.GrossYieldBps),
			r.ImpermanentLoss,
			r.NetReturn,
			gas,
		))
	}

	return sb.String()
}

// formatCenti renders a value carrying two implicit decimal places, e.g.
// 1328 basis points as "13.28" percent. Integer arithmetic only.
func formatCenti(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
