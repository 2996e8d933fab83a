package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"margin-liq-lab/internal/domain"
)

// RenderOutcomesCSV renders outcome records as CSV string. Absent optional
// fields render as empty cells.
func RenderOutcomesCSV(records []*domain.OutcomeRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,session_type,judgment_label,judgment_hours_actual,side,outcome,detail,")
	sb.WriteString("entry_price,liquidation_price,liquidation_time,")
	sb.WriteString("distance_from_entry,breach_time,phase2_low\n")

	// Rows
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.2f,%s,%s,%s,%.6f,%s,%s,%s,%s,%s\n",
			r.Date,
			r.SessionType,
			r.JudgmentLabel,
			r.JudgmentHoursActual,
			r.Side,
			r.Outcome,
			csvQuote(r.Detail),
			r.EntryPrice,
			floatCell(r.LiquidationPrice),
			timeCell(r.LiquidationTime),
			floatCell(r.DistanceFromEntry),
			timeCell(r.BreachTime),
			nanCell(r.Phase2Low),
		))
	}

	return sb.String()
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *v)
}

func nanCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.6f", v)
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// csvQuote wraps a field in quotes when it contains a comma or quote.
func csvQuote(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
