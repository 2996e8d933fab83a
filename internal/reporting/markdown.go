package reporting

import (
	"fmt"
	"strings"
	"time"

	"margin-liq-lab/internal/domain"
)

// outcomeOrder fixes the row order of the distribution table.
var outcomeOrder = []domain.Outcome{
	domain.OutcomeFullWin,
	domain.OutcomeRecoveredAboveEntry,
	domain.OutcomeNegativeHold,
	domain.OutcomeLiquidated,
	domain.OutcomeNoPositionSurvived,
	domain.OutcomeShortBreachedAbove,
	domain.OutcomeShortHeldBelow,
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Liquidation Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Symbol: %s\n\n", r.RunID, r.Symbol))
	if r.ModelDesc != "" {
		sb.WriteString(fmt.Sprintf("Model: %s\n\n", r.ModelDesc))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Sessions Judged | %d |\n", r.Stats.Total))
	sb.WriteString(fmt.Sprintf("| Full Wins | %d |\n", r.Stats.WinCount))
	sb.WriteString(fmt.Sprintf("| Recoveries | %d |\n", r.Stats.RecoveryCount))
	sb.WriteString(fmt.Sprintf("| Warnings | %d |\n", r.Stats.WarningCount))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", r.Stats.LossCount))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", r.Stats.WinRatePct))
	sb.WriteString("\n")

	// Outcome Distribution
	sb.WriteString("## Outcome Distribution\n\n")
	if r.Stats.Total > 0 {
		sb.WriteString("| Outcome | Count | Share |\n")
		sb.WriteString("|---------|-------|-------|\n")
		for _, o := range outcomeOrder {
			count := r.Stats.Counts[o]
			if count == 0 {
				continue
			}
			share := 100 * float64(count) / float64(r.Stats.Total)
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% |\n", o, count, share))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No sessions judged.\n\n")
	}

	// Loss Detail
	losses := lossRecords(r.Outcomes)
	sb.WriteString("## Losses\n\n")
	if len(losses) > 0 {
		sb.WriteString("| Date | Label | Side | Outcome | Detail |\n")
		sb.WriteString("|------|-------|------|---------|--------|\n")
		for _, rec := range losses {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				rec.Date, rec.JudgmentLabel, rec.Side, rec.Outcome, rec.Detail))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No liquidations in this run.\n\n")
	}

	return sb.String()
}

// lossRecords filters to loss outcomes, preserving input order.
func lossRecords(records []*domain.OutcomeRecord) []*domain.OutcomeRecord {
	var losses []*domain.OutcomeRecord
	for _, r := range records {
		if r.Outcome == domain.OutcomeLiquidated || r.Outcome == domain.OutcomeNoPositionSurvived {
			losses = append(losses, r)
		}
	}
	return losses
}
