package judgment

import "margin-liq-lab/internal/domain"

// BatchJudge runs a Judge over an ordered aggregate collection and
// tallies outcome statistics. Purely a reduction; rows are independent.
type BatchJudge struct {
	judge *Judge

	// Progress, when set, is called roughly every 10% of rows.
	Progress func(done, total int)
}

// NewBatchJudge creates a BatchJudge around a configured Judge.
func NewBatchJudge(judge *Judge) *BatchJudge {
	return &BatchJudge{judge: judge}
}

// JudgeAll classifies every row matching the judge's window. Rows from
// other (threshold, horizon) windows are filtered, not errored.
func (b *BatchJudge) JudgeAll(records []*domain.AggregateRecord) []*domain.OutcomeRecord {
	var outcomes []*domain.OutcomeRecord

	total := len(records)
	step := total / 10
	if step == 0 {
		step = 1
	}

	for i, rec := range records {
		if out, ok := b.judge.Day(rec); ok {
			outcomes = append(outcomes, out)
		}
		if b.Progress != nil && i%step == 0 {
			b.Progress(i, total)
		}
	}

	return outcomes
}

// Statistics summarizes a batch of outcomes.
type Statistics struct {
	Total  int
	Counts map[domain.Outcome]int

	WinCount      int // FULL_WIN
	RecoveryCount int // RECOVERED_ABOVE_ENTRY
	WarningCount  int // NEGATIVE_HOLD
	LossCount     int // LIQUIDATED + NO_POSITION_SURVIVED

	WinRatePct float64 // WinCount / Total * 100
}

// Summarize tallies per-outcome counts and the win rate. The reduction
// is associative: shard tallies may be summed per outcome kind.
func Summarize(outcomes []*domain.OutcomeRecord) Statistics {
	stats := Statistics{
		Total:  len(outcomes),
		Counts: make(map[domain.Outcome]int),
	}

	for _, out := range outcomes {
		stats.Counts[out.Outcome]++

		switch out.Outcome {
		case domain.OutcomeFullWin:
			stats.WinCount++
		case domain.OutcomeRecoveredAboveEntry:
			stats.RecoveryCount++
		case domain.OutcomeNegativeHold:
			stats.WarningCount++
		case domain.OutcomeLiquidated, domain.OutcomeNoPositionSurvived:
			stats.LossCount++
		}
	}

	if stats.Total > 0 {
		stats.WinRatePct = float64(stats.WinCount) / float64(stats.Total) * 100
	}

	return stats
}
