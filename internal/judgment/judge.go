// Package judgment classifies the outcome of each aggregated session
// under a liquidation model: Phase 1 selects the hypothetical side that
// survives the opening window, Phase 2 refines that side's fate.
package judgment

import (
	"fmt"
	"math"
	"sort"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/liquidation"
)

// DefaultRecoveryThresholdPct is the entry-breach depth (percent of
// entry) below which a dip still counts as recovered. Policy constant,
// not derived from the model.
const DefaultRecoveryThresholdPct = 0.5

// Judge classifies one aggregate row at a time. Pure given its inputs;
// safe to share across goroutines when the model is.
type Judge struct {
	model            liquidation.Model
	leverage         float64
	positionMargin   float64
	additionalMargin float64

	thresholdMin  int
	judgmentHours *float64 // nil = until next close

	recoveryThresholdPct float64

	// bars, when present, resolve the exact liquidation minute by
	// scanning the Phase-2 slice. Without them (or on a data gap) the
	// time is reported as unknown, never as an error.
	bars []*domain.PriceBar
}

// JudgeOptions configures a Judge.
type JudgeOptions struct {
	Model            liquidation.Model
	Leverage         float64
	PositionMargin   float64
	AdditionalMargin float64

	ThresholdMin  int
	JudgmentHours *float64

	// RecoveryThresholdPct defaults to DefaultRecoveryThresholdPct
	// when zero.
	RecoveryThresholdPct float64

	// Bars is the optional sorted minute-bar slice for liquidation
	// timestamp refinement.
	Bars []*domain.PriceBar
}

// NewJudge creates a Judge.
func NewJudge(opts JudgeOptions) *Judge {
	recovery := opts.RecoveryThresholdPct
	if recovery == 0 {
		recovery = DefaultRecoveryThresholdPct
	}
	return &Judge{
		model:                opts.Model,
		leverage:             opts.Leverage,
		positionMargin:       opts.PositionMargin,
		additionalMargin:     opts.AdditionalMargin,
		thresholdMin:         opts.ThresholdMin,
		judgmentHours:        opts.JudgmentHours,
		recoveryThresholdPct: recovery,
		bars:                 opts.Bars,
	}
}

// RunID labels the judgment parameterization for outcome storage.
func (j *Judge) RunID() string {
	return fmt.Sprintf("%s_L%g_m%g_a%g_t%d_j%s",
		j.model.ID(), j.leverage, j.positionMargin, j.additionalMargin,
		j.thresholdMin, aggregateLabel(j.judgmentHours))
}

// Day judges a single aggregate row. Returns (nil, false) when the row
// belongs to a different (threshold, horizon) window; otherwise exactly
// one OutcomeRecord is produced.
func (j *Judge) Day(rec *domain.AggregateRecord) (*domain.OutcomeRecord, bool) {
	if !j.matchesWindow(rec) {
		return nil, false
	}

	position := liquidation.Position{
		Leverage:         j.leverage,
		PositionMargin:   j.positionMargin,
		AdditionalMargin: j.additionalMargin,
	}

	liqLong := j.model.LiqPriceLong(rec.LongEntry, position)
	liqShort := j.model.LiqPriceShort(rec.ShortEntry, position)

	longSurvives := rec.Phase1Low >= liqLong
	shortSurvives := rec.Phase1High <= liqShort

	out := &domain.OutcomeRecord{
		RunID:               j.RunID(),
		Symbol:              rec.Symbol,
		Date:                rec.Date,
		SessionType:         rec.SessionType,
		JudgmentLabel:       rec.JudgmentLabel,
		JudgmentHoursActual: rec.JudgmentHoursActual,
		Phase2Low:           rec.Phase2Low,
	}

	switch {
	case !longSurvives && !shortSurvives:
		out.Side = domain.SideNone
		out.Outcome = domain.OutcomeNoPositionSurvived
		out.Detail = fmt.Sprintf("both sides liquidated within %d min of open", rec.ThresholdMin)
		return out, true
	case longSurvives:
		// Both surviving prefers LONG.
		return j.judgeLong(rec, out, liqLong), true
	default:
		return j.judgeShort(rec, out), true
	}
}

// judgeLong refines a surviving long over Phase 2.
func (j *Judge) judgeLong(rec *domain.AggregateRecord, out *domain.OutcomeRecord, liqLong float64) *domain.OutcomeRecord {
	out.Side = domain.SideLong
	out.EntryPrice = rec.LongEntry
	out.LiquidationPrice = &liqLong

	switch {
	case rec.Phase2Low <= liqLong:
		out.Outcome = domain.OutcomeLiquidated
		out.LiquidationTime = j.resolveLiquidationTime(rec, liqLong)
		if out.LiquidationTime != nil {
			out.Detail = fmt.Sprintf("liquidated at %s", out.LiquidationTime.Format("15:04"))
		} else {
			out.Detail = "liquidated (time unknown)"
		}

	case rec.Phase2Low < rec.LongEntry:
		distance := rec.LongEntry - rec.Phase2Low
		distancePct := distance / rec.LongEntry * 100
		out.DistanceFromEntry = &distance
		out.BreachTime = rec.Phase2BreachLongTime

		if distancePct < j.recoveryThresholdPct {
			out.Outcome = domain.OutcomeRecoveredAboveEntry
			out.Detail = fmt.Sprintf("entry breached, recovered (max -$%.2f at %s)", distance, breachLabel(rec.Phase2BreachLongTime))
		} else {
			out.Outcome = domain.OutcomeNegativeHold
			out.Detail = fmt.Sprintf("held below entry (max -$%.2f at %s)", distance, breachLabel(rec.Phase2BreachLongTime))
		}

	default:
		// Phase2Low >= entry, or NaN (empty Phase 2 = inconclusive hold).
		out.Outcome = domain.OutcomeFullWin
		if !math.IsNaN(rec.Phase2Low) {
			closest := rec.Phase2Low - rec.LongEntry
			out.DistanceFromEntry = &closest
			out.Detail = fmt.Sprintf("never dipped below entry (min +$%.2f)", closest)
		} else {
			out.Detail = "never dipped below entry (no phase-2 bars)"
		}
	}

	return out
}

// judgeShort refines a surviving short over Phase 2.
func (j *Judge) judgeShort(rec *domain.AggregateRecord, out *domain.OutcomeRecord) *domain.OutcomeRecord {
	out.Side = domain.SideShort
	out.EntryPrice = rec.ShortEntry

	if rec.Phase2High > rec.ShortEntry {
		out.Outcome = domain.OutcomeShortBreachedAbove
		out.Detail = "price broke above short entry"
	} else {
		out.Outcome = domain.OutcomeShortHeldBelow
		if !math.IsNaN(rec.Phase2Low) {
			out.Detail = fmt.Sprintf("held below entry all day (low $%.2f)", rec.Phase2Low)
		} else {
			out.Detail = "held below entry (no phase-2 bars)"
		}
	}

	return out
}

// resolveLiquidationTime scans the Phase-2 bar slice for the first bar
// whose low reached the liquidation price. Returns nil on a data gap;
// the aggregate already proved the breach, only the minute is unknown.
func (j *Judge) resolveLiquidationTime(rec *domain.AggregateRecord, liqLong float64) *time.Time {
	if len(j.bars) == 0 {
		return nil
	}

	lo := sort.Search(len(j.bars), func(i int) bool {
		return !j.bars[i].Timestamp.Before(rec.ThresholdTime)
	})
	for _, bar := range j.bars[lo:] {
		if !bar.Timestamp.Before(rec.JudgmentEndTime) {
			break
		}
		if bar.Low <= liqLong {
			t := bar.Timestamp
			return &t
		}
	}
	return nil
}

// matchesWindow reports whether the row belongs to this judge's
// (threshold, horizon) pair. Horizons match when both are nil or both
// carry the same hour count.
func (j *Judge) matchesWindow(rec *domain.AggregateRecord) bool {
	if rec.ThresholdMin != j.thresholdMin {
		return false
	}
	if j.judgmentHours == nil || rec.JudgmentHours == nil {
		return j.judgmentHours == nil && rec.JudgmentHours == nil
	}
	return *j.judgmentHours == *rec.JudgmentHours
}

func breachLabel(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("15:04")
}

func aggregateLabel(horizon *float64) string {
	if horizon == nil {
		return domain.JudgmentLabelClose
	}
	return fmt.Sprintf("%gh", *horizon)
}
