package domain

import "time"

// PositionSide is the hypothetical side selected in Phase 1.
type PositionSide string

// Position side constants
const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
	SideNone  PositionSide = "NONE"
)

// Outcome classifies how a judged day ended. The set is closed: every
// aggregate row with a non-empty Phase 1 maps to exactly one outcome.
type Outcome string

// Outcome constants
const (
	// Long-side outcomes.
	OutcomeFullWin             Outcome = "FULL_WIN"              // price never dipped below entry
	OutcomeRecoveredAboveEntry Outcome = "RECOVERED_ABOVE_ENTRY" // breached entry by < recovery threshold
	OutcomeNegativeHold        Outcome = "NEGATIVE_HOLD"         // breached entry beyond recovery threshold
	OutcomeLiquidated          Outcome = "LIQUIDATED"            // Phase-2 low reached the liquidation price

	// No position survived Phase 1.
	OutcomeNoPositionSurvived Outcome = "NO_POSITION_SURVIVED"

	// Short-side outcomes.
	OutcomeShortBreachedAbove Outcome = "SHORT_BREACHED_ABOVE"
	OutcomeShortHeldBelow     Outcome = "SHORT_HELD_BELOW"
)

// OutcomeRecord is the judged result for one aggregate row under one
// (model, leverage, margin) parameterization. Immutable once produced.
// Corresponds to outcome_records table in PostgreSQL.
type OutcomeRecord struct {
	RunID       string // judgment run identifier (model + parameters)
	Symbol      string
	Date        string
	SessionType string

	JudgmentLabel       string
	JudgmentHoursActual float64

	Side    PositionSide
	Outcome Outcome
	Detail  string // human-readable summary

	// Structured payload; nil/NaN where not applicable.
	EntryPrice        float64
	LiquidationPrice  *float64
	LiquidationTime   *time.Time // nil = unresolvable from bar data
	DistanceFromEntry *float64   // max adverse (or min favorable) excursion
	BreachTime        *time.Time
	Phase2Low         float64 // NaN when Phase 2 was empty
}
