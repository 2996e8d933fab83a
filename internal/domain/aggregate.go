package domain

import "time"

// AggregateRecord is the per-(session, threshold, horizon) summary the
// judgment layer consumes. Phase 1 covers [open, open+threshold); Phase 2
// covers [open+threshold, judgment end). Phase-2 fields are NaN/nil when
// the window holds no bars, which is meaningful (inconclusive day), not
// an error. Corresponds to daily_aggregates table in ClickHouse.
type AggregateRecord struct {
	Symbol      string
	Date        string // session date, "2006-01-02" in exchange-local time
	SessionType string

	CloseTime     time.Time
	OpenTime      time.Time
	NextCloseTime time.Time

	ThresholdMin        int       // minutes after open closing Phase 1
	ThresholdTime       time.Time // OpenTime + ThresholdMin
	JudgmentHours       *float64  // nil = until next close
	JudgmentLabel       string    // "22h" or "close"
	JudgmentHoursActual float64   // effective window length in hours
	JudgmentEndTime     time.Time

	// Entries are the worst fill over the one-minute window ending at
	// CloseTime: max(high) for long, min(low) for short.
	LongEntry  float64
	ShortEntry float64

	Phase1High float64
	Phase1Low  float64

	Phase2High           float64    // NaN when Phase 2 is empty
	Phase2Low            float64    // NaN when Phase 2 is empty
	Phase2BreachLongTime *time.Time // first bar with low < LongEntry
	Phase2BreachLongMin  float64    // minutes from Phase-2 start; NaN when no breach

	// Short-side breach bookkeeping, carried for future short judgment.
	Phase2BreachShortTime *time.Time
	Phase2BreachShortMax  float64 // NaN

	// Open-reference data quality signals.
	SkipMinutes       int // degenerate opening bars bypassed
	ReferenceOpenTime *time.Time
}

// JudgmentLabelClose labels the "until next close" horizon.
const JudgmentLabelClose = "close"
