// Package aggregate builds per-session summary rows from minute bars and
// the market session table. Each (session, threshold, horizon) tuple
// yields one AggregateRecord; the judgment layer never touches raw bars
// except to refine liquidation timestamps.
package aggregate

import (
	"math"
	"sort"
	"strconv"
	"time"

	"margin-liq-lab/internal/domain"
	"margin-liq-lab/internal/openref"
)

// Builder produces AggregateRecords. Zero-valued fields fall back to the
// defaults below on Build.
type Builder struct {
	Thresholds []int      // Phase-1 lengths in minutes
	Horizons   []*float64 // judgment horizons in hours; nil = until next close

	OpenBarOffsetMin int     // minutes past open where reference selection starts
	OpenBarMaxSkip   int     // degenerate bars to skip at most
	PriceTick        float64 // minimum range of a non-degenerate bar
}

// DefaultThresholds covers the 1-5 minute Phase-1 windows.
var DefaultThresholds = []int{1, 2, 3, 4, 5}

// DefaultHorizons returns hourly horizons 1h..24h plus "until next close".
func DefaultHorizons() []*float64 {
	horizons := make([]*float64, 0, 25)
	for h := 1; h <= 24; h++ {
		v := float64(h)
		horizons = append(horizons, &v)
	}
	return append(horizons, nil)
}

// NewBuilder creates a Builder with default windows and reference-bar
// settings.
func NewBuilder() *Builder {
	return &Builder{
		Thresholds:       DefaultThresholds,
		Horizons:         DefaultHorizons(),
		OpenBarOffsetMin: openref.DefaultOffsetMinutes,
		OpenBarMaxSkip:   openref.DefaultMaxSkip,
		PriceTick:        openref.DefaultPriceTickFallback,
	}
}

// Build computes aggregate rows for every complete session. Bars must be
// sorted ascending by timestamp and deduplicated (the ingest layer
// guarantees both). Sessions with no Phase-1 bars for a threshold are
// skipped for that threshold; empty Phase-2 windows produce NaN/nil
// Phase-2 fields. Input data is only read, never mutated.
func (b *Builder) Build(bars []*domain.PriceBar, sessions []*domain.MarketSession) []*domain.AggregateRecord {
	thresholds := b.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	horizons := b.Horizons
	if len(horizons) == 0 {
		horizons = DefaultHorizons()
	}

	var records []*domain.AggregateRecord

	for _, session := range sessions {
		if !session.Complete() {
			continue
		}

		// Entries come from the one-minute window ending at close:
		// worst fill per side (max high for long, min low for short).
		closeBars := barsClosed(bars, session.CloseTime.Add(-time.Minute), session.CloseTime)
		if len(closeBars) == 0 {
			continue
		}
		longEntry, shortEntry := entriesFromCloseBars(closeBars)

		sessionBars := barsHalfOpen(bars, session.OpenTime, session.NextCloseTime)
		if len(sessionBars) == 0 {
			continue
		}

		refBar, skipMinutes := openref.SelectReferenceBar(
			sessionBars, session.OpenTime, b.OpenBarOffsetMin, b.OpenBarMaxSkip, b.PriceTick)

		var refTime *time.Time
		if refBar != nil {
			t := refBar.Timestamp
			refTime = &t
		}

		actualSessionHours := session.Hours()

		for _, thresholdMin := range thresholds {
			thresholdTime := session.OpenTime.Add(time.Duration(thresholdMin) * time.Minute)

			phase1 := barsHalfOpen(sessionBars, session.OpenTime, thresholdTime)
			if len(phase1) == 0 {
				continue
			}
			phase1High, phase1Low := highLow(phase1)

			for _, horizon := range horizons {
				judgmentEnd := session.NextCloseTime
				label := domain.JudgmentLabelClose
				hoursActual := actualSessionHours

				if horizon != nil {
					specified := session.OpenTime.Add(time.Duration(*horizon * float64(time.Hour)))
					if specified.Before(judgmentEnd) {
						judgmentEnd = specified
					}
					label = HorizonLabel(horizon)
					hoursActual = judgmentEnd.Sub(session.OpenTime).Hours()
				}

				phase2 := barsHalfOpen(sessionBars, thresholdTime, judgmentEnd)
				stats := phase2Stats(phase2, longEntry)

				records = append(records, &domain.AggregateRecord{
					Symbol:      session.Symbol,
					Date:        session.OpenTime.Format("2006-01-02"),
					SessionType: session.SessionType,

					CloseTime:     session.CloseTime,
					OpenTime:      session.OpenTime,
					NextCloseTime: session.NextCloseTime,

					ThresholdMin:        thresholdMin,
					ThresholdTime:       thresholdTime,
					JudgmentHours:       horizon,
					JudgmentLabel:       label,
					JudgmentHoursActual: hoursActual,
					JudgmentEndTime:     judgmentEnd,

					LongEntry:  longEntry,
					ShortEntry: shortEntry,

					Phase1High: phase1High,
					Phase1Low:  phase1Low,

					Phase2High:            stats.high,
					Phase2Low:             stats.low,
					Phase2BreachLongTime:  stats.breachLongTime,
					Phase2BreachLongMin:   stats.breachLongMin,
					Phase2BreachShortTime: stats.breachShortTime,
					Phase2BreachShortMax:  stats.breachShortMax,

					SkipMinutes:       skipMinutes,
					ReferenceOpenTime: refTime,
				})
			}
		}
	}

	return records
}

// HorizonLabel formats a judgment horizon for record labeling and store
// keys: "3h", "1.5h", or "close" for nil.
func HorizonLabel(horizon *float64) string {
	if horizon == nil {
		return domain.JudgmentLabelClose
	}
	return strconv.FormatFloat(*horizon, 'f', -1, 64) + "h"
}

// phase2Fields holds Phase-2 summary statistics.
type phase2Fields struct {
	high           float64
	low            float64
	breachLongTime *time.Time
	breachLongMin  float64
	// Short-side breach tracking, reserved for short judgment.
	breachShortTime *time.Time
	breachShortMax  float64
}

// phase2Stats summarizes the Phase-2 window. An empty window yields NaN
// statistics rather than an error.
func phase2Stats(bars []*domain.PriceBar, longEntry float64) phase2Fields {
	stats := phase2Fields{
		high:           math.NaN(),
		low:            math.NaN(),
		breachLongMin:  math.NaN(),
		breachShortMax: math.NaN(),
	}
	if len(bars) == 0 {
		return stats
	}

	stats.high, stats.low = highLow(bars)

	for _, bar := range bars {
		if bar.Low < longEntry {
			t := bar.Timestamp
			stats.breachLongTime = &t
			stats.breachLongMin = t.Sub(bars[0].Timestamp).Minutes()
			break
		}
	}

	return stats
}

// entriesFromCloseBars derives conservative entries over the closing
// window.
func entriesFromCloseBars(bars []*domain.PriceBar) (longEntry, shortEntry float64) {
	longEntry = bars[0].High
	shortEntry = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > longEntry {
			longEntry = b.High
		}
		if b.Low < shortEntry {
			shortEntry = b.Low
		}
	}
	return longEntry, shortEntry
}

// highLow returns max high and min low over a non-empty bar slice.
func highLow(bars []*domain.PriceBar) (high, low float64) {
	high = bars[0].High
	low = bars[0].Low
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low
}

// barsHalfOpen returns the bars with timestamps in [from, to).
func barsHalfOpen(bars []*domain.PriceBar, from, to time.Time) []*domain.PriceBar {
	lo := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(to)
	})
	return bars[lo:hi]
}

// barsClosed returns the bars with timestamps in [from, to].
func barsClosed(bars []*domain.PriceBar, from, to time.Time) []*domain.PriceBar {
	lo := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(bars), func(i int) bool {
		return bars[i].Timestamp.After(to)
	})
	return bars[lo:hi]
}
