// Package openref selects the bar to treat as "the open" of a session.
// Quote feeds around an open sometimes print frozen bars with a
// near-zero range; those are skipped, up to a bound, and the skip count
// is surfaced as a data-quality signal.
package openref

import (
	"time"

	"margin-liq-lab/internal/domain"
)

// Defaults for reference-bar selection.
const (
	DefaultOffsetMinutes     = 1
	DefaultMaxSkip           = 3
	DefaultPriceTickFallback = 0.01
)

// ResolvePriceTick normalizes a configured tick, substituting fallback
// for non-positive values.
func ResolvePriceTick(tick, fallback float64) float64 {
	if tick > 0 {
		return tick
	}
	return fallback
}

// SelectReferenceBar picks the open-reference bar from minute bars
// (sorted ascending by timestamp).
//
// Starting at openTime + offsetMin, it inspects up to maxSkip+1
// consecutive one-minute slots. The first bar whose range reaches
// priceTick is accepted with its skip count. If every candidate is
// degenerate, the last bar examined is returned together with the bars
// skipped; callers must treat a non-zero skip as a stale-feed signal.
// Returns (nil, 0) when no bars exist in the window at all.
func SelectReferenceBar(bars []*domain.PriceBar, openTime time.Time, offsetMin, maxSkip int, priceTick float64) (*domain.PriceBar, int) {
	if len(bars) == 0 {
		return nil, 0
	}
	if maxSkip < 0 {
		maxSkip = 0
	}
	tick := ResolvePriceTick(priceTick, DefaultPriceTickFallback)

	start := openTime.Add(time.Duration(offsetMin) * time.Minute)

	var lastBar *domain.PriceBar
	lastSkip := 0

	for skip := 0; skip <= maxSkip; skip++ {
		slot := start.Add(time.Duration(skip) * time.Minute)
		bar := firstBarInSlot(bars, slot)
		if bar == nil {
			continue
		}

		lastBar = bar
		lastSkip = skip

		if bar.Range() >= tick {
			return bar, skip
		}
	}

	return lastBar, lastSkip
}

// firstBarInSlot returns the first bar with timestamp in
// [slot, slot+1min), or nil.
func firstBarInSlot(bars []*domain.PriceBar, slot time.Time) *domain.PriceBar {
	end := slot.Add(time.Minute)
	for _, b := range bars {
		if b.Timestamp.Before(slot) {
			continue
		}
		if !b.Timestamp.Before(end) {
			return nil
		}
		return b
	}
	return nil
}
