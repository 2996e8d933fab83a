package openref

import (
	"testing"
	"time"

	"margin-liq-lab/internal/domain"
)

var testOpen = time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)

// bar builds a minute bar at open+minutes with the given range around 5000.
func bar(minutes int, priceRange float64) *domain.PriceBar {
	return &domain.PriceBar{
		Symbol:    "XAUUSD",
		Timestamp: testOpen.Add(time.Duration(minutes) * time.Minute),
		Open:      5000,
		High:      5000 + priceRange,
		Low:       5000,
		Close:     5000,
	}
}

func TestSelectReferenceBar_FirstBarLive(t *testing.T) {
	bars := []*domain.PriceBar{bar(1, 0.5), bar(2, 0.5)}

	got, skip := SelectReferenceBar(bars, testOpen, 1, 3, 0.01)
	if got == nil || !got.Timestamp.Equal(bars[0].Timestamp) {
		t.Fatalf("got %+v, want bar at +1min", got)
	}
	if skip != 0 {
		t.Errorf("skip = %d, want 0", skip)
	}
}

func TestSelectReferenceBar_SkipsDegenerateBar(t *testing.T) {
	// Frozen bar at +1min, live bar at +2min.
	bars := []*domain.PriceBar{bar(1, 0), bar(2, 0.5)}

	got, skip := SelectReferenceBar(bars, testOpen, 1, 3, 0.01)
	if got == nil || !got.Timestamp.Equal(bars[1].Timestamp) {
		t.Fatalf("got %+v, want bar at +2min", got)
	}
	if skip != 1 {
		t.Errorf("skip = %d, want 1", skip)
	}
}

func TestSelectReferenceBar_AllDegenerate(t *testing.T) {
	// Every candidate frozen; last examined bar comes back with its skip
	// count so callers can flag the stale feed.
	bars := []*domain.PriceBar{bar(1, 0), bar(2, 0), bar(3, 0)}

	got, skip := SelectReferenceBar(bars, testOpen, 1, 2, 0.01)
	if got == nil || !got.Timestamp.Equal(bars[2].Timestamp) {
		t.Fatalf("got %+v, want last examined bar at +3min", got)
	}
	if skip != 2 {
		t.Errorf("skip = %d, want 2", skip)
	}
}

func TestSelectReferenceBar_GapInSlots(t *testing.T) {
	// No bar at +2min; the scan moves on to +3min.
	bars := []*domain.PriceBar{bar(1, 0), bar(3, 0.5)}

	got, skip := SelectReferenceBar(bars, testOpen, 1, 3, 0.01)
	if got == nil || !got.Timestamp.Equal(bars[1].Timestamp) {
		t.Fatalf("got %+v, want bar at +3min", got)
	}
	if skip != 2 {
		t.Errorf("skip = %d, want 2", skip)
	}
}

func TestSelectReferenceBar_NoBars(t *testing.T) {
	got, skip := SelectReferenceBar(nil, testOpen, 1, 3, 0.01)
	if got != nil || skip != 0 {
		t.Errorf("got (%+v, %d), want (nil, 0)", got, skip)
	}
}

func TestSelectReferenceBar_BoundaryRange(t *testing.T) {
	// Range exactly at the tick counts as live.
	bars := []*domain.PriceBar{bar(1, 0.01)}

	got, skip := SelectReferenceBar(bars, testOpen, 1, 3, 0.01)
	if got == nil || skip != 0 {
		t.Fatalf("got (%+v, %d), want bar at +1min with skip 0", got, skip)
	}
}

func TestResolvePriceTick(t *testing.T) {
	if got := ResolvePriceTick(0.5, 0.01); got != 0.5 {
		t.Errorf("ResolvePriceTick(0.5) = %v", got)
	}
	if got := ResolvePriceTick(0, 0.01); got != 0.01 {
		t.Errorf("ResolvePriceTick(0) = %v, want fallback", got)
	}
	if got := ResolvePriceTick(-1, 0.01); got != 0.01 {
		t.Errorf("ResolvePriceTick(-1) = %v, want fallback", got)
	}
}
