package domain

import "time"

// PriceBar represents one minute of OHLC price history.
// Corresponds to price_bars table in ClickHouse.
type PriceBar struct {
	Symbol    string    // instrument identifier (e.g. "XAUUSD")
	Timestamp time.Time // minute-aligned, timezone-aware
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// Range returns the high-low spread of the bar.
func (b *PriceBar) Range() float64 {
	return b.High - b.Low
}
