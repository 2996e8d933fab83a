package domain

// MarginTier is one maintenance-margin bracket. Tiers are ordered by
// MinNotional and partition [0, inf): lower bound inclusive, upper bound
// exclusive, MaxNotional nil meaning unbounded.
type MarginTier struct {
	MinNotional float64
	MaxNotional *float64 // nil = unbounded
	MMRate      float64  // maintenance margin rate
}

// Contains reports whether notional falls inside the tier.
func (t *MarginTier) Contains(notional float64) bool {
	if notional < t.MinNotional {
		return false
	}
	return t.MaxNotional == nil || notional < *t.MaxNotional
}
