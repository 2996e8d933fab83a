package liquidation

import (
	"margin-liq-lab/internal/domain"
)

// TierUsage records which maintenance-margin tier a computation resolved
// to. Returned as a value alongside the distance so callers can explain
// the result without the model carrying mutable state.
type TierUsage struct {
	TierIndex       int      // 1-based position in the ordered tier list
	MinNotional     float64  // resolved tier lower bound
	MaxNotional     *float64 // resolved tier upper bound, nil = unbounded
	MMRate          float64  // configured rate of the tier
	EffectiveMMRate float64  // MMRate * safety multiplier
	Notional        float64  // notional the tier was resolved for
}

// TierMMModel computes liquidation distance from tiered maintenance
// margin rates:
//
//	distance = max(0, total_margin/notional - mm_rate*safety_multiplier)
//
// The clamp guarantees a tier misconfiguration never places the
// liquidation price on the wrong side of entry.
type TierMMModel struct {
	Tiers              []domain.MarginTier
	SafetyMultiplier   float64 // clamped to [0.5, 2.0]
	DefaultMMRate      float64
	LiquidationFeeRate float64

	priceTick float64
	epsilon   float64
}

// NewTierMMModel creates a TierMMModel from config. Tiers are ordered by
// MinNotional; an empty tier list degrades to a single unbounded tier at
// the default rate.
func NewTierMMModel(cfg Config) *TierMMModel {
	return &TierMMModel{
		Tiers:              tiersFromConfig(cfg),
		SafetyMultiplier:   sanitizeSafetyMultiplier(cfg.SafetyMultiplier),
		DefaultMMRate:      cfg.DefaultMMRate,
		LiquidationFeeRate: cfg.LiquidationFeeRate,
		priceTick:          cfg.PriceTick,
		epsilon:            cfg.PriceCompareEpsilon,
	}
}

// ID returns the model identifier.
func (m *TierMMModel) ID() string {
	return ModelTierMM
}

// inferNotional derives the position notional: entry*qty when both are
// known, else margin*leverage (via an implied quantity when entry is
// known, which cancels back to the same value).
func (m *TierMMModel) inferNotional(p Position) float64 {
	if p.Qty > 0 && p.EntryPrice > 0 {
		return p.EntryPrice * p.Qty
	}
	if p.EntryPrice > 0 {
		impliedQty := (p.PositionMargin * p.Leverage) / p.EntryPrice
		return p.EntryPrice * impliedQty
	}
	return p.PositionMargin * p.Leverage
}

// resolveTier finds the tier containing notional: lower bound inclusive,
// upper bound exclusive. Falls back to the last tier when nothing matches
// (a gap in the partition, which valid configs never have).
func (m *TierMMModel) resolveTier(notional float64) (domain.MarginTier, int) {
	for i := range m.Tiers {
		if m.Tiers[i].Contains(notional) {
			return m.Tiers[i], i + 1
		}
	}
	return m.Tiers[len(m.Tiers)-1], len(m.Tiers)
}

// DistanceDetail returns the fractional move from entry to liquidation
// together with the resolved tier metadata.
func (m *TierMMModel) DistanceDetail(p Position) (float64, TierUsage) {
	notional := m.inferNotional(p)
	tier, index := m.resolveTier(notional)

	effective := tier.MMRate * m.SafetyMultiplier
	usage := TierUsage{
		TierIndex:       index,
		MinNotional:     tier.MinNotional,
		MaxNotional:     tier.MaxNotional,
		MMRate:          tier.MMRate,
		EffectiveMMRate: effective,
		Notional:        notional,
	}

	if notional <= 0 {
		return 0, usage
	}

	distance := p.TotalMargin()/notional - effective
	if distance < 0 {
		distance = 0
	}
	return distance, usage
}

// DistancePct returns the fractional move from entry to liquidation.
func (m *TierMMModel) DistancePct(p Position) float64 {
	distance, _ := m.DistanceDetail(p)
	return distance
}

// LiqPriceLong returns the long liquidation price.
func (m *TierMMModel) LiqPriceLong(entryPrice float64, p Position) float64 {
	p.EntryPrice = entryPrice
	return normalizePrice(entryPrice*(1-m.DistancePct(p)), m.priceTick)
}

// LiqPriceShort returns the short liquidation price.
func (m *TierMMModel) LiqPriceShort(entryPrice float64, p Position) float64 {
	p.EntryPrice = entryPrice
	return normalizePrice(entryPrice*(1+m.DistancePct(p)), m.priceTick)
}

// IsLiquidatedLong reports whether a long at entryPrice is liquidated at
// currentPrice.
func (m *TierMMModel) IsLiquidatedLong(entryPrice, currentPrice float64, p Position) bool {
	return currentPrice <= m.LiqPriceLong(entryPrice, p)+m.epsilon
}

// IsLiquidatedShort is the short-side mirror of IsLiquidatedLong.
func (m *TierMMModel) IsLiquidatedShort(entryPrice, currentPrice float64, p Position) bool {
	return currentPrice >= m.LiqPriceShort(entryPrice, p)-m.epsilon
}

// MMRate returns the configured (pre-multiplier) rate for the position's
// notional.
func (m *TierMMModel) MMRate(p Position) float64 {
	tier, _ := m.resolveTier(m.inferNotional(p))
	return tier.MMRate
}

// Ensure TierMMModel implements Model
var _ Model = (*TierMMModel)(nil)
