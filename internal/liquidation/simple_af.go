package liquidation

// SimpleAFModel applies one constant adjustment-factor haircut regardless
// of position size:
//
//	distance = (total_margin / position_margin) * (1 - AF) / leverage
//
// A tiny AF change produces a proportionally tiny distance change; there
// is no tier boundary to jump across.
type SimpleAFModel struct {
	AdjustmentFactor   float64
	LiquidationFeeRate float64

	priceTick float64
	epsilon   float64
}

// NewSimpleAFModel creates a SimpleAFModel from config.
func NewSimpleAFModel(cfg Config) *SimpleAFModel {
	return &SimpleAFModel{
		AdjustmentFactor:   cfg.AdjustmentFactor,
		LiquidationFeeRate: cfg.LiquidationFeeRate,
		priceTick:          cfg.PriceTick,
		epsilon:            cfg.PriceCompareEpsilon,
	}
}

// ID returns the model identifier.
func (m *SimpleAFModel) ID() string {
	return ModelSimpleAF
}

// DistancePct returns the fractional move from entry to liquidation.
func (m *SimpleAFModel) DistancePct(p Position) float64 {
	if p.Leverage <= 0 || p.PositionMargin <= 0 {
		return 0
	}
	marginRatio := p.TotalMargin() / p.PositionMargin
	return marginRatio * (1 - m.AdjustmentFactor) / p.Leverage
}

// LiqPriceLong returns the long liquidation price.
func (m *SimpleAFModel) LiqPriceLong(entryPrice float64, p Position) float64 {
	return normalizePrice(entryPrice*(1-m.DistancePct(p)), m.priceTick)
}

// LiqPriceShort returns the short liquidation price.
func (m *SimpleAFModel) LiqPriceShort(entryPrice float64, p Position) float64 {
	return normalizePrice(entryPrice*(1+m.DistancePct(p)), m.priceTick)
}

// IsLiquidatedLong reports whether a long at entryPrice is liquidated at
// currentPrice. Epsilon absorbs floating-point noise at the boundary.
func (m *SimpleAFModel) IsLiquidatedLong(entryPrice, currentPrice float64, p Position) bool {
	return currentPrice <= m.LiqPriceLong(entryPrice, p)+m.epsilon
}

// IsLiquidatedShort is the short-side mirror of IsLiquidatedLong.
func (m *SimpleAFModel) IsLiquidatedShort(entryPrice, currentPrice float64, p Position) bool {
	return currentPrice >= m.LiqPriceShort(entryPrice, p)-m.epsilon
}

// Ensure SimpleAFModel implements Model
var _ Model = (*SimpleAFModel)(nil)
