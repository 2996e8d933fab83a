package liquidation

import "errors"

// Model type constants, as named in the exchange config.
const (
	ModelSimpleAF = "simple_af"
	ModelTierMM   = "tier_mm"
)

// ErrUnknownModelType is returned for an unrecognized liquidation_model
// string. This is a configuration error and must surface at startup.
var ErrUnknownModelType = errors.New("unknown liquidation model type")

// Position holds the margin inputs of a hypothetical position.
type Position struct {
	Leverage         float64
	PositionMargin   float64 // required margin, USD
	AdditionalMargin float64 // extra margin on top, USD
	EntryPrice       float64 // 0 = unknown (used for notional inference)
	Qty              float64 // 0 = unknown
}

// TotalMargin returns position plus additional margin.
func (p Position) TotalMargin() float64 {
	return p.PositionMargin + p.AdditionalMargin
}

// Model computes liquidation distances and prices for a leveraged
// position. Implementations are stateless and safe for concurrent use.
type Model interface {
	// DistancePct returns the fractional price move from entry to
	// liquidation, in [0, 1].
	DistancePct(p Position) float64

	// LiqPriceLong returns entry * (1 - distance), rounded to the price
	// tick when one is configured.
	LiqPriceLong(entryPrice float64, p Position) float64

	// LiqPriceShort returns entry * (1 + distance), tick-rounded.
	LiqPriceShort(entryPrice float64, p Position) float64

	// IsLiquidatedLong reports current <= liq price + epsilon.
	IsLiquidatedLong(entryPrice, currentPrice float64, p Position) bool

	// IsLiquidatedShort reports current >= liq price - epsilon.
	IsLiquidatedShort(entryPrice, currentPrice float64, p Position) bool

	// ID returns the model identifier for run labeling.
	ID() string
}

// FromConfig builds the Model named by cfg.Model.
// Returns ErrUnknownModelType for anything outside the closed set.
func FromConfig(cfg Config) (Model, error) {
	switch cfg.Model {
	case ModelSimpleAF:
		return NewSimpleAFModel(cfg), nil
	case ModelTierMM:
		return NewTierMMModel(cfg), nil
	default:
		return nil, ErrUnknownModelType
	}
}
