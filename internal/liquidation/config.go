package liquidation

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"margin-liq-lab/internal/domain"
)

// Default values used when the exchange config is missing or unreadable.
// Liquidation modeling must stay computable even in degraded mode.
const (
	DefaultAdjustmentFactor    = 0.10
	DefaultLiquidationFeeRate  = 0.0005
	DefaultPriceTick           = 0.0
	DefaultPriceCompareEpsilon = 1e-9
	DefaultMMRate              = 0.001
	DefaultSafetyMultiplier    = 1.0
)

// Safety multiplier clamp bounds.
const (
	minSafetyMultiplier = 0.5
	maxSafetyMultiplier = 2.0
)

// Config holds the exchange liquidation parameters loaded from YAML.
type Config struct {
	Model               string     `yaml:"liquidation_model"` // "simple_af" | "tier_mm"
	AdjustmentFactor    float64    `yaml:"adjustment_factor"`
	LiquidationFeeRate  float64    `yaml:"liquidation_fee_rate"`
	PriceTick           float64    `yaml:"price_tick"`
	PriceCompareEpsilon float64    `yaml:"price_compare_epsilon"`
	DefaultMMRate       float64    `yaml:"default_mm_rate"`
	SafetyMultiplier    *float64   `yaml:"safety_multiplier"`
	Tiers               []TierYAML `yaml:"tiers"`
}

// TierYAML is the YAML shape of one maintenance-margin tier.
type TierYAML struct {
	MinNotional float64  `yaml:"min_notional"`
	MaxNotional *float64 `yaml:"max_notional"` // null = unbounded
	MMRate      float64  `yaml:"mm_rate"`
}

// DefaultConfig returns the documented degraded-mode configuration:
// Tiered model with a single unbounded tier at DefaultMMRate.
func DefaultConfig() Config {
	safety := DefaultSafetyMultiplier
	return Config{
		Model:               ModelTierMM,
		AdjustmentFactor:    DefaultAdjustmentFactor,
		LiquidationFeeRate:  DefaultLiquidationFeeRate,
		PriceTick:           DefaultPriceTick,
		PriceCompareEpsilon: DefaultPriceCompareEpsilon,
		DefaultMMRate:       DefaultMMRate,
		SafetyMultiplier:    &safety,
		Tiers: []TierYAML{
			{MinNotional: 0, MaxNotional: nil, MMRate: DefaultMMRate},
		},
	}
}

// LoadConfig reads the exchange config file. A missing or unreadable file
// falls back to DefaultConfig with a logged warning instead of an error;
// the engine must remain runnable with degraded fidelity.
func LoadConfig(path string, logger *log.Logger) Config {
	if logger == nil {
		logger = log.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Printf("WARN: exchange config %s not readable (%v), using defaults (mm_rate=%.4f, af=%.2f)",
			path, err, DefaultMMRate, DefaultAdjustmentFactor)
		return DefaultConfig()
	}

	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Printf("WARN: exchange config %s not parseable (%v), using defaults", path, err)
		return DefaultConfig()
	}

	applyConfigDefaults(&cfg)
	return cfg
}

// applyConfigDefaults fills zero-valued optional fields.
func applyConfigDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = ModelTierMM
	}
	if cfg.AdjustmentFactor == 0 {
		cfg.AdjustmentFactor = DefaultAdjustmentFactor
	}
	if cfg.LiquidationFeeRate == 0 {
		cfg.LiquidationFeeRate = DefaultLiquidationFeeRate
	}
	if cfg.PriceCompareEpsilon == 0 {
		cfg.PriceCompareEpsilon = DefaultPriceCompareEpsilon
	}
	if cfg.DefaultMMRate == 0 {
		cfg.DefaultMMRate = DefaultMMRate
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = []TierYAML{{MinNotional: 0, MaxNotional: nil, MMRate: cfg.DefaultMMRate}}
	}
}

// sanitizeSafetyMultiplier clamps the multiplier to [0.5, 2.0];
// nil or non-positive values default to 1.0.
func sanitizeSafetyMultiplier(m *float64) float64 {
	if m == nil || *m <= 0 {
		return DefaultSafetyMultiplier
	}
	v := *m
	if v < minSafetyMultiplier {
		return minSafetyMultiplier
	}
	if v > maxSafetyMultiplier {
		return maxSafetyMultiplier
	}
	return v
}

// tiersFromConfig converts and orders the configured tiers by MinNotional.
func tiersFromConfig(cfg Config) []domain.MarginTier {
	tiers := make([]domain.MarginTier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers = append(tiers, domain.MarginTier{
			MinNotional: t.MinNotional,
			MaxNotional: t.MaxNotional,
			MMRate:      t.MMRate,
		})
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].MinNotional < tiers[j].MinNotional
	})
	if len(tiers) == 0 {
		tiers = []domain.MarginTier{{MinNotional: 0, MaxNotional: nil, MMRate: cfg.DefaultMMRate}}
	}
	return tiers
}

// normalizePrice rounds price to the nearest tick; no-op when tick <= 0.
func normalizePrice(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// String implements fmt.Stringer for log-friendly config dumps.
func (c Config) String() string {
	safety := DefaultSafetyMultiplier
	if c.SafetyMultiplier != nil {
		safety = *c.SafetyMultiplier
	}
	return fmt.Sprintf("model=%s af=%.4f tick=%.4f eps=%.2g tiers=%d safety=%.2f",
		c.Model, c.AdjustmentFactor, c.PriceTick, c.PriceCompareEpsilon, len(c.Tiers), safety)
}
