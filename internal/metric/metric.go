// Package metric derives display values and progress ratios from raw readings.
package metric

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/flexifi/poolwatch/internal/model"
)

// DecodePolicy decides what happens to readings that are null or not numeric.
type DecodePolicy string

const (
	// CoerceZero degrades undecodable readings to a zero metric.
	CoerceZero DecodePolicy = "coerce_zero"
	// Reject surfaces undecodable readings as a DecodeFailure.
	Reject DecodePolicy = "reject"
)

// DefaultMaxValue is the ratio normalization ceiling used when none is configured.
const DefaultMaxValue = 100

// Config controls how a raw reading becomes a DerivedMetric.
type Config struct {
	MaxValue     float64      // value that maps to a 100% ratio
	Decimals     int32        // token decimals; raw is scaled by 10^-Decimals
	DecodePolicy DecodePolicy // empty means CoerceZero
}

// DefaultConfig returns the configuration matching the fundraising bar.
func DefaultConfig() Config {
	return Config{
		MaxValue:     DefaultMaxValue,
		DecodePolicy: CoerceZero,
	}
}

// Validate reports configuration errors wrapped in model.ErrInvalidConfig.
func (c Config) Validate() error {
	if math.IsNaN(c.MaxValue) || math.IsInf(c.MaxValue, 0) || c.MaxValue <= 0 {
		return fmt.Errorf("%w: max_value must be > 0, got %v", model.ErrInvalidConfig, c.MaxValue)
	}
	if c.Decimals < 0 {
		return fmt.Errorf("%w: decimals must be >= 0, got %d", model.ErrInvalidConfig, c.Decimals)
	}
	switch c.DecodePolicy {
	case "", CoerceZero, Reject:
	default:
		return fmt.Errorf("%w: unknown decode_policy %q", model.ErrInvalidConfig, c.DecodePolicy)
	}
	return nil
}

// DeriveMetric converts raw into a DerivedMetric. It is pure: null or
// non-numeric readings map to the zero metric regardless of policy.
// cfg.MaxValue must be > 0.
func DeriveMetric(raw model.RawReading, cfg Config) model.DerivedMetric {
	if raw.IsNull() {
		return model.DerivedMetric{}
	}

	value := decimal.NewFromBigInt(raw.Int, -cfg.Decimals).InexactFloat64()
	return model.DerivedMetric{
		Value: value,
		Ratio: Ratio(value, cfg.MaxValue),
	}
}

// Derive is the policy-aware form of DeriveMetric. Under Reject, a null
// reading returns an error wrapping model.ErrDecode.
func Derive(raw model.RawReading, cfg Config) (model.DerivedMetric, error) {
	if raw.IsNull() && cfg.DecodePolicy == Reject {
		return model.DerivedMetric{}, fmt.Errorf("%w: %q", model.ErrDecode, raw.Text)
	}
	return DeriveMetric(raw, cfg), nil
}

// Ratio clamps value to [0, max] and returns it as a percentage of max.
func Ratio(value, max float64) float64 {
	switch {
	case max <= 0 || math.IsNaN(value) || value <= 0:
		return 0
	case value >= max:
		return 100
	}
	return math.Min(100*value/max, 100)
}
