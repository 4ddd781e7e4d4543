package comp

import (
	"fmt"
	"math"
)

// weightSumTolerance bounds how far the three scoring weights may drift
// from an exact sum of 1.0 before the config is rejected.
const weightSumTolerance = 1e-6

// Config holds the tunable comping parameters. Config values are plain
// data; New validates one and the engine keeps a private copy, so invalid
// weights are rejected at construction and later mutation of the caller's
// value never reaches a running engine. Weights are never silently
// normalized or clamped.
type Config struct {
	// SegmentSizeBeats is the selection granularity in beats.
	SegmentSizeBeats float64
	// CrossfadeDurationMs is the total width of the equal-power crossfade
	// window at each take transition.
	CrossfadeDurationMs float64
	// ClippingThresholdDb is the full-scale level above which upstream
	// analysis flags clipping. The engine itself never reads it; it is
	// carried here so one value configures the whole pipeline.
	ClippingThresholdDb float64

	// TimingWeight, QualityWeight and ClippingWeight blend the three
	// sub-scores into a total. They must sum to 1.0 within
	// weightSumTolerance and must not be negative.
	TimingWeight   float64
	QualityWeight  float64
	ClippingWeight float64
}

// DefaultConfig returns the standard comping parameters.
func DefaultConfig() Config {
	return Config{
		SegmentSizeBeats:    4,
		CrossfadeDurationMs: 20,
		ClippingThresholdDb: -0.5,
		TimingWeight:        0.4,
		QualityWeight:       0.4,
		ClippingWeight:      0.2,
	}
}

// Validate reports the first problem with the config, or nil.
func (c Config) Validate() error {
	if c.SegmentSizeBeats <= 0 {
		return fmt.Errorf("%w: segment size must be > 0 beats, got %g", ErrInvalidConfig, c.SegmentSizeBeats)
	}
	if c.CrossfadeDurationMs < 0 {
		return fmt.Errorf("%w: crossfade duration must be >= 0 ms, got %g", ErrInvalidConfig, c.CrossfadeDurationMs)
	}
	if c.TimingWeight < 0 || c.QualityWeight < 0 || c.ClippingWeight < 0 {
		return fmt.Errorf("%w: weights must be >= 0, got timing=%g quality=%g clipping=%g",
			ErrInvalidConfig, c.TimingWeight, c.QualityWeight, c.ClippingWeight)
	}
	sum := c.TimingWeight + c.QualityWeight + c.ClippingWeight
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.9f", ErrInvalidConfig, sum)
	}
	return nil
}
