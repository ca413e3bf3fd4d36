package showcase

import "math"

// ShowcaseConfig holds the limits and defaults of the showcase engine.
type ShowcaseConfig struct {
	// DefaultModel is the model name templates use when they do not pick
	// one themselves.
	DefaultModel string

	// DefaultTemperature replaces non-positive temperatures passed by
	// templates.
	DefaultTemperature float64

	// MaxTemperature caps the sampling temperature template functions may
	// request.
	MaxTemperature float64

	// MaxSampleLength caps the character count of a single sample.
	MaxSampleLength int

	// MaxSheetRows caps the number of rows a sample sheet renders.
	MaxSheetRows int
}

// DefaultConfig returns a ShowcaseConfig with safe default limits.
func DefaultConfig() ShowcaseConfig {
	return ShowcaseConfig{
		DefaultModel:       "",
		DefaultTemperature: 1.0,
		MaxTemperature:     4.0,
		MaxSampleLength:    2000,
		MaxSheetRows:       24,
	}
}

// clampLength bounds a requested sample length to [0, MaxSampleLength].
func (c ShowcaseConfig) clampLength(length int) int {
	if length < 0 {
		return 0
	}
	if length > c.MaxSampleLength {
		return c.MaxSampleLength
	}
	return length
}

// clampTemperature bounds a requested temperature to (0, MaxTemperature],
// substituting the default for values no sampler accepts.
func (c ShowcaseConfig) clampTemperature(temperature float64) float64 {
	if temperature <= 0 || math.IsNaN(temperature) {
		return c.DefaultTemperature
	}
	if temperature > c.MaxTemperature {
		return c.MaxTemperature
	}
	return temperature
}
