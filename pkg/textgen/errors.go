package textgen

import "errors"

// Sentinel errors for the deterministic validation failures of the pipeline.
// They are wrapped with call-site context; test for them with errors.Is.
var (
	// ErrUnknownChar reports a character outside a model's vocabulary.
	ErrUnknownChar = errors.New("character not in vocabulary")

	// ErrInvalidTemperature reports a sampling temperature that is zero,
	// negative, or not finite. Temperatures are validated, never clamped.
	ErrInvalidTemperature = errors.New("invalid sampling temperature")

	// ErrInvalidDistribution reports a probability distribution containing
	// negative, NaN, or infinite entries, or one sized differently from the
	// vocabulary.
	ErrInvalidDistribution = errors.New("invalid probability distribution")

	// ErrDegenerateDistribution reports a distribution whose weights all
	// collapsed to zero under temperature scaling, leaving nothing to draw.
	ErrDegenerateDistribution = errors.New("degenerate probability distribution")
)
