package textgen

import (
	"fmt"
	"math"
)

// Distribution is a probability distribution over the vocabulary, one entry
// per vocabulary index. Entries must be non-negative and finite. The entries
// do not have to sum to exactly 1; the sampler renormalizes as part of
// temperature scaling.
type Distribution []float64

// NewDistribution copies values into a Distribution, failing with
// ErrInvalidDistribution if any entry is unusable as a probability.
func NewDistribution(values []float64) (Distribution, error) {
	d := make(Distribution, len(values))
	copy(d, values)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks every entry, failing with ErrInvalidDistribution on a
// negative, NaN, or infinite value.
func (d Distribution) Validate() error {
	for i, p := range d {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: entry %d is %v", ErrInvalidDistribution, i, p)
		}
	}
	return nil
}
