package textgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Sampler draws vocabulary indices from predicted distributions using
// temperature-scaled categorical sampling. It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// SamplerOption configures a Sampler at construction.
type SamplerOption func(*Sampler)

// WithSource sets the random source behind the sampler's draws. The default
// is a PCG source seeded from the global generator; tests pass a fixed-seed
// source to make draws reproducible.
func WithSource(src rand.Source) SamplerOption {
	return func(s *Sampler) { s.rng = rand.New(src) }
}

// NewSampler creates a Sampler.
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Sample draws one vocabulary index from dist at the given temperature.
//
// Every probability is rescaled as exp(ln(p[i]) / T) and a single draw is
// made from the renormalized weights. T = 1 reproduces dist exactly, lower
// temperatures concentrate mass on the likeliest entries, and higher
// temperatures flatten toward uniform. Zero entries scale to zero weight at
// every temperature and are never drawn.
//
// A non-positive or non-finite temperature fails with ErrInvalidTemperature.
// Negative, NaN, or infinite entries fail with ErrInvalidDistribution. When
// scaling leaves no finite positive mass at all, so that a draw is
// impossible, Sample fails with ErrDegenerateDistribution.
func (s *Sampler) Sample(dist Distribution, temperature float64) (int, error) {
	if temperature <= 0 || math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidTemperature, temperature)
	}
	if len(dist) == 0 {
		return 0, fmt.Errorf("%w: distribution is empty", ErrInvalidDistribution)
	}
	if err := dist.Validate(); err != nil {
		return 0, err
	}

	weights := make([]float64, len(dist))
	for i, p := range dist {
		weights[i] = math.Exp(math.Log(p) / temperature)
	}

	total := floats.Sum(weights)
	if total == 0 || math.IsInf(total, 1) {
		return 0, fmt.Errorf("%w: weights sum to %v at temperature %v", ErrDegenerateDistribution, total, temperature)
	}

	s.mu.Lock()
	u := s.rng.Float64()
	s.mu.Unlock()

	draw := u * total
	last := -1
	for i, w := range weights {
		if w == 0 {
			continue
		}
		last = i
		draw -= w
		if draw < 0 {
			return i, nil
		}
	}
	// Rounding can leave a sliver of draw after the final weight.
	return last, nil
}
