package textgen

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func newTestSampler() *Sampler {
	return NewSampler(WithSource(rand.NewPCG(7, 13)))
}

// drawCounts samples n times and tallies the drawn indices.
func drawCounts(t *testing.T, s *Sampler, dist Distribution, temperature float64, n int) []int {
	t.Helper()
	counts := make([]int, len(dist))
	for i := 0; i < n; i++ {
		idx, err := s.Sample(dist, temperature)
		if err != nil {
			t.Fatalf("Sample failed on draw %d: %v", i, err)
		}
		counts[idx]++
	}
	return counts
}

func TestSampleTemperatureOne(t *testing.T) {
	// At temperature 1 the empirical frequencies must track the input
	// distribution within five percentage points per category.
	dist := Distribution{0.2, 0.3, 0.5}
	const draws = 10000

	counts := drawCounts(t, newTestSampler(), dist, 1.0, draws)
	for i, p := range dist {
		got := float64(counts[i]) / draws
		if math.Abs(got-p) > 0.05 {
			t.Errorf("category %d frequency = %.3f, want %.3f within 0.05", i, got, p)
		}
	}
}

func TestSampleLowTemperatureArgmax(t *testing.T) {
	// Close to zero temperature the draw converges to the argmax.
	dist := Distribution{0.1, 0.6, 0.3}
	const draws = 10000

	counts := drawCounts(t, newTestSampler(), dist, 0.02, draws)
	if counts[1] != draws {
		t.Errorf("argmax drawn %d times out of %d at temperature 0.02", counts[1], draws)
	}
}

func TestSampleHighTemperatureFlattens(t *testing.T) {
	// At temperature 2 the weights become the square roots of the inputs:
	// [0.81, 0.09] renormalizes to [0.75, 0.25].
	dist := Distribution{0.81, 0.09}
	const draws = 10000

	counts := drawCounts(t, newTestSampler(), dist, 2.0, draws)
	got := float64(counts[0]) / draws
	if math.Abs(got-0.75) > 0.05 {
		t.Errorf("category 0 frequency = %.3f, want 0.75 within 0.05", got)
	}
}

func TestSampleZeroProbabilityNeverDrawn(t *testing.T) {
	dist := Distribution{0.5, 0, 0.5}
	const draws = 10000

	counts := drawCounts(t, newTestSampler(), dist, 1.0, draws)
	if counts[1] != 0 {
		t.Errorf("zero probability category drawn %d times", counts[1])
	}
}

func TestSampleSingleCategory(t *testing.T) {
	s := newTestSampler()
	for i := 0; i < 100; i++ {
		idx, err := s.Sample(Distribution{1}, 1.0)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if idx != 0 {
			t.Fatalf("Sample = %d, want 0", idx)
		}
	}
}

func TestSampleInvalidTemperature(t *testing.T) {
	testCases := []struct {
		name        string
		temperature float64
	}{
		{name: "Zero", temperature: 0},
		{name: "Negative", temperature: -1},
		{name: "NaN", temperature: math.NaN()},
		{name: "Positive infinity", temperature: math.Inf(1)},
	}

	s := newTestSampler()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Sample(Distribution{0.5, 0.5}, tc.temperature); !errors.Is(err, ErrInvalidTemperature) {
				t.Errorf("Sample = %v, want ErrInvalidTemperature", err)
			}
		})
	}
}

func TestSampleInvalidDistribution(t *testing.T) {
	s := newTestSampler()

	if _, err := s.Sample(Distribution{0.5, -0.1, 0.6}, 1.0); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("negative entry: Sample = %v, want ErrInvalidDistribution", err)
	}
	if _, err := s.Sample(Distribution{0.5, math.NaN()}, 1.0); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("NaN entry: Sample = %v, want ErrInvalidDistribution", err)
	}
	if _, err := s.Sample(Distribution{}, 1.0); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("empty distribution: Sample = %v, want ErrInvalidDistribution", err)
	}
}

func TestSampleDegenerateDistribution(t *testing.T) {
	testCases := []struct {
		name        string
		dist        Distribution
		temperature float64
	}{
		{name: "All zero", dist: Distribution{0, 0, 0}, temperature: 1.0},
		{name: "Underflow at low temperature", dist: Distribution{1e-300, 1e-300}, temperature: 0.5},
		{name: "Overflow to infinity", dist: Distribution{1e308, 1}, temperature: 0.5},
	}

	s := newTestSampler()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Sample(tc.dist, tc.temperature); !errors.Is(err, ErrDegenerateDistribution) {
				t.Errorf("Sample = %v, want ErrDegenerateDistribution", err)
			}
		})
	}
}

func BenchmarkSample(b *testing.B) {
	dist := make(Distribution, 64)
	for i := range dist {
		dist[i] = 1.0 / float64(len(dist))
	}
	s := NewSampler(WithSource(rand.NewPCG(1, 2)))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Sample(dist, 0.8); err != nil {
			b.Fatalf("Sample failed: %v", err)
		}
	}
}
