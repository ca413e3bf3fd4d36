package textgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Generator runs the sliding-window generation loop: encode the current
// window, ask the predictor for a distribution, sample one character, append
// it to the output, and slide the window forward by one character.
//
// A Generator is safe for concurrent runs once configured; the vocabulary
// and encoder are read-only and each run keeps its own window state.
type Generator struct {
	vocab     *Vocabulary
	encoder   *Encoder
	predictor Predictor
	sampler   *Sampler
	logger    *slog.Logger
}

// generateOptions is used by the generate functions to configure a run.
type generateOptions struct {
	temperature float64
	keepPartial bool
}

// GenerateOption is a function that configures generation parameters. It is
// used as a variadic argument to Generate and GenerateStream.
type GenerateOption func(*generateOptions)

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		temperature: 1.0,
		keepPartial: false,
	}
}

// WithTemperature sets the sampling temperature for the run.
// A value of 1.0 samples the predictor's distribution unchanged.
// Values below 1.0 sharpen the distribution toward the likeliest characters.
// Values above 1.0 flatten it toward uniform randomness.
// Zero and negative values fail the run with ErrInvalidTemperature; the
// temperature is never clamped.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithKeepPartial controls what Generate returns when a run fails part way
// through. By default the partial text is discarded and only the error is
// returned; with keep set, the text accumulated before the failure is
// returned alongside the error.
func WithKeepPartial(keep bool) GenerateOption {
	return func(o *generateOptions) { o.keepPartial = keep }
}

// NewGenerator wires a vocabulary and a predictor into a text generator with
// a default sampler. The predictor must return distributions sized to the
// vocabulary.
func NewGenerator(vocab *Vocabulary, predictor Predictor) *Generator {
	return &Generator{
		vocab:     vocab,
		encoder:   NewEncoder(vocab),
		predictor: predictor,
		sampler:   NewSampler(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Generator. By default, all logs are
// discarded. Call it before starting generation runs.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// SetSampler replaces the default sampler, usually with one built over a
// fixed-seed source. Call it before starting generation runs.
func (g *Generator) SetSampler(sampler *Sampler) {
	if sampler != nil {
		g.sampler = sampler
	}
}

// Generate produces n characters following seed and returns the seed with
// the generated text appended. The seed's character length is the window
// length and must match what the predictor was trained with; every seed
// character must be in the vocabulary. There are no retries: the first
// encoding, prediction, or sampling failure aborts the run.
func (g *Generator) Generate(ctx context.Context, seed string, n int, opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}

	window, err := g.checkSeed(seed, n)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(seed)

	fail := func(err error) (string, error) {
		if options.keepPartial {
			return builder.String(), err
		}
		return "", err
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		next, err := g.step(ctx, window, options.temperature)
		if err != nil {
			return fail(fmt.Errorf("generation step %d: %w", i, err))
		}
		builder.WriteRune(next)
		window = append(window[1:], next)
	}

	g.logger.DebugContext(ctx, "Generation complete",
		slog.Int("window_length", utf8.RuneCountInString(seed)),
		slog.Int("generated", n),
		slog.Float64("temperature", options.temperature),
	)

	return builder.String(), nil
}

// step runs one encode, predict, sample cycle and maps the drawn index back
// to a character.
func (g *Generator) step(ctx context.Context, window []rune, temperature float64) (rune, error) {
	encoded, err := g.encoder.EncodeWindow(string(window))
	if err != nil {
		return 0, fmt.Errorf("failed to encode window: %w", err)
	}

	dist, err := g.predictor.Predict(ctx, encoded)
	if err != nil {
		return 0, fmt.Errorf("prediction failed: %w", err)
	}
	if len(dist) != g.vocab.Size() {
		return 0, fmt.Errorf("%w: predictor returned %d entries for a vocabulary of %d", ErrInvalidDistribution, len(dist), g.vocab.Size())
	}

	choice, err := g.sampler.Sample(dist, temperature)
	if err != nil {
		return 0, fmt.Errorf("sampling failed: %w", err)
	}

	next, err := g.vocab.Rune(choice)
	if err != nil {
		return 0, fmt.Errorf("sampled index outside vocabulary: %w", err)
	}
	return next, nil
}

// checkSeed validates the seed and generation length shared by Generate and
// GenerateStream, returning the seed as the initial window.
func (g *Generator) checkSeed(seed string, n int) ([]rune, error) {
	if n < 0 {
		return nil, fmt.Errorf("generation length must be non-negative, got %d", n)
	}
	window := []rune(seed)
	if len(window) == 0 {
		return nil, fmt.Errorf("seed must not be empty")
	}
	for _, r := range window {
		if !g.vocab.Contains(r) {
			return nil, fmt.Errorf("seed character %q: %w", r, ErrUnknownChar)
		}
	}
	return window, nil
}
