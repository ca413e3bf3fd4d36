package textgen

import (
	"context"
	"fmt"
	"log/slog"
)

// StreamChar is one element of a generation stream: a single character, or a
// terminal error. After a StreamChar with Err set, the channel is closed
// without further sends.
type StreamChar struct {
	Char rune
	Err  error
}

// GenerateStream runs the same loop as Generate but delivers characters over
// a channel as they are drawn, seed characters first. The channel is closed
// once n characters have been generated, the context is cancelled, or a step
// fails; a failure arrives as a final StreamChar with Err set. Seed and
// length validation errors are returned immediately instead.
func (g *Generator) GenerateStream(ctx context.Context, seed string, n int, opts ...GenerateOption) (<-chan StreamChar, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}

	window, err := g.checkSeed(seed, n)
	if err != nil {
		return nil, err
	}

	charChan := make(chan StreamChar)

	go func() {
		defer close(charChan)

		for _, r := range seed {
			select {
			case <-ctx.Done():
				return
			case charChan <- StreamChar{Char: r}:
			}
		}

		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				g.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return
			default:
			}

			next, err := g.step(ctx, window, options.temperature)
			if err != nil {
				select {
				case <-ctx.Done():
				case charChan <- StreamChar{Err: fmt.Errorf("generation step %d: %w", i, err)}:
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case charChan <- StreamChar{Char: next}:
			}

			window = append(window[1:], next)
		}

		g.logger.DebugContext(ctx, "Generation stream complete",
			slog.Int("generated", n),
			slog.Float64("temperature", options.temperature),
		)
	}()

	return charChan, nil
}
