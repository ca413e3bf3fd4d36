package textgen

import (
	"errors"
	"fmt"
	"io"
)

// WindowPair is one training example: a fixed-length run of characters and
// the single character that immediately follows it in the corpus.
type WindowPair struct {
	Window string
	Next   rune
}

// WindowIter walks a corpus from the start and yields every (window, next
// character) pair for a fixed window length and step, in corpus order.
type WindowIter struct {
	corpus *Corpus
	length int
	step   int
	pos    int
}

// NewWindowIter prepares a sliding-window pass over a corpus. Both length
// and step must be at least 1. A corpus with length characters or fewer
// yields no pairs, which is not an error.
func NewWindowIter(c *Corpus, length, step int) (*WindowIter, error) {
	if length < 1 {
		return nil, fmt.Errorf("window length must be at least 1, got %d", length)
	}
	if step < 1 {
		return nil, fmt.Errorf("window step must be at least 1, got %d", step)
	}
	return &WindowIter{corpus: c, length: length, step: step}, nil
}

// Next returns the next pair, or io.EOF once the window would run past the
// last character of the corpus. The window always has a following character,
// so the final corpus position is never the start of a window.
func (it *WindowIter) Next() (WindowPair, error) {
	if it.pos+it.length >= it.corpus.Len() {
		return WindowPair{}, io.EOF
	}
	pair := WindowPair{
		Window: string(it.corpus.runes[it.pos : it.pos+it.length]),
		Next:   it.corpus.runes[it.pos+it.length],
	}
	it.pos += it.step
	return pair, nil
}

// Count returns the total number of pairs the iterator yields, regardless of
// how many have been consumed already.
func (it *WindowIter) Count() int {
	remaining := it.corpus.Len() - it.length
	if remaining <= 0 {
		return 0
	}
	return (remaining + it.step - 1) / it.step
}

// Windows collects every pair for the given corpus, window length, and step
// into a slice. Large corpora should stream through a WindowIter instead.
func Windows(c *Corpus, length, step int) ([]WindowPair, error) {
	it, err := NewWindowIter(c, length, step)
	if err != nil {
		return nil, err
	}
	pairs := make([]WindowPair, 0, it.Count())
	for {
		pair, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
