package textgen

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Encoder turns windows and characters into the one-hot tensors a predictor
// consumes. A window of length L over a vocabulary of size V encodes to an
// (L, V) matrix whose row t carries a single 1 at the vocabulary index of
// the window's t-th character; a predictor treating the matrix as a batch
// sees shape (1, L, V).
type Encoder struct {
	vocab *Vocabulary
}

// NewEncoder creates an Encoder over the given vocabulary.
func NewEncoder(vocab *Vocabulary) *Encoder {
	return &Encoder{vocab: vocab}
}

// Vocab returns the vocabulary the encoder was built over.
func (e *Encoder) Vocab() *Vocabulary {
	return e.vocab
}

// EncodeWindow one-hot encodes a window as an (L, V) matrix. Characters
// outside the vocabulary fail with ErrUnknownChar.
func (e *Encoder) EncodeWindow(window string) (*mat.Dense, error) {
	runes := []rune(window)
	if len(runes) == 0 {
		return nil, fmt.Errorf("cannot encode an empty window")
	}
	indices := make([]int, len(runes))
	for t, r := range runes {
		i, err := e.vocab.Index(r)
		if err != nil {
			return nil, fmt.Errorf("window position %d: %w", t, err)
		}
		indices[t] = i
	}
	enc := mat.NewDense(len(runes), e.vocab.Size(), nil)
	for t, i := range indices {
		enc.Set(t, i, 1)
	}
	return enc, nil
}

// EncodeTarget one-hot encodes a single character as a length-V label
// vector, with the same unknown-character rule as EncodeWindow.
func (e *Encoder) EncodeTarget(target rune) (*mat.VecDense, error) {
	i, err := e.vocab.Index(target)
	if err != nil {
		return nil, fmt.Errorf("target character: %w", err)
	}
	vec := mat.NewVecDense(e.vocab.Size(), nil)
	vec.SetVec(i, 1)
	return vec, nil
}

// DecodeWindow inverts EncodeWindow by mapping each row back to the
// character at its argmax. Encoding a window and decoding the result always
// returns the original window.
func (e *Encoder) DecodeWindow(enc *mat.Dense) (string, error) {
	rows, cols := enc.Dims()
	if cols != e.vocab.Size() {
		return "", fmt.Errorf("encoded window has %d columns, vocabulary size is %d", cols, e.vocab.Size())
	}
	if cols == 0 {
		return "", fmt.Errorf("cannot decode against an empty vocabulary")
	}
	var builder strings.Builder
	for t := 0; t < rows; t++ {
		r, err := e.vocab.Rune(floats.MaxIdx(enc.RawRowView(t)))
		if err != nil {
			return "", err
		}
		builder.WriteRune(r)
	}
	return builder.String(), nil
}

// EncodeDataset slides a window of the given length and step across the
// corpus and encodes every pair, returning the (L, V) inputs and length-V
// targets in corpus order. It is the bulk form of EncodeWindow plus
// EncodeTarget for callers training an external model.
func (e *Encoder) EncodeDataset(c *Corpus, length, step int) ([]*mat.Dense, []*mat.VecDense, error) {
	it, err := NewWindowIter(c, length, step)
	if err != nil {
		return nil, nil, err
	}
	inputs := make([]*mat.Dense, 0, it.Count())
	targets := make([]*mat.VecDense, 0, it.Count())
	for {
		pair, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		input, err := e.EncodeWindow(pair.Window)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode window %q: %w", pair.Window, err)
		}
		target, err := e.EncodeTarget(pair.Next)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode target for window %q: %w", pair.Window, err)
		}
		inputs = append(inputs, input)
		targets = append(targets, target)
	}
	return inputs, targets, nil
}
