package ngram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/charloom/charloom/pkg/textgen"
)

// Transition is one observed continuation of a context: the vocabulary
// index of the following character and how often training saw it.
type Transition struct {
	NextIndex int
	Frequency int
}

// GetTransitions retrieves every stored continuation of a context key of
// the model, along with the sum of their frequencies. A context never seen
// in training returns a nil slice and a zero total, not an error.
func (s *Store) GetTransitions(ctx context.Context, model ModelInfo, key string) ([]Transition, int, error) {
	var contextId int
	err := s.stmtGetContext.QueryRowContext(ctx, model.Id, key).Scan(&contextId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("could not look up context '%s': %w", key, err)
	}

	rows, err := s.stmtGetTransitions.QueryContext(ctx, model.Id, contextId)
	if err != nil {
		return nil, 0, fmt.Errorf("could not query transitions for context %d: %w", contextId, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var transitions []Transition
	var totalFreq int
	for rows.Next() {
		var tr Transition
		if err = rows.Scan(&tr.NextIndex, &tr.Frequency); err != nil {
			return nil, 0, err
		}
		transitions = append(transitions, tr)
		totalFreq += tr.Frequency
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return transitions, totalFreq, nil
}

// RandomContext returns a uniformly random stored context of the model,
// decoded back to text. It serves as seed material for generation when the
// caller has none, and fails with ErrModelNotTrained when the model has no
// contexts.
func (s *Store) RandomContext(ctx context.Context, model ModelInfo, vocab *textgen.Vocabulary) (string, error) {
	var key string
	err := s.stmtRandomContext.QueryRowContext(ctx, model.Id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no stored contexts for %s", ErrModelNotTrained, model.Name)
	}
	if err != nil {
		return "", fmt.Errorf("could not pick a random context: %w", err)
	}

	var builder strings.Builder
	for _, part := range strings.Split(key, " ") {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return "", fmt.Errorf("malformed context key %q: %w", key, err)
		}
		r, err := vocab.Rune(idx)
		if err != nil {
			return "", fmt.Errorf("context key %q: %w", key, err)
		}
		builder.WriteRune(r)
	}
	return builder.String(), nil
}

// ModelPredictor adapts a stored model to the textgen.Predictor interface.
type ModelPredictor struct {
	store     *Store
	model     ModelInfo
	vocab     *textgen.Vocabulary
	encoder   *textgen.Encoder
	smoothing float64
}

// PredictorOption configures a ModelPredictor.
type PredictorOption func(*ModelPredictor)

// WithSmoothing adds alpha to every character's count before normalization
// (additive smoothing). With a positive alpha no character has probability
// zero, at the cost of flattening rarely seen contexts. Values at or below
// zero are ignored.
func WithSmoothing(alpha float64) PredictorOption {
	return func(p *ModelPredictor) {
		if alpha > 0 {
			p.smoothing = alpha
		}
	}
}

// Predictor returns a predictor backed by the model's stored transition
// counts. The vocabulary must be the model's own, as returned by
// LoadVocabulary.
func (s *Store) Predictor(model ModelInfo, vocab *textgen.Vocabulary, opts ...PredictorOption) *ModelPredictor {
	p := &ModelPredictor{
		store:   s,
		model:   model,
		vocab:   vocab,
		encoder: textgen.NewEncoder(vocab),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict decodes the encoded window, looks up the stored continuations of
// that context, and returns their normalized frequencies. Without
// smoothing, a context never seen in training yields a uniform distribution
// so generation keeps moving instead of dead-ending.
func (p *ModelPredictor) Predict(ctx context.Context, window *mat.Dense) (textgen.Distribution, error) {
	rows, cols := window.Dims()
	if cols != p.vocab.Size() {
		return nil, fmt.Errorf("window has %d columns, model vocabulary has %d characters", cols, p.vocab.Size())
	}
	if rows != p.model.WindowLen {
		return nil, fmt.Errorf("window has %d rows, model '%s' was trained with window length %d", rows, p.model.Name, p.model.WindowLen)
	}

	text, err := p.encoder.DecodeWindow(window)
	if err != nil {
		return nil, fmt.Errorf("failed to decode window: %w", err)
	}

	var keyBuf []byte
	first := true
	for _, r := range text {
		idx, err := p.vocab.Index(r)
		if err != nil {
			return nil, err
		}
		if !first {
			keyBuf = append(keyBuf, ' ')
		}
		keyBuf = strconv.AppendInt(keyBuf, int64(idx), 10)
		first = false
	}

	transitions, totalFreq, err := p.store.GetTransitions(ctx, p.model, string(keyBuf))
	if err != nil {
		return nil, err
	}

	dist := make(textgen.Distribution, p.vocab.Size())

	if len(transitions) == 0 && p.smoothing == 0 {
		uniform := 1.0 / float64(len(dist))
		for i := range dist {
			dist[i] = uniform
		}
		return dist, nil
	}

	total := float64(totalFreq) + p.smoothing*float64(len(dist))
	for i := range dist {
		dist[i] = p.smoothing / total
	}
	for _, tr := range transitions {
		if tr.NextIndex < 0 || tr.NextIndex >= len(dist) {
			return nil, fmt.Errorf("stored transition index %d is outside the vocabulary of model '%s'", tr.NextIndex, p.model.Name)
		}
		dist[tr.NextIndex] = (float64(tr.Frequency) + p.smoothing) / total
	}
	return dist, nil
}
