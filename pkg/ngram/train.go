package ngram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/charloom/charloom/pkg/textgen"
)

// Train slides a window of the model's length across the corpus and adds
// every observed transition to the model's stored counts. The first
// training run derives the model's vocabulary from the corpus and persists
// it; later runs accumulate and may not introduce characters outside the
// stored alphabet. A corpus too short to produce a single window is not an
// error.
func (s *Store) Train(ctx context.Context, model ModelInfo, corpus *textgen.Corpus) error {
	vocab, fresh, err := s.trainingVocabulary(ctx, model, corpus)
	if err != nil {
		return err
	}

	it, err := textgen.NewWindowIter(corpus, model.WindowLen, 1)
	if err != nil {
		return err
	}

	// Aggregate counts in memory first so each distinct (context, next)
	// pair is written once per run instead of once per occurrence.
	counts := make(map[string]map[int]int)
	var keyBuf []byte
	indices := make([]int, 0, model.WindowLen)
	var windows int64

	for {
		pair, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		indices = indices[:0]
		for _, r := range pair.Window {
			idx, err := vocab.Index(r)
			if err != nil {
				return fmt.Errorf("window %q: %w", pair.Window, err)
			}
			indices = append(indices, idx)
		}
		nextIdx, err := vocab.Index(pair.Next)
		if err != nil {
			return fmt.Errorf("character after window %q: %w", pair.Window, err)
		}

		keyBuf = keyBuf[:0]
		for j, idx := range indices {
			if j > 0 {
				keyBuf = append(keyBuf, ' ')
			}
			keyBuf = strconv.AppendInt(keyBuf, int64(idx), 10)
		}
		key := string(keyBuf)

		next, ok := counts[key]
		if !ok {
			next = make(map[int]int)
			counts[key] = next
		}
		next[nextIdx]++
		windows++
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if fresh {
		stmtInsertVocabChar := tx.StmtContext(ctx, s.stmtInsertVocabChar)
		for i, r := range vocab.Runes() {
			if _, err = stmtInsertVocabChar.ExecContext(ctx, model.Id, i, string(r)); err != nil {
				return fmt.Errorf("failed to store vocabulary character %q: %w", r, err)
			}
		}
	}

	stmtGetOrInsertContext := tx.StmtContext(ctx, s.stmtGetOrInsertContext)
	stmtUpsertTransition, err := tx.PrepareContext(ctx, `
		INSERT INTO ngram_transitions (model_id, context_id, next_index, frequency) VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id, context_id, next_index) DO UPDATE SET frequency = frequency + excluded.frequency;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition upsert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtUpsertTransition)

	for key, nexts := range counts {
		var contextId int
		if err = stmtGetOrInsertContext.QueryRowContext(ctx, model.Id, key).Scan(&contextId); err != nil {
			return fmt.Errorf("failed to get or insert context '%s': %w", key, err)
		}
		for nextIdx, freq := range nexts {
			if _, err = stmtUpsertTransition.ExecContext(ctx, model.Id, contextId, nextIdx, freq); err != nil {
				return fmt.Errorf("failed to upsert transition (%d -> %d): %w", contextId, nextIdx, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "Training completed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int64("windows_processed", windows),
		slog.Int("distinct_contexts", len(counts)),
		slog.Int("vocab_size", vocab.Size()),
	)

	return tx.Commit()
}

// trainingVocabulary returns the vocabulary a training run must use. The
// first run derives it from the corpus and reports fresh so Train persists
// it; afterwards the stored alphabet is authoritative, since existing
// transition rows refer to its index assignment.
func (s *Store) trainingVocabulary(ctx context.Context, model ModelInfo, corpus *textgen.Corpus) (*textgen.Vocabulary, bool, error) {
	stored, err := s.LoadVocabulary(ctx, model)
	if errors.Is(err, ErrModelNotTrained) {
		return textgen.BuildVocabulary(corpus), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	for _, r := range corpus.Runes() {
		if !stored.Contains(r) {
			return nil, false, fmt.Errorf("corpus character %q is outside the model's stored vocabulary: %w", r, textgen.ErrUnknownChar)
		}
	}
	return stored, false, nil
}
