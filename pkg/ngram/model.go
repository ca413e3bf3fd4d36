package ngram

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/charloom/charloom/pkg/textgen"
)

// exportVersion is the envelope version written by ExportModel and accepted
// by ImportModel.
const exportVersion = 1

// ModelInfo holds the registry metadata of one model: its database id, its
// unique name, and the window length its contexts were trained with.
type ModelInfo struct {
	Id        int
	Name      string
	WindowLen int
}

// ExportedModel is the portable JSON representation of a trained model.
// Character indices are positions in Vocabulary, so they survive the
// transfer unchanged; context ids are only meaningful within one file and
// get remapped on import.
type ExportedModel struct {
	Version     int                  `json:"version"`
	Name        string               `json:"name"`
	WindowLen   int                  `json:"window_len"`
	Vocabulary  []string             `json:"vocabulary"`
	Contexts    map[string]int       `json:"contexts"`
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is one stored transition within an ExportedModel.
type ExportedTransition struct {
	ContextID int `json:"context_id"`
	NextIndex int `json:"next_index"`
	Frequency int `json:"frequency"`
}

// InsertModel registers a new model. The window length must be at least 1
// and the name must be unused.
func (s *Store) InsertModel(ctx context.Context, model ModelInfo) error {
	if model.WindowLen < 1 {
		return fmt.Errorf("window length must be at least 1, got %d", model.WindowLen)
	}
	if _, err := s.stmtAddModel.ExecContext(ctx, model.Name, model.WindowLen); err != nil {
		return fmt.Errorf("failed to insert model '%s': %w", model.Name, err)
	}
	return nil
}

// GetModelInfo retrieves the metadata of a single model by name, failing
// with ErrModelNotFound if it does not exist.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	var modelId, windowLen int
	err := s.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&modelId, &windowLen)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	if err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{Id: modelId, Name: modelName, WindowLen: windowLen}, nil
}

// GetModelInfos retrieves the metadata of every model, keyed by model name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.WindowLen); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// RemoveModel deletes a model and all of its vocabulary, context, and
// transition rows in one transaction.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, del := range []string{
		`DELETE FROM ngram_transitions WHERE model_id = ?;`,
		`DELETE FROM ngram_contexts WHERE model_id = ?;`,
		`DELETE FROM ngram_vocabulary WHERE model_id = ?;`,
		`DELETE FROM ngram_models WHERE model_id = ?;`,
	} {
		if _, err = tx.ExecContext(ctx, del, model.Id); err != nil {
			return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
		}
	}

	s.logger.InfoContext(ctx, "Model removed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// ExportModel serializes a model to indented JSON and writes it to w.
func (s *Store) ExportModel(ctx context.Context, model ModelInfo, w io.Writer) error {
	vocab, err := s.LoadVocabulary(ctx, model)
	if err != nil {
		return err
	}
	chars := make([]string, 0, vocab.Size())
	for _, r := range vocab.Runes() {
		chars = append(chars, string(r))
	}

	contexts := make(map[string]int)
	cRows, err := s.db.QueryContext(ctx, `SELECT context_id, context_key FROM ngram_contexts WHERE model_id = ?;`, model.Id)
	if err != nil {
		return fmt.Errorf("could not query contexts for export: %w", err)
	}
	for cRows.Next() {
		var contextId int
		var key string
		if err = cRows.Scan(&contextId, &key); err != nil {
			_ = cRows.Close()
			return err
		}
		contexts[key] = contextId
	}
	_ = cRows.Close()
	if err = cRows.Err(); err != nil {
		return err
	}

	var transitions []ExportedTransition
	tRows, err := s.db.QueryContext(ctx, `SELECT context_id, next_index, frequency FROM ngram_transitions WHERE model_id = ?;`, model.Id)
	if err != nil {
		return fmt.Errorf("could not query transitions for export: %w", err)
	}
	for tRows.Next() {
		var tr ExportedTransition
		if err = tRows.Scan(&tr.ContextID, &tr.NextIndex, &tr.Frequency); err != nil {
			_ = tRows.Close()
			return err
		}
		transitions = append(transitions, tr)
	}
	_ = tRows.Close()
	if err = tRows.Err(); err != nil {
		return err
	}

	exported := ExportedModel{
		Version:     exportVersion,
		Name:        model.Name,
		WindowLen:   model.WindowLen,
		Vocabulary:  chars,
		Contexts:    contexts,
		Transitions: transitions,
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("vocab_exported", len(chars)),
		slog.Int("contexts_exported", len(contexts)),
		slog.Int("transitions_exported", len(transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON model export from r and merges it into the
// database. An unknown model name creates a new model; a known one has the
// imported frequencies added to its own, which requires the window length
// and the vocabulary to match exactly.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) error {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode model json: %w", err)
	}
	if imported.Version != exportVersion {
		return fmt.Errorf("unsupported model export version %d", imported.Version)
	}
	if imported.WindowLen < 1 {
		return fmt.Errorf("invalid window length %d in model export", imported.WindowLen)
	}

	chars := make([]rune, 0, len(imported.Vocabulary))
	for i, text := range imported.Vocabulary {
		char, size := utf8.DecodeRuneInString(text)
		if size == 0 || size != len(text) {
			return fmt.Errorf("vocabulary entry %d (%q) is not a single character", i, text)
		}
		chars = append(chars, char)
	}
	if _, err := textgen.NewVocabulary(chars); err != nil {
		return fmt.Errorf("imported vocabulary is invalid: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelId int
	var existingWindowLen int
	err = tx.QueryRowContext(ctx, `SELECT model_id, window_len FROM ngram_models WHERE model_name = ?;`, imported.Name).
		Scan(&modelId, &existingWindowLen)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `INSERT INTO ngram_models (model_name, window_len) VALUES (?, ?);`, imported.Name, imported.WindowLen)
		if err != nil {
			return fmt.Errorf("failed to insert model '%s': %w", imported.Name, err)
		}
		newId, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read id of model '%s': %w", imported.Name, err)
		}
		modelId = int(newId)

		stmtInsertVocabChar := tx.StmtContext(ctx, s.stmtInsertVocabChar)
		for i, text := range imported.Vocabulary {
			if _, err = stmtInsertVocabChar.ExecContext(ctx, modelId, i, text); err != nil {
				return fmt.Errorf("failed to store vocabulary character %q: %w", text, err)
			}
		}
	case err != nil:
		return fmt.Errorf("failed to query for model '%s': %w", imported.Name, err)
	default:
		if existingWindowLen != imported.WindowLen {
			return fmt.Errorf("cannot merge into model '%s': window length %d does not match import's %d",
				imported.Name, existingWindowLen, imported.WindowLen)
		}
		if err = matchesStoredVocabulary(ctx, tx, modelId, imported.Vocabulary); err != nil {
			return fmt.Errorf("cannot merge into model '%s': %w", imported.Name, err)
		}
	}

	stmtGetOrInsertContext := tx.StmtContext(ctx, s.stmtGetOrInsertContext)
	contextIdMap := make(map[int]int, len(imported.Contexts))
	for key, oldId := range imported.Contexts {
		var newId int
		if err = stmtGetOrInsertContext.QueryRowContext(ctx, modelId, key).Scan(&newId); err != nil {
			return fmt.Errorf("failed to get or insert context '%s': %w", key, err)
		}
		contextIdMap[oldId] = newId
	}

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

	for _, tr := range imported.Transitions {
		newContextId, ok := contextIdMap[tr.ContextID]
		if !ok {
			return fmt.Errorf("import consistency error: context id %d not found in context map", tr.ContextID)
		}
		if tr.NextIndex < 0 || tr.NextIndex >= len(imported.Vocabulary) {
			return fmt.Errorf("import consistency error: next index %d outside the vocabulary", tr.NextIndex)
		}
		if tr.Frequency < 1 {
			return fmt.Errorf("import consistency error: transition frequency %d below 1", tr.Frequency)
		}
		if _, err = stmtUpsertTransition.ExecContext(ctx, modelId, newContextId, tr.NextIndex, tr.Frequency); err != nil {
			return fmt.Errorf("failed to upsert transition (%d -> %d): %w", newContextId, tr.NextIndex, err)
		}
	}

	s.logger.InfoContext(ctx, "Model imported",
		slog.String("model_name", imported.Name),
		slog.Int("target_model_id", modelId),
		slog.Int("contexts_merged", len(imported.Contexts)),
		slog.Int("transitions_merged", len(imported.Transitions)),
	)

	return tx.Commit()
}

// matchesStoredVocabulary verifies that the stored alphabet of a model is
// exactly the imported one, index for index. Merged frequencies refer to
// character indices, so any drift would silently corrupt the model.
func matchesStoredVocabulary(ctx context.Context, tx *sql.Tx, modelId int, vocabulary []string) error {
	rows, err := tx.QueryContext(ctx, `SELECT char_text FROM ngram_vocabulary WHERE model_id = ? ORDER BY char_index;`, modelId)
	if err != nil {
		return fmt.Errorf("could not query stored vocabulary: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var stored []string
	for rows.Next() {
		var text string
		if err = rows.Scan(&text); err != nil {
			return err
		}
		stored = append(stored, text)
	}
	if err = rows.Err(); err != nil {
		return err
	}

	if len(stored) != len(vocabulary) {
		return fmt.Errorf("stored vocabulary has %d characters, import has %d", len(stored), len(vocabulary))
	}
	for i := range stored {
		if stored[i] != vocabulary[i] {
			return fmt.Errorf("vocabulary mismatch at index %d: stored %q, import %q", i, stored[i], vocabulary[i])
		}
	}
	return nil
}
