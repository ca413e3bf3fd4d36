package ngram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/charloom/charloom/pkg/textgen"
)

var (
	// ErrModelNotFound reports a model name with no registry entry.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelNotTrained reports a model that has no stored vocabulary or
	// contexts yet.
	ErrModelNotTrained = errors.New("model has not been trained")
)

// SetupSchema initializes the database tables used by this package. It is
// safe to call on every startup.
func SetupSchema(db *sql.DB) error {
	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS ngram_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    window_len INTEGER NOT NULL
);
`
		schemaVocabulary = `
CREATE TABLE IF NOT EXISTS ngram_vocabulary (
    model_id INTEGER NOT NULL,
    char_index INTEGER NOT NULL,
    char_text TEXT NOT NULL,
    PRIMARY KEY (model_id, char_index)
);
`
		schemaContexts = `
CREATE TABLE IF NOT EXISTS ngram_contexts (
    context_id INTEGER PRIMARY KEY,
    model_id INTEGER NOT NULL,
    context_key TEXT NOT NULL,
    UNIQUE (model_id, context_key)
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS ngram_transitions (
    model_id INTEGER NOT NULL,
    context_id INTEGER NOT NULL,
    next_index INTEGER NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, context_id, next_index)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, schema := range []string{schemaModels, schemaVocabulary, schemaContexts, schemaTransitions} {
		if _, err = tx.Exec(schema); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store persists n-gram models in a SQL database. It holds prepared
// statements for the hot query paths, so it must be closed when no longer
// needed. All methods are safe for concurrent use if the underlying
// database is.
type Store struct {
	db *sql.DB

	stmtGetModelInfo       *sql.Stmt
	stmtGetModels          *sql.Stmt
	stmtAddModel           *sql.Stmt
	stmtVocabChars         *sql.Stmt
	stmtVocabCount         *sql.Stmt
	stmtInsertVocabChar    *sql.Stmt
	stmtGetContext         *sql.Stmt
	stmtGetOrInsertContext *sql.Stmt
	stmtGetTransitions     *sql.Stmt
	stmtRandomContext      *sql.Stmt
	stmtPruneTransitions   *sql.Stmt
	stmtModelContexts      *sql.Stmt
	stmtModelTransitions   *sql.Stmt
	stmtModelFreq          *sql.Stmt

	logger *slog.Logger
}

// NewStore creates a Store on top of db, which must already contain the
// schema created by SetupSchema.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, window_len FROM ngram_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, window_len FROM ngram_models;`)
	if err != nil {
		return nil, err
	}

	stmtAddModel, err := db.Prepare(`INSERT INTO ngram_models (model_name, window_len) VALUES (?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtVocabChars, err := db.Prepare(`SELECT char_text FROM ngram_vocabulary WHERE model_id = ? ORDER BY char_index;`)
	if err != nil {
		return nil, err
	}

	stmtVocabCount, err := db.Prepare(`SELECT COUNT(*) FROM ngram_vocabulary WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInsertVocabChar, err := db.Prepare(`INSERT INTO ngram_vocabulary (model_id, char_index, char_text) VALUES (?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtGetContext, err := db.Prepare(`SELECT context_id FROM ngram_contexts WHERE model_id = ? AND context_key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetOrInsertContext, err := db.Prepare(`
		INSERT INTO ngram_contexts (model_id, context_key) VALUES (?, ?)
		ON CONFLICT(model_id, context_key) DO UPDATE SET context_key = excluded.context_key
		RETURNING context_id;
	`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`SELECT next_index, frequency FROM ngram_transitions WHERE model_id = ? AND context_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtRandomContext, err := db.Prepare(`SELECT context_key FROM ngram_contexts WHERE model_id = ? ORDER BY RANDOM() LIMIT 1;`)
	if err != nil {
		return nil, err
	}

	stmtPruneTransitions, err := db.Prepare(`DELETE FROM ngram_transitions WHERE model_id = ? AND frequency <= ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelContexts, err := db.Prepare(`SELECT COUNT(*) FROM ngram_contexts WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelTransitions, err := db.Prepare(`SELECT COUNT(*) FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelFreq, err := db.Prepare(`SELECT coalesce(SUM(frequency), 0) FROM ngram_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                     db,
		stmtGetModelInfo:       stmtGetModelInfo,
		stmtGetModels:          stmtGetModels,
		stmtAddModel:           stmtAddModel,
		stmtVocabChars:         stmtVocabChars,
		stmtVocabCount:         stmtVocabCount,
		stmtInsertVocabChar:    stmtInsertVocabChar,
		stmtGetContext:         stmtGetContext,
		stmtGetOrInsertContext: stmtGetOrInsertContext,
		stmtGetTransitions:     stmtGetTransitions,
		stmtRandomContext:      stmtRandomContext,
		stmtPruneTransitions:   stmtPruneTransitions,
		stmtModelContexts:      stmtModelContexts,
		stmtModelTransitions:   stmtModelTransitions,
		stmtModelFreq:          stmtModelFreq,
		logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger used by the Store. By default, logs are
// discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close releases the prepared statements held by the Store. It does not
// close the underlying database.
func (s *Store) Close() {
	stmts := []*sql.Stmt{
		s.stmtGetModelInfo,
		s.stmtGetModels,
		s.stmtAddModel,
		s.stmtVocabChars,
		s.stmtVocabCount,
		s.stmtInsertVocabChar,
		s.stmtGetContext,
		s.stmtGetOrInsertContext,
		s.stmtGetTransitions,
		s.stmtRandomContext,
		s.stmtPruneTransitions,
		s.stmtModelContexts,
		s.stmtModelTransitions,
		s.stmtModelFreq,
	}
	for _, stmt := range stmts {
		_ = stmt.Close()
	}
}

// LoadVocabulary reconstructs a model's sorted alphabet from storage. It
// fails with ErrModelNotTrained if the model has no stored vocabulary yet.
func (s *Store) LoadVocabulary(ctx context.Context, model ModelInfo) (*textgen.Vocabulary, error) {
	rows, err := s.stmtVocabChars.QueryContext(ctx, model.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query vocabulary for model %d: %w", model.Id, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var chars []rune
	for rows.Next() {
		var text string
		if err = rows.Scan(&text); err != nil {
			return nil, err
		}
		r, size := utf8.DecodeRuneInString(text)
		if size == 0 || size != len(text) {
			return nil, fmt.Errorf("vocabulary entry %q of model %d is not a single character", text, model.Id)
		}
		chars = append(chars, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModelNotTrained, model.Name)
	}

	vocab, err := textgen.NewVocabulary(chars)
	if err != nil {
		return nil, fmt.Errorf("stored vocabulary of model %d is corrupt: %w", model.Id, err)
	}
	return vocab, nil
}
