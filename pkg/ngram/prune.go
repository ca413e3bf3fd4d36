package ngram

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// PruneTransitions removes every transition of the model whose frequency is
// at or below minFreq, then deletes contexts left with no transitions at
// all. It returns the number of transitions removed.
func (s *Store) PruneTransitions(ctx context.Context, model ModelInfo, minFreq int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	res, err := tx.StmtContext(ctx, s.stmtPruneTransitions).ExecContext(ctx, model.Id, minFreq)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", model.Id, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not count pruned transitions: %w", err)
	}

	// Contexts without transitions are dead weight for lookups and exports.
	rows, err := tx.QueryContext(ctx, `
		SELECT context_id FROM ngram_contexts
		WHERE model_id = ? AND context_id NOT IN (
			SELECT context_id FROM ngram_transitions WHERE model_id = ?
		);`, model.Id, model.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to query orphaned contexts: %w", err)
	}

	var orphanIds []int
	for rows.Next() {
		var contextId int
		if err = rows.Scan(&contextId); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan orphaned context id: %w", err)
		}
		orphanIds = append(orphanIds, contextId)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("error after iterating orphaned context rows: %w", err)
	}

	if err = batchDelete(ctx, tx, "ngram_contexts", "context_id", intSliceToInterface(orphanIds)); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned contexts: %w", err)
	}

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int64("transitions_removed", removed),
		slog.Int("contexts_removed", len(orphanIds)),
	)

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

// batchDelete deletes rows by id in batches to stay under SQLite's bound
// variable limit. An empty id list is a no-op.
func batchDelete(ctx context.Context, tx *sql.Tx, table, column string, ids []interface{}) error {
	if len(ids) == 0 {
		return nil
	}

	// SQLite's default variable limit is 999, so around half that is good.
	const batchSize = 500

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s);", table, column, strings.Repeat(",?", len(batch)-1))

		if _, err := tx.ExecContext(ctx, query, batch...); err != nil {
			return err
		}
	}
	return nil
}

// intSliceToInterface converts a slice of ints to a slice of interfaces,
// for use as SQL query arguments.
func intSliceToInterface(s []int) []interface{} {
	if s == nil {
		return nil
	}
	i := make([]interface{}, len(s))
	for j, v := range s {
		i[j] = v
	}
	return i
}
