package ngram

import (
	"context"
)

// ModelStats holds the aggregated counters of a single model.
type ModelStats struct {
	VocabSize      int // Distinct characters in the model's alphabet
	Contexts       int // Distinct stored contexts
	Transitions    int // Distinct (context, next character) pairs
	TotalFrequency int // Sum of all transition frequencies
}

// StoreStats is a snapshot of every model in the database and its counters.
type StoreStats struct {
	Models []ModelInfo
	Stats  map[int]ModelStats // Keyed by model id
}

// GetModelStats returns the counters of one model. A registered but
// untrained model reports all zeroes.
func (s *Store) GetModelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var stats ModelStats
	if err := s.stmtVocabCount.QueryRowContext(ctx, model.Id).Scan(&stats.VocabSize); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelContexts.QueryRowContext(ctx, model.Id).Scan(&stats.Contexts); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelTransitions.QueryRowContext(ctx, model.Id).Scan(&stats.Transitions); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&stats.TotalFrequency); err != nil {
		return ModelStats{}, err
	}
	return stats, nil
}

// GetStoreStats returns a snapshot of the counters of every model.
func (s *Store) GetStoreStats(ctx context.Context) (*StoreStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	stats := make(map[int]ModelStats, len(modelInfos))
	for _, model := range modelInfos {
		models = append(models, model)
		modelStats, err := s.GetModelStats(ctx, model)
		if err != nil {
			return nil, err
		}
		stats[model.Id] = modelStats
	}

	return &StoreStats{Models: models, Stats: stats}, nil
}
