package showcase

import (
	"context"
	"sort"

	"github.com/charloom/charloom/pkg/ngram"
	"github.com/charloom/charloom/pkg/textgen"
)

// SheetRow is one line of a sample sheet: the temperature it was drawn at
// and the text that came out.
type SheetRow struct {
	Temperature float64
	Text        string
}

// sample generates length characters from a named model at the given
// temperature, seeded with a random stored context. Failures are logged and
// render as whatever text accumulated, usually empty, so one broken model
// does not take down a whole page.
func (m *Manager) sample(modelName string, length int, temperature float64) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[modelName]
	config := m.config
	m.mu.RUnlock()

	if !ok {
		m.logger.Error("sample: model not available", "model", modelName)
		return "", nil
	}

	ctx := context.Background()
	seed, err := m.store.RandomContext(ctx, entry.info, entry.vocab)
	if err != nil {
		m.logger.Error("sample: no seed context", "model", modelName, "error", err)
		return "", nil
	}

	out, err := entry.generator.Generate(ctx, seed, config.clampLength(length),
		textgen.WithTemperature(config.clampTemperature(temperature)),
		textgen.WithKeepPartial(true),
	)
	if err != nil {
		m.logger.Error("sample: generation failed", "model", modelName, "error", err)
	}
	return out, nil
}

// sampleSheet generates one row per temperature, the classic way to show
// how sampling diversity changes across a sweep. The row count is capped by
// MaxSheetRows.
func (m *Manager) sampleSheet(modelName string, length int, temperatures ...float64) ([]SheetRow, error) {
	m.mu.RLock()
	maxRows := m.config.MaxSheetRows
	m.mu.RUnlock()

	if len(temperatures) > maxRows {
		temperatures = temperatures[:maxRows]
	}

	rows := make([]SheetRow, 0, len(temperatures))
	for _, temperature := range temperatures {
		text, err := m.sample(modelName, length, temperature)
		if err != nil {
			return nil, err
		}
		rows = append(rows, SheetRow{Temperature: temperature, Text: text})
	}
	return rows, nil
}

// seedFor returns a random stored context of the model, or an empty string
// when it has none.
func (m *Manager) seedFor(modelName string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[modelName]
	m.mu.RUnlock()

	if !ok {
		return "", nil
	}
	seed, err := m.store.RandomContext(context.Background(), entry.info, entry.vocab)
	if err != nil {
		m.logger.Error("seedFor: no seed context", "model", modelName, "error", err)
		return "", nil
	}
	return seed, nil
}

// models returns the names of every model with a cached generator, sorted.
func (m *Manager) models() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modelStats returns the stored counters of a model. Unknown models report
// all zeroes.
func (m *Manager) modelStats(modelName string) ngram.ModelStats {
	m.mu.RLock()
	entry, ok := m.entries[modelName]
	m.mu.RUnlock()

	if !ok {
		return ngram.ModelStats{}
	}
	stats, err := m.store.GetModelStats(context.Background(), entry.info)
	if err != nil {
		m.logger.Error("modelStats: query failed", "model", modelName, "error", err)
		return ngram.ModelStats{}
	}
	return stats
}

// vocabSize returns the alphabet size of a model, or zero if unknown.
func (m *Manager) vocabSize(modelName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[modelName]
	if !ok {
		return 0
	}
	return entry.vocab.Size()
}

// defaultModel returns the configured default model name.
func (m *Manager) defaultModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.DefaultModel
}
