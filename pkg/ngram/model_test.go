package ngram

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/charloom/charloom/pkg/textgen"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	var buf bytes.Buffer
	if err := s.ExportModel(ctx, model, &buf); err != nil {
		t.Fatalf("ExportModel() failed: %v", err)
	}

	var exported ExportedModel
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}
	if exported.Version != exportVersion {
		t.Errorf("export version = %d, want %d", exported.Version, exportVersion)
	}
	if len(exported.Vocabulary) != 5 {
		t.Errorf("exported vocabulary has %d entries, want 5", len(exported.Vocabulary))
	}

	// Import into a fresh database and compare.
	_, other := setupTestDB(t)
	if err := other.ImportModel(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ImportModel() failed: %v", err)
	}

	imported, err := other.GetModelInfo(ctx, model.Name)
	if err != nil {
		t.Fatalf("GetModelInfo() after import failed: %v", err)
	}
	if imported.WindowLen != model.WindowLen {
		t.Errorf("imported WindowLen = %d, want %d", imported.WindowLen, model.WindowLen)
	}

	origStats, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	newStats, err := other.GetModelStats(ctx, imported)
	if err != nil {
		t.Fatalf("GetModelStats() after import failed: %v", err)
	}
	if newStats != origStats {
		t.Errorf("imported stats = %+v, want %+v", newStats, origStats)
	}

	// The imported model predicts exactly like the original.
	vocab, err := other.LoadVocabulary(ctx, imported)
	if err != nil {
		t.Fatalf("LoadVocabulary() after import failed: %v", err)
	}
	window, err := textgen.NewEncoder(vocab).EncodeWindow("Ann")
	if err != nil {
		t.Fatalf("EncodeWindow() failed: %v", err)
	}
	dist, err := other.Predictor(imported, vocab).Predict(ctx, window)
	if err != nil {
		t.Fatalf("Predict() after import failed: %v", err)
	}
	aIdx, err := vocab.Index('a')
	if err != nil {
		t.Fatalf("Index('a') failed: %v", err)
	}
	if math.Abs(dist[aIdx]-2.0/3.0) > 1e-12 {
		t.Errorf("P('a' | %q) after import = %v, want %v", "Ann", dist[aIdx], 2.0/3.0)
	}
}

func TestImportMergesFrequencies(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	var buf bytes.Buffer
	if err := s.ExportModel(ctx, model, &buf); err != nil {
		t.Fatalf("ExportModel() failed: %v", err)
	}

	// Importing a model into itself doubles every frequency without
	// creating new contexts or transitions.
	if err := s.ImportModel(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ImportModel() failed: %v", err)
	}

	stats, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	want := ModelStats{VocabSize: 5, Contexts: 8, Transitions: 9, TotalFrequency: 24}
	if stats != want {
		t.Errorf("stats after merge = %+v, want %+v", stats, want)
	}
}

func TestImportRejectsMismatchedModels(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	var buf bytes.Buffer
	if err := s.ExportModel(ctx, model, &buf); err != nil {
		t.Fatalf("ExportModel() failed: %v", err)
	}

	var exported ExportedModel
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}

	windowChanged := exported
	windowChanged.WindowLen = 4
	vocabChanged := exported
	vocabChanged.Vocabulary = []string{"\n", "B", "a", "e", "n"}

	for _, tc := range []struct {
		name  string
		model ExportedModel
	}{
		{name: "Window length mismatch", model: windowChanged},
		{name: "Vocabulary mismatch", model: vocabChanged},
	} {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(tc.model)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if err := s.ImportModel(ctx, bytes.NewReader(payload)); err == nil {
				t.Error("expected the merge to be rejected")
			}
		})
	}
}

func TestImportRejectsBadPayloads(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		payload string
	}{
		{
			name:    "Wrong version",
			payload: `{"version": 99, "name": "x", "window_len": 3, "vocabulary": ["a"]}`,
		},
		{
			name:    "Zero window length",
			payload: `{"version": 1, "name": "x", "window_len": 0, "vocabulary": ["a"]}`,
		},
		{
			name:    "Unsorted vocabulary",
			payload: `{"version": 1, "name": "x", "window_len": 3, "vocabulary": ["b", "a"]}`,
		},
		{
			name:    "Multi-character vocabulary entry",
			payload: `{"version": 1, "name": "x", "window_len": 3, "vocabulary": ["ab"]}`,
		},
		{
			name:    "Transition outside the vocabulary",
			payload: `{"version": 1, "name": "x", "window_len": 1, "vocabulary": ["a"], "contexts": {"0": 1}, "transitions": [{"context_id": 1, "next_index": 7, "frequency": 1}]}`,
		},
		{
			name:    "Not json",
			payload: `not json at all`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.ImportModel(ctx, strings.NewReader(tc.payload)); err == nil {
				t.Error("expected an error but got none")
			}
		})
	}
}
