package ngram

import (
	"testing"
)

func TestGetModelStats(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	stats, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	want := ModelStats{VocabSize: 5, Contexts: 8, Transitions: 9, TotalFrequency: 12}
	if stats != want {
		t.Errorf("GetModelStats() = %+v, want %+v", stats, want)
	}
}

func TestGetStoreStats(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	// A registered but untrained model still shows up, with zeroed stats.
	if err := s.InsertModel(ctx, ModelInfo{Name: "empty", WindowLen: 2}); err != nil {
		t.Fatalf("InsertModel() failed: %v", err)
	}

	stats, err := s.GetStoreStats(ctx)
	if err != nil {
		t.Fatalf("GetStoreStats() failed: %v", err)
	}
	if len(stats.Models) != 2 {
		t.Fatalf("got %d models, want 2", len(stats.Models))
	}

	trained := stats.Stats[model.Id]
	want := ModelStats{VocabSize: 5, Contexts: 8, Transitions: 9, TotalFrequency: 12}
	if trained != want {
		t.Errorf("trained model stats = %+v, want %+v", trained, want)
	}

	empty, err := s.GetModelInfo(ctx, "empty")
	if err != nil {
		t.Fatalf("GetModelInfo() failed: %v", err)
	}
	if got := stats.Stats[empty.Id]; got != (ModelStats{}) {
		t.Errorf("untrained model stats = %+v, want all zeroes", got)
	}
}

func TestStatsIsolatedPerModel(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)
	other := trainSecondModel(t, ctx, s)

	first, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	second, err := s.GetModelStats(ctx, other)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}

	// Window length 3 yields 12 pairs over the corpus, window length 2
	// yields 13.
	if first.TotalFrequency != 12 {
		t.Errorf("first model TotalFrequency = %d, want 12", first.TotalFrequency)
	}
	if second.TotalFrequency != 13 {
		t.Errorf("second model TotalFrequency = %d, want 13", second.TotalFrequency)
	}
}
