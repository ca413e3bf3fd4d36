package ngram

import (
	"context"
	"errors"
	"testing"
)

func TestModelRegistry(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	if err := s.InsertModel(ctx, ModelInfo{Name: "names", WindowLen: 3}); err != nil {
		t.Fatalf("InsertModel() failed: %v", err)
	}

	model, err := s.GetModelInfo(ctx, "names")
	if err != nil {
		t.Fatalf("GetModelInfo() failed: %v", err)
	}
	if model.Id == 0 {
		t.Error("expected a non-zero model id")
	}
	if model.WindowLen != 3 {
		t.Errorf("WindowLen = %d, want 3", model.WindowLen)
	}

	if _, err = s.GetModelInfo(ctx, "missing"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("GetModelInfo() for a missing model = %v, want ErrModelNotFound", err)
	}

	models, err := s.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos() failed: %v", err)
	}
	if len(models) != 1 {
		t.Errorf("GetModelInfos() returned %d models, want 1", len(models))
	}
	if got := models["names"]; got != model {
		t.Errorf("GetModelInfos()[%q] = %+v, want %+v", "names", got, model)
	}

	if err = s.InsertModel(ctx, ModelInfo{Name: "names", WindowLen: 5}); err == nil {
		t.Error("expected an error when inserting a duplicate model name")
	}
	if err = s.InsertModel(ctx, ModelInfo{Name: "bad", WindowLen: 0}); err == nil {
		t.Error("expected an error for a zero window length")
	}
}

func TestRemoveModel(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	if err := s.RemoveModel(ctx, model); err != nil {
		t.Fatalf("RemoveModel() failed: %v", err)
	}

	if _, err := s.GetModelInfo(ctx, model.Name); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("GetModelInfo() after removal = %v, want ErrModelNotFound", err)
	}
	if _, err := s.LoadVocabulary(ctx, model); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("LoadVocabulary() after removal = %v, want ErrModelNotTrained", err)
	}

	stats, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	if stats != (ModelStats{}) {
		t.Errorf("stats after removal = %+v, want all zeroes", stats)
	}
}

func TestLoadVocabulary(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	vocab, err := s.LoadVocabulary(ctx, model)
	if err != nil {
		t.Fatalf("LoadVocabulary() failed: %v", err)
	}
	if got := string(vocab.Runes()); got != "\nAaen" {
		t.Errorf("vocabulary = %q, want %q", got, "\nAaen")
	}

	untrained := ModelInfo{Id: model.Id + 1000, Name: "untrained", WindowLen: 3}
	if _, err = s.LoadVocabulary(ctx, untrained); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("LoadVocabulary() for an untrained model = %v, want ErrModelNotTrained", err)
	}
}
