package ngram

import (
	"testing"
)

func TestPruneTransitions(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	// Every stored frequency is at least 1, so pruning at 0 is a no-op.
	removed, err := s.PruneTransitions(ctx, model, 0)
	if err != nil {
		t.Fatalf("PruneTransitions() failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	// The trained frequencies are 1 and 2; pruning at 1 keeps only the
	// repeated transitions and drops the contexts they orphan.
	removed, err = s.PruneTransitions(ctx, model, 1)
	if err != nil {
		t.Fatalf("PruneTransitions() failed: %v", err)
	}
	if removed != 6 {
		t.Errorf("removed = %d, want 6", removed)
	}

	stats, err := s.GetModelStats(ctx, model)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	want := ModelStats{VocabSize: 5, Contexts: 3, Transitions: 3, TotalFrequency: 6}
	if stats != want {
		t.Errorf("stats after pruning = %+v, want %+v", stats, want)
	}
}

func TestPruneTransitionsScopedToModel(t *testing.T) {
	ctx, s, model := setupTrainedStore(t)

	other := trainSecondModel(t, ctx, s)

	if _, err := s.PruneTransitions(ctx, model, 99); err != nil {
		t.Fatalf("PruneTransitions() failed: %v", err)
	}

	stats, err := s.GetModelStats(ctx, other)
	if err != nil {
		t.Fatalf("GetModelStats() failed: %v", err)
	}
	if stats.Transitions == 0 {
		t.Error("pruning one model removed transitions from another")
	}
}

func TestIntSliceToInterface(t *testing.T) {
	if got := intSliceToInterface(nil); got != nil {
		t.Errorf("intSliceToInterface(nil) = %v, want nil", got)
	}

	got := intSliceToInterface([]int{1, 2, 3})
	if len(got) != 3 {
		t.Fatalf("got %d elements, want 3", len(got))
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("element %d = %v, want %d", i, v, i+1)
		}
	}
}
