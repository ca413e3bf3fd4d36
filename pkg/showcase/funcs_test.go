package showcase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGenerateFuncs(t *testing.T) {
	m := setupTestManager(t)

	t.Run("Sample", func(t *testing.T) {
		config := m.GetConfig()
		config.MaxSampleLength = 10
		m.SetConfig(config)

		out, err := m.sample("names", 10, 1.0)
		if err != nil {
			t.Fatalf("sample() failed: %v", err)
		}
		// Three seed characters plus ten generated ones.
		if got := utf8.RuneCountInString(out); got != 13 {
			t.Errorf("sample length = %d runes, want 13", got)
		}
		for _, r := range out {
			if !strings.ContainsRune("\nAaen", r) {
				t.Errorf("sample contains %q, which is outside the model alphabet", r)
			}
		}

		// Requests above the cap are clamped, not rejected.
		out, err = m.sample("names", 99999, 1.0)
		if err != nil {
			t.Fatalf("sample() failed: %v", err)
		}
		if got := utf8.RuneCountInString(out); got != 13 {
			t.Errorf("clamped sample length = %d runes, want 13", got)
		}
	})

	t.Run("SampleUnknownModel", func(t *testing.T) {
		out, err := m.sample("missing", 10, 1.0)
		if err != nil {
			t.Fatalf("sample() failed: %v", err)
		}
		if out != "" {
			t.Errorf("sample for an unknown model = %q, want empty", out)
		}
	})

	t.Run("SampleSheet", func(t *testing.T) {
		rows, err := m.sampleSheet("names", 5, 0.5, 1.0, 2.0)
		if err != nil {
			t.Fatalf("sampleSheet() failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("got %d rows, want 3", len(rows))
		}
		wantTemps := []float64{0.5, 1.0, 2.0}
		for i, row := range rows {
			if row.Temperature != wantTemps[i] {
				t.Errorf("row %d temperature = %v, want %v", i, row.Temperature, wantTemps[i])
			}
			if row.Text == "" {
				t.Errorf("row %d has no text", i)
			}
		}
	})

	t.Run("SampleSheetRowCap", func(t *testing.T) {
		config := m.GetConfig()
		config.MaxSheetRows = 2
		m.SetConfig(config)

		rows, err := m.sampleSheet("names", 5, 0.5, 1.0, 2.0, 4.0)
		if err != nil {
			t.Fatalf("sampleSheet() failed: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("got %d rows, want 2", len(rows))
		}
	})

	t.Run("SeedFor", func(t *testing.T) {
		seed, err := m.seedFor("names")
		if err != nil {
			t.Fatalf("seedFor() failed: %v", err)
		}
		if got := utf8.RuneCountInString(seed); got != 3 {
			t.Errorf("seed length = %d runes, want 3", got)
		}

		seed, err = m.seedFor("missing")
		if err != nil {
			t.Fatalf("seedFor() failed: %v", err)
		}
		if seed != "" {
			t.Errorf("seed for an unknown model = %q, want empty", seed)
		}
	})

	t.Run("ModelAccessors", func(t *testing.T) {
		names := m.models()
		if len(names) != 1 || names[0] != "names" {
			t.Errorf("models() = %v, want [names]", names)
		}
		if got := m.vocabSize("names"); got != 5 {
			t.Errorf("vocabSize() = %d, want 5", got)
		}
		if got := m.vocabSize("missing"); got != 0 {
			t.Errorf("vocabSize() for an unknown model = %d, want 0", got)
		}
		stats := m.modelStats("names")
		if stats.TotalFrequency != 12 {
			t.Errorf("modelStats().TotalFrequency = %d, want 12", stats.TotalFrequency)
		}
		if got := m.defaultModel(); got != "names" {
			t.Errorf("defaultModel() = %q, want %q", got, "names")
		}
	})
}

func TestSimpleFuncs(t *testing.T) {
	if add(2, 3) != 5 {
		t.Error("add failed")
	}
	if sub(5, 3) != 2 {
		t.Error("sub failed")
	}
	if mult(2, 3) != 6 {
		t.Error("mult failed")
	}
	if div(10, 3) != 3 || div(1, 0) != 0 {
		t.Error("div failed")
	}
	if mod(10, 3) != 1 || mod(1, 0) != 0 {
		t.Error("mod failed")
	}
	if inc(1) != 2 || dec(1) != 0 {
		t.Error("inc/dec failed")
	}
	if percent(1, 8) != "12.5%" || percent(1, 0) != "0.0%" {
		t.Error("percent failed")
	}
	if len(repeat(5)) != 5 || len(repeat(-1)) != 0 {
		t.Error("repeat failed")
	}
	if got := list(1, "a"); len(got) != 2 {
		t.Error("list failed")
	}
	if choice := randomChoice([]string{"a", "b"}); choice != "a" && choice != "b" {
		t.Error("randomChoice failed")
	}
	if randomChoice([]int{}) != nil || randomChoice(42) != nil {
		t.Error("randomChoice should return nil for empty or non-slice input")
	}
	if randomInt(10, 11) != 10 || randomInt(5, 5) != 5 {
		t.Error("randomInt failed")
	}
}

func TestClamps(t *testing.T) {
	config := DefaultConfig()

	if got := config.clampLength(-5); got != 0 {
		t.Errorf("clampLength(-5) = %d, want 0", got)
	}
	if got := config.clampLength(config.MaxSampleLength + 1); got != config.MaxSampleLength {
		t.Errorf("clampLength over the cap = %d, want %d", got, config.MaxSampleLength)
	}
	if got := config.clampTemperature(0); got != config.DefaultTemperature {
		t.Errorf("clampTemperature(0) = %v, want the default", got)
	}
	if got := config.clampTemperature(99); got != config.MaxTemperature {
		t.Errorf("clampTemperature(99) = %v, want %v", got, config.MaxTemperature)
	}
	if got := config.clampTemperature(1.5); got != 1.5 {
		t.Errorf("clampTemperature(1.5) = %v, want 1.5", got)
	}
}
