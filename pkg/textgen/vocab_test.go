package textgen

import (
	"errors"
	"testing"
)

func TestBuildVocabulary(t *testing.T) {
	v := BuildVocabulary(NewCorpus("Anna\nAnne\nAnna\n"))

	wantOrder := []rune{'\n', 'A', 'a', 'e', 'n'}
	if v.Size() != len(wantOrder) {
		t.Fatalf("Size() = %d, want %d", v.Size(), len(wantOrder))
	}
	for i, r := range wantOrder {
		got, err := v.Index(r)
		if err != nil {
			t.Fatalf("Index(%q) failed: %v", r, err)
		}
		if got != i {
			t.Errorf("Index(%q) = %d, want %d", r, got, i)
		}
		back, err := v.Rune(i)
		if err != nil {
			t.Fatalf("Rune(%d) failed: %v", i, err)
		}
		if back != r {
			t.Errorf("Rune(%d) = %q, want %q", i, back, r)
		}
	}
}

func TestBuildVocabularyDeterministic(t *testing.T) {
	c := NewCorpus("the quick brown fox jumps over the lazy dog")
	first := BuildVocabulary(c)
	for i := 0; i < 10; i++ {
		again := BuildVocabulary(c)
		if string(again.Runes()) != string(first.Runes()) {
			t.Fatalf("vocabulary order changed between builds: %q vs %q", string(again.Runes()), string(first.Runes()))
		}
	}
}

func TestBuildVocabularyEmptyCorpus(t *testing.T) {
	v := BuildVocabulary(NewCorpus(""))
	if v.Size() != 0 {
		t.Errorf("Size() = %d, want 0", v.Size())
	}
	if _, err := v.Index('a'); !errors.Is(err, ErrUnknownChar) {
		t.Errorf("Index on empty vocabulary = %v, want ErrUnknownChar", err)
	}
}

func TestVocabularyLookups(t *testing.T) {
	v := BuildVocabulary(NewCorpus("aba"))

	if !v.Contains('a') || !v.Contains('b') {
		t.Error("Contains() should report corpus characters")
	}
	if v.Contains('z') {
		t.Error("Contains('z') should be false")
	}
	if _, err := v.Index('z'); !errors.Is(err, ErrUnknownChar) {
		t.Errorf("Index('z') = %v, want ErrUnknownChar", err)
	}
	if _, err := v.Rune(-1); err == nil {
		t.Error("Rune(-1) should fail")
	}
	if _, err := v.Rune(2); err == nil {
		t.Error("Rune(2) should fail for a two character vocabulary")
	}
}

func TestNewVocabulary(t *testing.T) {
	testCases := []struct {
		name      string
		chars     []rune
		expectErr bool
	}{
		{name: "Sorted distinct characters", chars: []rune{'\n', 'A', 'a'}},
		{name: "Empty list", chars: nil},
		{name: "Unsorted characters", chars: []rune{'b', 'a'}, expectErr: true},
		{name: "Duplicate characters", chars: []rune{'a', 'a'}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewVocabulary(tc.chars)
			if tc.expectErr {
				if err == nil {
					t.Error("expected an error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewVocabulary failed: %v", err)
			}
			if v.Size() != len(tc.chars) {
				t.Errorf("Size() = %d, want %d", v.Size(), len(tc.chars))
			}
		})
	}
}
