package textgen

import (
	"errors"
	"io"
	"testing"
)

func TestWindowIter(t *testing.T) {
	c := NewCorpus("Anna\nAnne\nAnna\n")

	it, err := NewWindowIter(c, 3, 1)
	if err != nil {
		t.Fatalf("NewWindowIter failed: %v", err)
	}

	first, err := it.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.Window != "Ann" || first.Next != 'a' {
		t.Errorf("first pair = (%q, %q), want (%q, %q)", first.Window, first.Next, "Ann", 'a')
	}

	// 15 characters with window 3 leaves 12 start offsets.
	count := 1
	var last WindowPair
	for {
		pair, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		last = pair
		count++
	}
	if count != 12 {
		t.Errorf("emitted %d pairs, want 12", count)
	}
	if last.Window != "nna" || last.Next != '\n' {
		t.Errorf("last pair = (%q, %q), want (%q, %q)", last.Window, last.Next, "nna", '\n')
	}
}

func TestWindowIterCount(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		length int
		step   int
		want   int
	}{
		{name: "Step one", text: "Anna\nAnne\nAnna\n", length: 3, step: 1, want: 12},
		{name: "Corpus equals window", text: "abc", length: 3, step: 1, want: 0},
		{name: "Corpus shorter than window", text: "ab", length: 3, step: 1, want: 0},
		{name: "One past window", text: "abcd", length: 3, step: 1, want: 1},
		{name: "Step two", text: "abcdef", length: 2, step: 2, want: 2},
		{name: "Step not dividing evenly", text: "abcdefgh", length: 2, step: 3, want: 2},
		{name: "Empty corpus", text: "", length: 3, step: 1, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			it, err := NewWindowIter(NewCorpus(tc.text), tc.length, tc.step)
			if err != nil {
				t.Fatalf("NewWindowIter failed: %v", err)
			}
			if got := it.Count(); got != tc.want {
				t.Errorf("Count() = %d, want %d", got, tc.want)
			}
			pairs, err := Windows(NewCorpus(tc.text), tc.length, tc.step)
			if err != nil {
				t.Fatalf("Windows failed: %v", err)
			}
			if len(pairs) != tc.want {
				t.Errorf("Windows yielded %d pairs, want %d", len(pairs), tc.want)
			}
		})
	}
}

func TestWindowIterStepBoundary(t *testing.T) {
	// The last window must always leave one character after it.
	pairs, err := Windows(NewCorpus("abcdef"), 2, 2)
	if err != nil {
		t.Fatalf("Windows failed: %v", err)
	}
	want := []WindowPair{{Window: "ab", Next: 'c'}, {Window: "cd", Next: 'e'}}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(pairs), len(want))
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = (%q, %q), want (%q, %q)", i, pairs[i].Window, pairs[i].Next, want[i].Window, want[i].Next)
		}
	}
}

func TestNewWindowIterValidation(t *testing.T) {
	c := NewCorpus("abc")
	if _, err := NewWindowIter(c, 0, 1); err == nil {
		t.Error("expected an error for zero window length")
	}
	if _, err := NewWindowIter(c, 1, 0); err == nil {
		t.Error("expected an error for zero step")
	}
	if _, err := NewWindowIter(c, -1, 1); err == nil {
		t.Error("expected an error for negative window length")
	}
}
