package textgen

import (
	"fmt"
	"sort"
)

// Vocabulary is the ordered alphabet of a model: every distinct character of
// its training corpus, sorted by code point and indexed 0..Size()-1. The
// sorted order makes the index assignment deterministic, so the same corpus
// always produces the same mapping.
type Vocabulary struct {
	chars   []rune
	indices map[rune]int
}

// BuildVocabulary collects the distinct characters of a corpus into a
// Vocabulary. An empty corpus yields an empty vocabulary, which is valid but
// cannot encode anything.
func BuildVocabulary(c *Corpus) *Vocabulary {
	seen := make(map[rune]struct{})
	for _, r := range c.runes {
		seen[r] = struct{}{}
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return newVocabulary(chars)
}

// NewVocabulary builds a Vocabulary from an explicit character list, such as
// one restored from storage. The characters must be distinct and in strictly
// increasing code point order, exactly as BuildVocabulary produces them.
func NewVocabulary(chars []rune) (*Vocabulary, error) {
	for i := 1; i < len(chars); i++ {
		if chars[i] <= chars[i-1] {
			return nil, fmt.Errorf("vocabulary characters must be distinct and sorted: %q follows %q", chars[i], chars[i-1])
		}
	}
	return newVocabulary(append([]rune(nil), chars...)), nil
}

func newVocabulary(chars []rune) *Vocabulary {
	indices := make(map[rune]int, len(chars))
	for i, r := range chars {
		indices[r] = i
	}
	return &Vocabulary{chars: chars, indices: indices}
}

// Size returns the number of distinct characters.
func (v *Vocabulary) Size() int {
	return len(v.chars)
}

// Index returns the vocabulary index of r, or ErrUnknownChar if r is not
// part of the alphabet.
func (v *Vocabulary) Index(r rune) (int, error) {
	i, ok := v.indices[r]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChar, r)
	}
	return i, nil
}

// Contains reports whether r is part of the alphabet.
func (v *Vocabulary) Contains(r rune) bool {
	_, ok := v.indices[r]
	return ok
}

// Rune returns the character at vocabulary index i, the inverse of Index.
func (v *Vocabulary) Rune(i int) (rune, error) {
	if i < 0 || i >= len(v.chars) {
		return 0, fmt.Errorf("vocabulary index %d out of range [0, %d)", i, len(v.chars))
	}
	return v.chars[i], nil
}

// Runes returns the characters in index order. The slice is shared with the
// Vocabulary and must not be modified.
func (v *Vocabulary) Runes() []rune {
	return v.chars
}
