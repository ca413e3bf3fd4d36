package textgen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineBytes bounds a single corpus line read by LoadCorpus.
const maxLineBytes = 1024 * 1024

// Corpus is an immutable sequence of characters used to build vocabularies
// and training windows. All positions and lengths are in runes, not bytes.
type Corpus struct {
	runes []rune
}

// NewCorpus wraps a string as a Corpus.
func NewCorpus(text string) *Corpus {
	return &Corpus{runes: []rune(text)}
}

// LoadCorpus reads everything from r and joins the lines into one flat
// character sequence, appending sep after every line. The final line is
// terminated too, so line boundaries stay visible to a model as ordinary
// characters and window extraction crosses them uniformly.
func LoadCorpus(r io.Reader, sep rune) (*Corpus, error) {
	var builder strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		builder.WriteString(scanner.Text())
		builder.WriteRune(sep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return NewCorpus(builder.String()), nil
}

// LoadCorpusFile opens path and loads it via LoadCorpus.
func LoadCorpusFile(path string, sep rune) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return LoadCorpus(f, sep)
}

// Len returns the corpus length in characters.
func (c *Corpus) Len() int {
	return len(c.runes)
}

// Runes returns the corpus characters. The slice is shared with the Corpus
// and must not be modified.
func (c *Corpus) Runes() []rune {
	return c.runes
}

// String reassembles the corpus text.
func (c *Corpus) String() string {
	return string(c.runes)
}
