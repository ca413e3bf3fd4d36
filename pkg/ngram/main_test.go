package ngram

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/charloom/charloom/pkg/textgen"
)

// namesCorpus is fifteen characters of newline-terminated names. With a
// window length of 3 it produces exactly twelve training pairs over the
// five-character alphabet "\nAaen".
const namesCorpus = "Anna\nAnne\nAnna\n"

// setupTestDB creates a file-backed SQLite database with the schema applied
// and a Store on top of it. Cleanup is registered on t.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTrainedStore registers the "names" model with window length 3 and
// trains it on namesCorpus.
func setupTrainedStore(t *testing.T) (context.Context, *Store, ModelInfo) {
	t.Helper()

	_, s := setupTestDB(t)
	ctx := context.Background()

	if err := s.InsertModel(ctx, ModelInfo{Name: "names", WindowLen: 3}); err != nil {
		t.Fatalf("setup: InsertModel() failed: %v", err)
	}
	model, err := s.GetModelInfo(ctx, "names")
	if err != nil {
		t.Fatalf("setup: GetModelInfo() failed: %v", err)
	}
	if err = s.Train(ctx, model, textgen.NewCorpus(namesCorpus)); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}

	return ctx, s, model
}

// trainSecondModel registers and trains an additional model in an already
// set-up store, for tests that need per-model isolation.
func trainSecondModel(t *testing.T, ctx context.Context, s *Store) ModelInfo {
	t.Helper()

	if err := s.InsertModel(ctx, ModelInfo{Name: "names_two", WindowLen: 2}); err != nil {
		t.Fatalf("setup: InsertModel() failed: %v", err)
	}
	model, err := s.GetModelInfo(ctx, "names_two")
	if err != nil {
		t.Fatalf("setup: GetModelInfo() failed: %v", err)
	}
	if err = s.Train(ctx, model, textgen.NewCorpus(namesCorpus)); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return model
}

// setupBenchDB is setupTestDB for benchmarks.
func setupBenchDB(b *testing.B) (*sql.DB, *Store) {
	b.Helper()

	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() {
		_ = db.Close()
	})

	if err = SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		b.Fatalf("NewStore() failed: %v", err)
	}
	b.Cleanup(s.Close)

	return db, s
}

var (
	benchCorpusOnce sync.Once
	benchCorpus     *textgen.Corpus
)

// benchmarkCorpus concatenates the Go sources of a standard library package
// into a realistic training corpus. It is built once per test binary.
func benchmarkCorpus(b *testing.B) *textgen.Corpus {
	b.Helper()

	benchCorpusOnce.Do(func() {
		files, err := filepath.Glob(filepath.Join(runtime.GOROOT(), "src", "strings", "*.go"))
		if err != nil {
			return
		}

		var builder strings.Builder
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			builder.Write(data)
			builder.WriteByte('\n')
			if builder.Len() > 1<<18 {
				break
			}
		}
		benchCorpus = textgen.NewCorpus(builder.String())
	})

	if benchCorpus == nil || benchCorpus.Len() == 0 {
		b.Skip("standard library sources not available for the benchmark corpus")
	}
	return benchCorpus
}
