package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCorpus(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abstracts.txt")
	if err := os.WriteFile(path, []byte(lines), 0644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func TestLoadCorpus(t *testing.T) {
	f := newFixture(t)
	path := writeCorpus(t,
		"A method for desalinating seawater using membranes.\n"+
			"\n"+
			"Vorrichtung zur Reinigung von Abwasser.\n")

	report, err := f.indexer.LoadCorpus(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if report.Added != 2 || report.Failed != 0 {
		t.Errorf("report = %+v, want 2 added, 0 failed", report)
	}
	if f.index.Size() != 2 {
		t.Errorf("expected 2 vectors, got %d", f.index.Size())
	}

	f.cache.Wait()
	stats, err := f.cache.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("cache sees %d documents, want 2", stats.TotalDocuments)
	}
}

func TestLoadCorpus_MissingFile(t *testing.T) {
	f := newFixture(t)
	if _, err := f.indexer.LoadCorpus(context.Background(), "/does/not/exist.txt"); err == nil {
		t.Error("expected error for missing corpus file")
	}
}
