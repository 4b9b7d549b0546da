package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults not applied: %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory backend default, got %s", cfg.Storage.Backend)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected dimensions default 384, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.DefaultTopK != 5 || cfg.Search.DefaultThreshold != 0.5 {
		t.Errorf("search defaults not applied: %+v", cfg.Search)
	}
	if cfg.Cache.Workers != 2 || cfg.Cache.QueueSize != 64 {
		t.Errorf("cache defaults not applied: %+v", cfg.Cache)
	}
}

func TestLoad_OverridesAndPathExpansion(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
storage:
  backend: sqlite
  database_path: ./data/documents.db
search:
  default_k: 10
  default_threshold: 0.7
corpus:
  path: ./abstracts.txt
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port override lost: %d", cfg.Server.Port)
	}
	dir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/documents.db") {
		t.Errorf("database path not expanded relative to config dir: %s", cfg.Storage.DatabasePath)
	}
	if cfg.Corpus.Path != filepath.Join(dir, "abstracts.txt") {
		t.Errorf("corpus path not expanded: %s", cfg.Corpus.Path)
	}
	if cfg.Search.DefaultThreshold != 0.7 {
		t.Errorf("threshold override lost: %g", cfg.Search.DefaultThreshold)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "storage:\n  backend: postgres\n"},
		{"bad threshold", "search:\n  default_threshold: 1.5\n"},
		{"negative dimensions", "embedding:\n  dimensions: -1\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
