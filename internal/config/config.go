// Package config provides configuration loading and structs for the Tokkyo server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is loaded once at
// process start and immutable thereafter.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Corpus    CorpusConfig    `yaml:"corpus"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the document store backend and persistence paths.
// Backend "memory" matches the reference deployment; "sqlite" persists
// documents across restarts. IndexPath, when set, saves and loads the vector
// index on shutdown and startup.
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds search defaults and bounds.
type SearchConfig struct {
	DefaultTopK      int     `yaml:"default_k"`
	DefaultThreshold float64 `yaml:"default_threshold"`
	MaxTopK          int     `yaml:"max_k"`
}

// CacheConfig sizes the stats cache refresh worker pool.
type CacheConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	RecentIDs int `yaml:"recent_ids"`
}

// CorpusConfig points at the newline-separated abstracts file loaded at
// startup. When Watch is true, the file is re-ingested on change.
type CorpusConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Storage.IndexPath != "" {
		cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	}
	if cfg.Corpus.Path != "" {
		cfg.Corpus.Path = expandPath(cfg.Corpus.Path, configDir)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Storage.Backend != "memory" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("unknown storage backend %q (want memory or sqlite)", c.Storage.Backend)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Search.DefaultThreshold < 0 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("default threshold must be in [0,1], got %g", c.Search.DefaultThreshold)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
