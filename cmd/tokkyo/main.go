// Package main is the Tokkyo CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tokkyo/internal/cache"
	"github.com/hyperjump/tokkyo/internal/config"
	"github.com/hyperjump/tokkyo/internal/embedding"
	"github.com/hyperjump/tokkyo/internal/indexer"
	"github.com/hyperjump/tokkyo/internal/language"
	"github.com/hyperjump/tokkyo/internal/models"
	"github.com/hyperjump/tokkyo/internal/search"
	"github.com/hyperjump/tokkyo/internal/server"
	"github.com/hyperjump/tokkyo/internal/store"
	"github.com/hyperjump/tokkyo/internal/vector"
	"github.com/hyperjump/tokkyo/internal/watcher"
	"github.com/hyperjump/tokkyo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tokkyo/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so "tokkyo server" from the project dir picks up the project's
// config including debug. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "add":
		runAdd()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("tokkyo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Corpus.Path != "" {
		if _, err := components.Indexer.LoadCorpus(context.Background(), cfg.Corpus.Path); err != nil {
			logger.Warn("corpus load failed", zap.String("path", cfg.Corpus.Path), zap.Error(err))
		}
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var corpusWatch *watcher.CorpusWatcher
	if cfg.Corpus.Watch && cfg.Corpus.Path != "" {
		idx := components.Indexer
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		corpusWatch, err = watcher.NewCorpusWatcher(cfg.Corpus.Path, func(path string) {
			report, loadErr := idx.LoadCorpus(context.Background(), path)
			if loadErr != nil {
				logger.Warn("corpus reload failed", zap.String("path", path), zap.Error(loadErr))
				return
			}
			logger.Info("corpus reloaded",
				zap.Int("added", report.Added),
				zap.Int("failed", report.Failed),
			)
		}, watchOpts...)
		if err != nil {
			logger.Fatal("Failed to create corpus watcher", zap.Error(err))
		}
		if err := corpusWatch.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start corpus watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Store,
		components.Stats,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if corpusWatch != nil {
		corpusWatch.Stop()
	}
	watchCancel()
	if cfg.Storage.IndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.IndexPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQueryText joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	topK := fs.Int("k", 0, "number of results (0 = server default)")
	threshold := fs.Float64("threshold", -1, "minimum similarity in [0,1] (-1 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tokkyo search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildQueryText(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: tokkyo search [flags] <query>")
		os.Exit(1)
	}

	query := &models.SearchQuery{Text: queryStr}
	if *topK != 0 {
		query.TopK = topK
	}
	if *threshold >= 0 {
		t := *threshold
		query.Threshold = &t
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		response, err = components.Engine.Search(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("query: %s (language: %s, %d result(s), %dms)\n\n",
			response.Query, response.QueryLanguage, response.Total, response.QueryTime)
		for i, r := range response.Results {
			fmt.Printf("%d. [%.3f] %s\n", i+1, r.Similarity, utils.Truncate(r.Text, 120))
			fmt.Printf("   id: %s  language: %s\n", r.ID, r.Language)
			fmt.Printf("   %s\n\n", r.Explanation)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	file := fs.String("file", "", "newline-separated file of abstracts to add instead of a single text")
	_ = fs.Parse(os.Args[2:])

	var inputs []*models.DocumentInput
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
			os.Exit(1)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			inputs = append(inputs, &models.DocumentInput{Text: line})
		}
	} else {
		text := buildQueryText(fs.Args())
		if text == "" {
			fmt.Println("Usage: tokkyo add [flags] <text>")
			fmt.Println("       tokkyo add --file abstracts.txt")
			os.Exit(1)
		}
		inputs = append(inputs, &models.DocumentInput{Text: text})
	}

	body, _ := json.Marshal(map[string]any{"documents": inputs})
	resp, err := http.Post(*serverURL+"/api/v1/documents", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Add failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Results []*models.AddResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	added, failed := 0, 0
	for _, r := range out.Results {
		if r.OK() {
			added++
			fmt.Printf("added: %s\n", r.ID)
		} else {
			failed++
			fmt.Printf("failed: %s\n", r.Error)
		}
	}
	if failed > 0 {
		fmt.Printf("%d added, %d failed\n", added, failed)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tokkyo delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+docID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var stats cache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:   %d\n", stats.TotalDocuments)
		fmt.Printf("index_size:  %d\n", stats.IndexSize)
		if len(stats.Languages) > 0 {
			fmt.Println("languages:")
			for lang, n := range stats.Languages {
				fmt.Printf("  %s: %d\n", lang, n)
			}
		}
		if len(stats.RecentIDs) > 0 {
			fmt.Println("recent:")
			for _, id := range stats.RecentIDs {
				fmt.Printf("  %s\n", id)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store       store.DocumentStore
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	Stats       *cache.StatsCache
	Engine      *search.Engine
	Indexer     *indexer.Indexer
}

func (c *Components) Close() {
	if c.Stats != nil {
		c.Stats.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var st store.DocumentStore
	switch cfg.Storage.Backend {
	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		st = sqliteStore
	default:
		st = store.NewMemoryStore()
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
	)
	if err != nil {
		logger.Warn("onnx embedder unavailable, using mock", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}
	if cfg.Embedding.CacheSize > 0 {
		cached, err := embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		embedder = cached
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.IndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.IndexPath); loadErr != nil {
			logger.Warn("vector index load skipped", zap.String("path", cfg.Storage.IndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized",
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("size", vectorIndex.Size()),
	)

	detector := language.NewLinguaDetector()

	stats := cache.NewStatsCache(st, vectorIndex,
		cfg.Cache.Workers, cfg.Cache.QueueSize,
		cache.WithLogger(logger), cache.WithRecentCap(cfg.Cache.RecentIDs))

	idx := indexer.NewIndexer(st, vectorIndex, embedder, detector,
		indexer.WithLogger(logger), indexer.WithCache(stats))
	engine := search.NewEngine(st, vectorIndex, embedder, detector, &cfg.Search,
		search.WithLogger(logger))

	return &Components{
		Store:       st,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		Stats:       stats,
		Engine:      engine,
		Indexer:     idx,
	}, nil
}

func printUsage() {
	fmt.Println(`tokkyo - Multilingual semantic search over patent abstracts

Usage:
  tokkyo server [flags]           Start the HTTP server
  tokkyo search [flags] <query>   Search indexed abstracts
  tokkyo add [flags] <text>       Add an abstract (or --file for a batch)
  tokkyo delete [flags] <id>      Delete a document
  tokkyo status [flags]           Show document and index counts
  tokkyo version                  Show version
  tokkyo help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tokkyo/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string     Config file path (for direct storage mode)
  --server string     Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --k int             Number of results (default from server config)
  --threshold float   Minimum similarity in [0,1] (default from server config)
  --output string     Output format: text or json (default: text)

Add Flags:
  --server string    Server URL (default: http://localhost:8080)
  --file string      Newline-separated file of abstracts

Delete Flags:
  --server string    Server URL (default: http://localhost:8080)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  tokkyo server
  tokkyo search "solar energy storage"
  tokkyo search --k 10 --threshold 0.3 "battery technology"
  tokkyo add "A photovoltaic cell with improved efficiency."
  tokkyo add --file abstracts.txt
  tokkyo delete 6e1c6f6e-...
  tokkyo status --output json`)
}
