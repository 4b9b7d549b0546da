// Package search provides the semantic search engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tokkyo/internal/config"
	"github.com/hyperjump/tokkyo/internal/embedding"
	"github.com/hyperjump/tokkyo/internal/errs"
	"github.com/hyperjump/tokkyo/internal/language"
	"github.com/hyperjump/tokkyo/internal/models"
	"github.com/hyperjump/tokkyo/internal/store"
	"github.com/hyperjump/tokkyo/internal/vector"
)

const (
	defaultDetectTimeout = 5 * time.Second
	defaultEmbedTimeout  = 30 * time.Second
)

// Engine answers natural-language queries against the vector index. The
// embedding model is multilingual, so queries match documents across
// languages; the detected query language is reported, never used to filter.
type Engine struct {
	store    store.DocumentStore
	index    vector.Index
	embedder embedding.Embedder
	detector language.Detector
	config   *config.SearchConfig
	logger   *zap.Logger // optional

	detectTimeout time.Duration
	embedTimeout  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for consistency warnings and query debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTimeouts overrides the detection and embedding call timeouts.
func WithTimeouts(detect, embed time.Duration) Option {
	return func(e *Engine) {
		if detect > 0 {
			e.detectTimeout = detect
		}
		if embed > 0 {
			e.embedTimeout = embed
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	st store.DocumentStore,
	idx vector.Index,
	embedder embedding.Embedder,
	detector language.Detector,
	cfg *config.SearchConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:         st,
		index:         idx,
		embedder:      embedder,
		detector:      detector,
		config:        cfg,
		detectTimeout: defaultDetectTimeout,
		embedTimeout:  defaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates the query, embeds it, and returns ranked results.
// Parameters are checked before any adapter call. Zero results meeting the
// threshold is a valid empty response, not an error.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultTopK, e.config.DefaultThreshold, e.config.MaxTopK); err != nil {
		return nil, err
	}
	threshold := *query.Threshold

	queryLang := e.detectQueryLanguage(ctx, query.Text)

	embedCtx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	queryVec, err := e.embedder.Embed(embedCtx, query.Text)
	cancel()
	if err != nil {
		return nil, errs.External("embedding", err)
	}

	matches, err := e.index.Query(ctx, queryVec, *query.TopK, threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(matches))
	for _, match := range matches {
		doc, err := e.store.Get(ctx, match.ID)
		if err != nil {
			// An index entry without a document means a historical write
			// anomaly; skip it and keep the remaining results available.
			if errors.Is(err, errs.ErrNotFound) {
				if e.logger != nil {
					e.logger.Warn("consistency warning: indexed vector has no document",
						zap.String("id", match.ID),
						zap.Float64("score", match.Score),
					)
				}
				continue
			}
			return nil, fmt.Errorf("fetch document %s: %w", match.ID, err)
		}
		results = append(results, &models.SearchResult{
			ID:          doc.ID,
			Text:        doc.Text,
			Similarity:  match.Score,
			Language:    doc.Language,
			Metadata:    doc.Metadata,
			Explanation: buildExplanation(match.Score, queryLang, doc.Language),
		})
	}

	return &models.SearchResponse{
		Results:       results,
		QueryLanguage: queryLang,
		Total:         len(results),
		QueryTime:     time.Since(startTime).Milliseconds(),
		Query:         query.Text,
	}, nil
}

// detectQueryLanguage is report-only: failures and timeouts degrade to
// "unknown" and never fail the search.
func (e *Engine) detectQueryLanguage(ctx context.Context, text string) string {
	detectCtx, cancel := context.WithTimeout(ctx, e.detectTimeout)
	defer cancel()
	lang, err := e.detector.Detect(detectCtx, text)
	if err != nil || lang == "" {
		return models.LanguageUnknown
	}
	return lang
}

// buildExplanation summarizes why a document matched: the similarity score
// and how the query language relates to the document language.
func buildExplanation(score float64, queryLang, docLang string) string {
	relation := "cross-language match"
	switch {
	case queryLang == models.LanguageUnknown || docLang == models.LanguageUnknown:
		relation = "language relation undetermined"
	case queryLang == docLang:
		relation = "same-language match"
	}
	return fmt.Sprintf("Similarity score: %.3f; query language %s, document language %s (%s)",
		score, queryLang, docLang, relation)
}
