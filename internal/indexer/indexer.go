// Package indexer provides batch ingestion of documents into the store and vector index.
package indexer

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tokkyo/internal/cache"
	"github.com/hyperjump/tokkyo/internal/embedding"
	"github.com/hyperjump/tokkyo/internal/errs"
	"github.com/hyperjump/tokkyo/internal/language"
	"github.com/hyperjump/tokkyo/internal/models"
	"github.com/hyperjump/tokkyo/internal/store"
	"github.com/hyperjump/tokkyo/internal/vector"
	"github.com/hyperjump/tokkyo/pkg/utils"
)

const (
	defaultDetectTimeout = 5 * time.Second
	defaultEmbedTimeout  = 30 * time.Second

	// Number of lock stripes for per-identifier write serialization. Memory
	// stays bounded no matter how many identifiers pass through; two
	// identifiers sharing a stripe only costs a little contention.
	lockStripes = 64
)

// metadata key stamped on every ingested document.
const metaKeyAddedDate = "added_date"

// Indexer coordinates ingestion: language detection, embedding, and the
// atomic dual write to document store and vector index. Writes for the same
// identifier are serialized; different identifiers proceed in parallel.
type Indexer struct {
	store    store.DocumentStore
	index    vector.Index
	embedder embedding.Embedder
	detector language.Detector
	cache    *cache.StatsCache // optional; refreshed asynchronously after writes
	logger   *zap.Logger       // optional

	detectTimeout time.Duration
	embedTimeout  time.Duration

	locks [lockStripes]sync.Mutex // striped by identifier hash
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCache sets the stats cache to refresh after writes.
func WithCache(c *cache.StatsCache) Option {
	return func(idx *Indexer) { idx.cache = c }
}

// WithTimeouts overrides the detection and embedding call timeouts.
func WithTimeouts(detect, embed time.Duration) Option {
	return func(idx *Indexer) {
		if detect > 0 {
			idx.detectTimeout = detect
		}
		if embed > 0 {
			idx.embedTimeout = embed
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	st store.DocumentStore,
	idx vector.Index,
	embedder embedding.Embedder,
	detector language.Detector,
	opts ...Option,
) *Indexer {
	in := &Indexer{
		store:         st,
		index:         idx,
		embedder:      embedder,
		detector:      detector,
		detectTimeout: defaultDetectTimeout,
		embedTimeout:  defaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// AddDocuments ingests a batch. Each item gets its own outcome: a failure on
// one item never aborts its siblings. Cancelling ctx between items fails the
// remaining items but keeps completed ones committed. The cache refresh for
// successful identifiers is enqueued before returning; it runs in the
// background and is only guaranteed to be queued, not applied.
func (in *Indexer) AddDocuments(ctx context.Context, items []*models.DocumentInput) []*models.AddResult {
	results := make([]*models.AddResult, len(items))
	var added []string
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = &models.AddResult{Error: fmt.Sprintf("batch cancelled: %v", err)}
			continue
		}
		id, err := in.addOne(ctx, item)
		if err != nil {
			results[i] = &models.AddResult{Error: err.Error()}
			continue
		}
		results[i] = &models.AddResult{ID: id}
		added = append(added, id)
	}
	if len(added) > 0 && in.cache != nil {
		in.cache.Enqueue(added)
	}
	if in.logger != nil {
		in.logger.Info("batch ingested",
			zap.Int("items", len(items)),
			zap.Int("added", len(added)),
			zap.Int("failed", len(items)-len(added)),
		)
	}
	return results
}

// addOne processes a single item: clean, detect, embed, assign ID, commit.
func (in *Indexer) addOne(ctx context.Context, item *models.DocumentInput) (string, error) {
	text := utils.CleanText(item.Text)
	if text == "" {
		return "", errs.InvalidInput("text cannot be empty")
	}

	lang := in.detectLanguage(ctx, text)

	embedCtx, cancel := context.WithTimeout(ctx, in.embedTimeout)
	vec, err := in.embedder.Embed(embedCtx, text)
	cancel()
	if err != nil {
		// No vector means no index entry is possible, so the item fails.
		return "", errs.External("embedding", err)
	}

	id := uuid.New().String()
	doc := &models.Document{
		ID:       id,
		Text:     text,
		Language: lang,
		Metadata: stampMetadata(item.Metadata),
	}
	if err := in.commit(ctx, doc, vec); err != nil {
		return "", err
	}
	if in.logger != nil {
		in.logger.Debug("document indexed",
			zap.String("id", id),
			zap.String("language", lang),
			zap.String("text", utils.Truncate(text, 80)),
		)
	}
	return id, nil
}

// detectLanguage wraps the detection adapter with a timeout. Any failure,
// including a timeout, degrades to "unknown" rather than failing the item.
func (in *Indexer) detectLanguage(ctx context.Context, text string) string {
	detectCtx, cancel := context.WithTimeout(ctx, in.detectTimeout)
	defer cancel()
	lang, err := in.detector.Detect(detectCtx, text)
	if err != nil || lang == "" {
		if in.logger != nil {
			in.logger.Debug("language detection failed, using unknown", zap.Error(err))
		}
		return models.LanguageUnknown
	}
	return lang
}

// commit writes the document to both stores under the identifier's lock.
// Either both writes succeed or the store write is rolled back, so no
// observer sees the identifier in one store but not the other.
func (in *Indexer) commit(ctx context.Context, doc *models.Document, vec []float32) error {
	mu := in.lockFor(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	prev, _ := in.store.Get(ctx, doc.ID)
	if err := in.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := in.index.Upsert(ctx, doc.ID, vec); err != nil {
		// Roll the store back to its previous state for this identifier.
		if prev != nil {
			_ = in.store.Put(ctx, prev)
		} else {
			_ = in.store.Remove(ctx, doc.ID)
		}
		return fmt.Errorf("index vector: %w", err)
	}
	return nil
}

// RemoveDocument deletes a document from the index and the store. Removing
// the index entry first keeps search from surfacing an identifier the store
// no longer has.
func (in *Indexer) RemoveDocument(ctx context.Context, id string) error {
	mu := in.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	exists, err := in.store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return errs.NotFound("document", id)
	}
	if err := in.index.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove vector: %w", err)
	}
	if err := in.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	if in.cache != nil {
		in.cache.Enqueue([]string{id})
	}
	if in.logger != nil {
		in.logger.Debug("document removed", zap.String("id", id))
	}
	return nil
}

func (in *Indexer) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &in.locks[h.Sum32()%lockStripes]
}

// stampMetadata copies the caller's metadata (kept opaque) and records the
// ingestion time, matching what search returns for corpus documents.
func stampMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if _, ok := out[metaKeyAddedDate]; !ok {
		out[metaKeyAddedDate] = time.Now().Format(time.RFC3339)
	}
	return out
}
