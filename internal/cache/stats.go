// Package cache maintains a derived, rebuildable view of index statistics.
//
// The cache is best-effort: it mirrors per-language document counts, index
// size, and recently written identifiers. Losing it loses speed, never data;
// cold reads recompute from the document store and vector index.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/tokkyo/internal/store"
	"github.com/hyperjump/tokkyo/internal/vector"
)

const defaultRecentCap = 20

// Stats is a snapshot of the derived view. Snapshots are immutable once
// published; readers never see a half-written refresh.
type Stats struct {
	TotalDocuments int64            `json:"total_documents"`
	IndexSize      int              `json:"index_size"`
	Languages      map[string]int64 `json:"languages"`
	RecentIDs      []string         `json:"recent_ids"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// StatsCache is the cache layer between the document store and the vector
// index. Writers enqueue refreshes; a worker pool applies them in the
// background. Readers get the last complete snapshot.
type StatsCache struct {
	store     store.DocumentStore
	index     vector.Index
	logger    *zap.Logger
	recentCap int

	mu     sync.RWMutex
	snap   *Stats   // nil = cold; next read rebuilds
	recent []string // newest first, deduplicated, capped at recentCap

	queue     chan []string
	workers   sync.WaitGroup
	pending   sync.WaitGroup
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// Option configures a StatsCache.
type Option func(*StatsCache)

// WithLogger sets a logger for refresh failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *StatsCache) { c.logger = l }
}

// WithRecentCap sets how many recent identifiers the view keeps.
func WithRecentCap(n int) Option {
	return func(c *StatsCache) {
		if n > 0 {
			c.recentCap = n
		}
	}
}

// NewStatsCache creates the cache and starts workers goroutines consuming a
// refresh queue of queueSize.
func NewStatsCache(st store.DocumentStore, idx vector.Index, workers, queueSize int, opts ...Option) *StatsCache {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &StatsCache{
		store:     st,
		index:     idx,
		recentCap: defaultRecentCap,
		queue:     make(chan []string, queueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go c.worker()
	}
	return c
}

func (c *StatsCache) worker() {
	defer c.workers.Done()
	for ids := range c.queue {
		if err := c.Refresh(context.Background(), ids); err != nil && c.logger != nil {
			c.logger.Warn("cache refresh failed", zap.Strings("ids", ids), zap.Error(err))
		}
		c.pending.Done()
	}
}

// Enqueue hands a set of recently written identifiers to the worker pool.
// It returns once the job is queued, not once it has run. Calls after Close
// are dropped.
func (c *StatsCache) Enqueue(ids []string) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return
	}
	cp := make([]string, len(ids))
	copy(cp, ids)
	c.pending.Add(1)
	c.queue <- cp
}

// Wait blocks until all enqueued refreshes have completed. Tests use it
// instead of assuming immediate consistency.
func (c *StatsCache) Wait() {
	c.pending.Wait()
}

// Refresh recomputes the view for a set of recently written identifiers.
// Counts are recomputed from the authoritative stores, so running the same
// refresh twice yields the same cache state.
func (c *StatsCache) Refresh(ctx context.Context, ids []string) error {
	snap, err := c.compute(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = mergeRecent(c.recent, ids, c.recentCap)
	snap.RecentIDs = append([]string(nil), c.recent...)
	c.snap = snap
	return nil
}

// InvalidateAll drops the cached view. The next read rebuilds it from the
// document store and vector index.
func (c *StatsCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.recent = nil
}

// Stats returns the last complete snapshot, rebuilding it synchronously when
// the cache is cold. A miss degrades latency, not correctness.
func (c *StatsCache) Stats(ctx context.Context) (*Stats, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	snap, err := c.compute(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		snap.RecentIDs = append([]string(nil), c.recent...)
		c.snap = snap
	}
	return c.snap, nil
}

// compute rebuilds a snapshot from the authoritative stores. It runs without
// holding the cache lock so readers never block on a refresh in progress.
func (c *StatsCache) compute(ctx context.Context) (*Stats, error) {
	var (
		total     int64
		languages map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.store.Count(gctx)
		total = n
		return err
	})
	g.Go(func() error {
		counts, err := c.store.LanguageCounts(gctx)
		languages = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Stats{
		TotalDocuments: total,
		IndexSize:      c.index.Size(),
		Languages:      languages,
		UpdatedAt:      time.Now(),
	}, nil
}

// Close stops the worker pool after draining queued refreshes.
func (c *StatsCache) Close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		c.closeMu.Unlock()
		close(c.queue)
		c.workers.Wait()
	})
}

// mergeRecent prepends ids to recent (newest first), removing duplicates and
// capping the result. Merging the same ids twice is a no-op.
func mergeRecent(recent, ids []string, limit int) []string {
	seen := make(map[string]bool, len(ids)+len(recent))
	out := make([]string, 0, limit)
	for i := len(ids) - 1; i >= 0; i-- {
		if !seen[ids[i]] {
			seen[ids[i]] = true
			out = append(out, ids[i])
		}
	}
	for _, id := range recent {
		if len(out) >= limit {
			break
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
