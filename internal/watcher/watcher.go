// Package watcher reloads the corpus file when it changes on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// CorpusWatcher watches a single corpus file and invokes a reload callback
// when it is written or recreated. Editors often replace files instead of
// writing in place, so the parent directory is watched rather than the file
// itself.
type CorpusWatcher struct {
	path     string
	dir      string
	onReload func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a CorpusWatcher.
type Option func(*CorpusWatcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *CorpusWatcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *CorpusWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewCorpusWatcher creates a watcher for the corpus file at path. onReload is
// called with the path after changes settle.
func NewCorpusWatcher(path string, onReload func(path string), opts ...Option) (*CorpusWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &CorpusWatcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		onReload: onReload,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()
	if w.logger != nil {
		w.logger.Debug("corpus watcher started", zap.String("path", w.path))
	}
	go w.run(ctx, fsw)
	return nil
}

func (w *CorpusWatcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("corpus watcher error", zap.Error(err))
			}
		}
	}
}

func (w *CorpusWatcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if w.logger != nil {
		w.logger.Debug("corpus file changed", zap.String("op", ev.Op.String()))
	}
	w.scheduleReload()
}

func (w *CorpusWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.logger != nil {
			w.logger.Debug("reloading corpus", zap.String("path", w.path))
		}
		if w.onReload != nil {
			w.onReload(w.path)
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *CorpusWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
