package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestCorpusWatcher_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(path, []byte("first abstract\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var reloads []string
	w, err := NewCorpusWatcher(path, func(p string) {
		mu.Lock()
		reloads = append(reloads, p)
		mu.Unlock()
	}, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("first abstract\nsecond abstract\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloads) >= 1
	})
	if !ok {
		t.Fatal("reload callback was not invoked")
	}
	mu.Lock()
	got := reloads[0]
	mu.Unlock()
	abs, _ := filepath.Abs(path)
	if got != abs {
		t.Errorf("reload path = %q, want %q", got, abs)
	}
}

func TestCorpusWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(path, []byte("abstract\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	count := 0
	w, err := NewCorpusWatcher(path, func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated\n"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	got := count
	mu.Unlock()
	if got != 0 {
		t.Errorf("reload count = %d, want 0", got)
	}
}

func TestCorpusWatcher_DebounceCoalesces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(path, []byte("abstract\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	count := 0
	w, err := NewCorpusWatcher(path, func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("abstract rewrite\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	})
	if !ok {
		t.Fatal("reload callback was not invoked")
	}
	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	got := count
	mu.Unlock()
	if got != 1 {
		t.Errorf("reload count = %d, want 1 (writes should coalesce)", got)
	}
}

func TestCorpusWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(path, []byte("abstract\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewCorpusWatcher(path, func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
