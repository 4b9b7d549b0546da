package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/tokkyo/internal/errs"
	"github.com/hyperjump/tokkyo/internal/models"
)

// MemoryStore is a volatile in-memory DocumentStore. Contents are lost at
// process teardown, matching the reference deployment.
type MemoryStore struct {
	docs map[string]*models.Document
	seq  map[string]uint64 // insertion sequence for stable List order
	next uint64
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*models.Document),
		seq:  make(map[string]uint64),
	}
}

// Put installs or overwrites a document. The stored copy is detached from
// the caller's struct so later mutations don't leak in.
func (s *MemoryStore) Put(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return errs.InvalidInput("document id cannot be empty")
	}
	if doc.Text == "" {
		return errs.InvalidInput("document text cannot be empty")
	}
	cp := *doc
	now := time.Now()
	cp.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.docs[doc.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
		s.seq[doc.ID] = s.next
		s.next++
	}
	s.docs[doc.ID] = &cp
	return nil
}

// Get returns the document for id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errs.NotFound("document", id)
	}
	cp := *doc
	return &cp, nil
}

// Exists reports whether id is stored.
func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

// Remove deletes the document for id; absent ids are a no-op.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.seq, id)
	return nil
}

// List returns documents in insertion order with offset/limit paging.
func (s *MemoryStore) List(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
	if offset < 0 {
		offset = 0
	}
	if offset > len(ids) {
		offset = len(ids)
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*models.Document, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *s.docs[id]
		out = append(out, &cp)
	}
	return out, nil
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

// LanguageCounts returns document counts per language code.
func (s *MemoryStore) LanguageCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, doc := range s.docs {
		counts[doc.Language]++
	}
	return counts, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
