package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/tokkyo/internal/errs"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// It is the reference index for the volatile deployment; Save/Load provide
// best-effort persistence between runs.
type MemoryIndex struct {
	dimensions int
	entries    map[string]*indexEntry
	nextSeq    uint64
	mu         sync.RWMutex
}

type indexEntry struct {
	vec []float32
	seq uint64 // insertion sequence, breaks score ties deterministically
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		entries:    make(map[string]*indexEntry),
	}, nil
}

// Upsert stores or replaces the vector for id. Replacement assigns a fresh
// insertion sequence so the re-added document ranks as the newest among ties.
func (m *MemoryIndex) Upsert(ctx context.Context, id string, vec []float32) error {
	if id == "" {
		return errs.InvalidInput("vector id cannot be empty")
	}
	if len(vec) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	cp := make([]float32, m.dimensions)
	copy(cp, vec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &indexEntry{vec: cp, seq: m.nextSeq}
	m.nextSeq++
	return nil
}

// Remove deletes the vector for id; absent ids are a no-op.
func (m *MemoryIndex) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Query returns up to k matches with clipped cosine similarity >= threshold,
// sorted by descending score, ties broken by earlier insertion. An empty
// index yields an empty result, not an error.
func (m *MemoryIndex) Query(ctx context.Context, vec []float32, k int, threshold float64) ([]*Match, error) {
	if k <= 0 {
		return nil, errs.InvalidParameter("k must be positive, got %d", k)
	}
	if threshold < 0 || threshold > 1 {
		return nil, errs.InvalidParameter("threshold must be in [0,1], got %g", threshold)
	}
	if len(vec) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		id    string
		score float64
		seq   uint64
	}
	candidates := make([]scored, 0, len(m.entries))
	for id, e := range m.entries {
		score := CosineSimilarity(vec, e.vec)
		if score >= threshold {
			candidates = append(candidates, scored{id: id, score: score, seq: e.seq})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].seq < candidates[j].seq
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	matches := make([]*Match, k)
	for i := 0; i < k; i++ {
		matches[i] = &Match{ID: candidates[i].id, Score: candidates[i].score}
	}
	return matches, nil
}

// IDs returns all indexed identifiers in unspecified order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per entry: seq (8), idLen (4), id bytes,
// vector (dimension*4 bytes). An empty path is a no-op.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for id, e := range m.entries {
		if err := binary.Write(f, binary.LittleEndian, e.seq); err != nil {
			return fmt.Errorf("write seq: %w", err)
		}
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(e.vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*indexEntry, n)
	m.nextSeq = 0
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var seq uint64
		if err := binary.Read(f, binary.LittleEndian, &seq); err != nil {
			return fmt.Errorf("read seq: %w", err)
		}
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.entries[string(idBytes)] = &indexEntry{vec: bytesToFloat32Slice(buf), seq: seq}
		if seq >= m.nextSeq {
			m.nextSeq = seq + 1
		}
	}
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
