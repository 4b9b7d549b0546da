// Package vector provides the in-memory vector index and similarity search.
package vector

import "context"

// Index defines vector storage and cosine similarity search over document IDs.
type Index interface {
	// Upsert stores or replaces the vector for id. A replaced id is treated
	// as newly inserted for tie-breaking purposes (last write wins).
	Upsert(ctx context.Context, id string, vec []float32) error
	// Remove deletes the vector for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error
	// Query returns up to k matches with similarity >= threshold, sorted by
	// descending score; equal scores rank earlier-inserted entries first.
	// k must be positive and threshold in [0,1].
	Query(ctx context.Context, vec []float32, k int, threshold float64) ([]*Match, error)
	// IDs returns all indexed identifiers, for consistency audits.
	IDs() []string
	Size() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// Match is a single vector search hit.
type Match struct {
	ID    string
	Score float64 // cosine similarity clipped to [0,1]
}
