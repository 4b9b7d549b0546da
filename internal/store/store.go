// Package store defines document persistence for patent abstracts.
package store

import (
	"context"

	"github.com/hyperjump/tokkyo/internal/models"
)

// DocumentStore is the source of truth for document text, metadata, and
// detected language. Vectors live in the vector index; the two must stay
// referentially consistent.
type DocumentStore interface {
	// Put installs or overwrites a document. Empty text is rejected.
	Put(ctx context.Context, doc *models.Document) error
	// Get returns the document for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Document, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Remove deletes the document for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.Document, error)
	Count(ctx context.Context) (int64, error)
	// LanguageCounts returns the number of documents per language code.
	LanguageCounts(ctx context.Context) (map[string]int64, error)
	Close() error
}
