// Package embedding provides multilingual text embedding adapters.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. The
// dimension is fixed for the lifetime of the process. Implementations clean
// the input text (whitespace collapse, control character stripping) before
// embedding, so equivalent texts map to the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
