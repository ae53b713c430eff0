// Package embedding wraps the embedding model behind a batching gateway.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch returns one
// vector per input, in input order; implementations send the whole batch
// as a single model invocation when the backend allows it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
