package driven

import "context"

// EmbeddingAdapter generates vector embeddings for chunk text. Embedding is
// optional in the ingestion pipeline: when no adapter is configured, chunks
// are written without vectors and can be backfilled later.
type EmbeddingAdapter interface {
	// Embed generates embeddings for a batch of chunk texts.
	// Returns one vector per input, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension count.
	Dimensions() int

	// Model returns the model identifier used for embedding.
	Model() string

	// HealthCheck verifies the embedding backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}
