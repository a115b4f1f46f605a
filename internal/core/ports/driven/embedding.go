package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations wrap a remote provider behind a shared rate limiter;
// callers set a deadline on ctx and receive domain.ErrRateLimitTimeout
// when capacity does not free up in time.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// order. More efficient than calling Embed in a loop.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size. Must match the
	// vector index configuration.
	Dimensions() int

	// ModelName returns the provider model in use.
	ModelName() string

	// Close releases resources.
	Close() error
}
