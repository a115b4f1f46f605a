package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// IndexWriter commits chunk sets atomically across the lexical and
// vector indexes. A commit replaces the document's previous chunk set;
// until it returns, the previous set remains searchable.
type IndexWriter interface {
	// Commit replaces documentID's chunks with the given set in one
	// transaction, writing both index entries and embeddings. Returns
	// the store-assigned chunk IDs in input order. A failure leaves
	// both indexes untouched and is reported as domain.ErrIndexWrite.
	Commit(ctx context.Context, documentID string, chunks []domain.Chunk) ([]int64, error)

	// Delete removes all of documentID's chunks from both indexes.
	Delete(ctx context.Context, documentID string) error
}

// SearchEngine provides full-text search over committed chunks.
// Backed by SQLite FTS5 for BM25 keyword search.
type SearchEngine interface {
	// Search performs a keyword search and returns matching chunk IDs
	// with scores, best first. documentIDs, when non-empty, restricts
	// the search to those documents. An unusable query (empty after
	// sanitisation) is reported as domain.ErrQueryRejected.
	Search(ctx context.Context, query string, limit int, documentIDs []string) ([]SearchHit, error)
}

// SearchHit is a lexical search result.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// Score is the relevance score (BM25, higher is better).
	Score float64
}

// VectorIndex provides semantic similarity search over committed
// chunk embeddings.
type VectorIndex interface {
	// Search finds the k most similar chunks to the query vector.
	// documentIDs, when non-empty, restricts the search.
	Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]VectorHit, error)
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID int64

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}
