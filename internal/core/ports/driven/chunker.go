package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// Chunker splits extracted content into token-bounded, overlapping
// chunks with anchors propagated from the source shape.
type Chunker interface {
	// Chunk splits content for documentID. Deterministic: identical
	// input and settings yield identical chunks. Zero chunks is a
	// valid result for empty content.
	Chunk(ctx context.Context, documentID string, content domain.ExtractedContent) ([]domain.Chunk, error)
}
