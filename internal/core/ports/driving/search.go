package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// SearchService answers queries against the indexed corpus.
type SearchService interface {
	// HybridSearch runs the lexical and vector legs in parallel and
	// fuses their rankings. documentIDs, when non-empty, restricts the
	// search. One failed leg degrades to the other with a warning;
	// both failing is domain.ErrSearchUnavailable.
	HybridSearch(ctx context.Context, query string, limit int, documentIDs []string) ([]domain.ChunkWithScore, error)
}
