package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// rrfK is the Reciprocal Rank Fusion constant. It dampens the weight
// of top ranks so one leg cannot dominate the fused ordering.
const rrfK = 60

// rankedHit holds one leg's result before fusion.
type rankedHit struct {
	chunkID int64
	rank    int // 1-based position within its leg
}

// SearchService provides hybrid retrieval over the indexed corpus.
type SearchService struct {
	docStore     driven.DocumentStore
	searchEngine driven.SearchEngine
	vectorIndex  driven.VectorIndex
	embedder     driven.EmbeddingService
}

// NewSearchService creates a new search service. vectorIndex and
// embedder may be nil, in which case searches are lexical only.
func NewSearchService(
	docStore driven.DocumentStore,
	searchEngine driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
) *SearchService {
	return &SearchService{
		docStore:     docStore,
		searchEngine: searchEngine,
		vectorIndex:  vectorIndex,
		embedder:     embedder,
	}
}

// HybridSearch runs the lexical and vector legs in parallel, fuses
// their rankings with RRF and hydrates the winners.
func (s *SearchService) HybridSearch(ctx context.Context, query string, limit int, documentIDs []string) ([]domain.ChunkWithScore, error) {
	logger.Section("Hybrid Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrQueryRejected)
	}

	if limit <= 0 {
		limit = 10
	}

	// Each leg fetches more than the caller asked for so fusion has
	// candidates to work with.
	legLimit := limit * 2
	if len(documentIDs) > 0 {
		legLimit = limit * 3
		logger.Debug("Document filter: %d ids", len(documentIDs))
	}

	var lexical, vector []rankedHit
	var lexicalErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexical, lexicalErr = s.lexicalLeg(ctx, query, legLimit, documentIDs)
	}()

	go func() {
		defer wg.Done()
		vector, vectorErr = s.vectorLeg(ctx, query, legLimit, documentIDs)
	}()

	wg.Wait()

	if lexicalErr != nil && vectorErr != nil {
		logger.Warn("Both search legs failed: lexical=%v, vector=%v", lexicalErr, vectorErr)
		return nil, fmt.Errorf("lexical: %v, vector: %v: %w", lexicalErr, vectorErr, domain.ErrSearchUnavailable)
	}
	if lexicalErr != nil {
		logger.Warn("Lexical leg failed, degrading to vector only: %v", lexicalErr)
	}
	if vectorErr != nil {
		logger.Warn("Vector leg failed, degrading to lexical only: %v", vectorErr)
	}

	logger.Debug("Fusing %d lexical + %d vector hits", len(lexical), len(vector))
	fused := reciprocalRankFusion(lexical, vector)

	if len(fused) > limit {
		fused = fused[:limit]
	}

	results, err := s.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}
	logger.Info("Search returned %d results", len(results))
	return results, nil
}

// lexicalLeg runs the BM25 keyword search.
func (s *SearchService) lexicalLeg(ctx context.Context, query string, limit int, documentIDs []string) ([]rankedHit, error) {
	if s.searchEngine == nil {
		return nil, fmt.Errorf("search engine unavailable")
	}

	hits, err := s.searchEngine.Search(ctx, query, limit, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	ranked := make([]rankedHit, len(hits))
	for i, hit := range hits {
		ranked[i] = rankedHit{chunkID: hit.ChunkID, rank: i + 1}
	}
	return ranked, nil
}

// vectorLeg embeds the query and runs the similarity search.
func (s *SearchService) vectorLeg(ctx context.Context, query string, limit int, documentIDs []string) ([]rankedHit, error) {
	if s.vectorIndex == nil || s.embedder == nil {
		return nil, fmt.Errorf("vector search unavailable")
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.vectorIndex.Search(ctx, embedding, limit, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	ranked := make([]rankedHit, len(hits))
	for i, hit := range hits {
		ranked[i] = rankedHit{chunkID: hit.ChunkID, rank: i + 1}
	}
	return ranked, nil
}

// fusedHit is a chunk's combined standing after RRF.
type fusedHit struct {
	chunkID  int64
	score    float64
	bestRank int
}

// reciprocalRankFusion merges two ranked lists. Each appearance at
// 1-based rank r contributes 1/(k+r); ties break on the better
// individual rank, then on chunk ID for determinism.
func reciprocalRankFusion(lists ...[]rankedHit) []fusedHit {
	byID := make(map[int64]*fusedHit)

	for _, list := range lists {
		for _, hit := range list {
			f, ok := byID[hit.chunkID]
			if !ok {
				f = &fusedHit{chunkID: hit.chunkID, bestRank: hit.rank}
				byID[hit.chunkID] = f
			}
			f.score += 1.0 / float64(rrfK+hit.rank)
			if hit.rank < f.bestRank {
				f.bestRank = hit.rank
			}
		}
	}

	fused := make([]fusedHit, 0, len(byID))
	for _, f := range byID {
		fused = append(fused, *f)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].bestRank != fused[j].bestRank {
			return fused[i].bestRank < fused[j].bestRank
		}
		return fused[i].chunkID < fused[j].chunkID
	})
	return fused
}

// hydrate loads the fused chunks and their document titles. Chunks
// deleted since the leg searches ran are silently skipped.
func (s *SearchService) hydrate(ctx context.Context, fused []fusedHit) ([]domain.ChunkWithScore, error) {
	if len(fused) == 0 {
		return []domain.ChunkWithScore{}, nil
	}

	ids := make([]int64, len(fused))
	scores := make(map[int64]float64, len(fused))
	for i, f := range fused {
		ids[i] = f.chunkID
		scores[f.chunkID] = f.score
	}

	chunks, err := s.docStore.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}

	// Cache document lookups, several chunks usually share one.
	docCache := make(map[string]*domain.Document)

	results := make([]domain.ChunkWithScore, 0, len(chunks))
	for _, chunk := range chunks {
		doc, ok := docCache[chunk.DocumentID]
		if !ok {
			doc, err = s.docStore.GetDocument(ctx, chunk.DocumentID)
			if errors.Is(err, domain.ErrNotFound) {
				// Deleted between the leg searches and hydration.
				logger.Debug("Skipping chunk %d: document %s gone", chunk.ID, chunk.DocumentID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("loading document %s: %w", chunk.DocumentID, err)
			}
			docCache[chunk.DocumentID] = doc
		}

		results = append(results, domain.ChunkWithScore{
			Chunk:         chunk,
			DocumentTitle: doc.Title,
			FilePath:      doc.FilePath,
			Score:         scores[chunk.ID],
		})
	}
	return results, nil
}
