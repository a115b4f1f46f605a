package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

func seedChunks(docStore *mockDocStore, documentID string, contents ...string) []int64 {
	docStore.docs[documentID] = &domain.Document{
		ID:       documentID,
		Title:    documentID + ".txt",
		FilePath: "/files/" + documentID + ".txt",
		Status:   domain.StatusCompleted,
	}
	ids := make([]int64, len(contents))
	for i, content := range contents {
		ids[i] = docStore.addChunk(domain.Chunk{
			DocumentID: documentID,
			Index:      i,
			Content:    content,
		})
	}
	return ids
}

func TestHybridSearch_FusesBothLegs(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "alpha", "beta", "gamma")

	// Chunk ids[1] appears in both legs and must outrank single-leg
	// hits that rank first in only one list.
	engine := &mockSearchEngine{hits: []driven.SearchHit{
		{ChunkID: ids[0], Score: 9.0},
		{ChunkID: ids[1], Score: 5.0},
	}}
	vectors := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: ids[1], Similarity: 0.9},
		{ChunkID: ids[2], Similarity: 0.4},
	}}
	svc := NewSearchService(docStore, engine, vectors, &mockEmbedder{embedding: []float32{1, 0}})

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ids[1], results[0].Chunk.ID)
	// Both-legs score: 1/(60+2) + 1/(60+1).
	assert.InDelta(t, 1.0/62+1.0/61, results[0].Score, 1e-9)
	// Single-leg rank-1 score: 1/(60+1).
	assert.InDelta(t, 1.0/61, results[1].Score, 1e-9)
}

func TestHybridSearch_TieBreaksOnBestRankThenID(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "a", "b")

	// Both chunks score 1/(60+1): each is rank 1 in exactly one leg.
	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[1], Score: 1}}}
	vectors := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: ids[0], Similarity: 1}}}
	svc := NewSearchService(docStore, engine, vectors, &mockEmbedder{embedding: []float32{1}})

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Equal score and equal best rank: lower chunk id wins.
	assert.Equal(t, ids[0], results[0].Chunk.ID)
	assert.Equal(t, ids[1], results[1].Chunk.ID)
}

func TestHybridSearch_DegradesWhenOneLegFails(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "only lexical")

	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[0], Score: 2}}}
	vectors := &mockVectorIndex{searchErr: errors.New("index offline")}
	svc := NewSearchService(docStore, engine, vectors, &mockEmbedder{embedding: []float32{1}})

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[0], results[0].Chunk.ID)
}

func TestHybridSearch_BothLegsFailing(t *testing.T) {
	docStore := newMockDocStore()

	engine := &mockSearchEngine{searchErr: errors.New("fts broken")}
	vectors := &mockVectorIndex{searchErr: errors.New("index offline")}
	svc := NewSearchService(docStore, engine, vectors, &mockEmbedder{embedding: []float32{1}})

	_, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestHybridSearch_EmbeddingFailureDegradesToLexical(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "still findable")

	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[0], Score: 2}}}
	vectors := &mockVectorIndex{}
	svc := NewSearchService(docStore, engine, vectors, &mockEmbedder{embedErr: errors.New("quota")})

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// The vector index was never queried without an embedding.
	assert.Equal(t, 0, vectors.calls)
}

func TestHybridSearch_LexicalOnlyWithoutVectorServices(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "plain setup")

	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[0], Score: 2}}}
	svc := NewSearchService(docStore, engine, nil, nil)

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHybridSearch_EmptyQueryRejected(t *testing.T) {
	svc := NewSearchService(newMockDocStore(), &mockSearchEngine{}, nil, nil)

	_, err := svc.HybridSearch(context.Background(), "   ", 10, nil)
	assert.ErrorIs(t, err, domain.ErrQueryRejected)
}

func TestHybridSearch_SkipsDeletedChunks(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "kept", "removed")

	engine := &mockSearchEngine{hits: []driven.SearchHit{
		{ChunkID: ids[1], Score: 5},
		{ChunkID: ids[0], Score: 3},
	}}
	svc := NewSearchService(docStore, engine, nil, nil)

	// The second chunk disappears between the leg search and hydration.
	docStore.mu.Lock()
	delete(docStore.chunks, ids[1])
	docStore.mu.Unlock()

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[0], results[0].Chunk.ID)
}

func TestHybridSearch_SkipsChunksOfDeletedDocuments(t *testing.T) {
	docStore := newMockDocStore()
	kept := seedChunks(docStore, "kept", "still here")
	gone := seedChunks(docStore, "gone", "orphaned")

	engine := &mockSearchEngine{hits: []driven.SearchHit{
		{ChunkID: gone[0], Score: 5},
		{ChunkID: kept[0], Score: 3},
	}}
	svc := NewSearchService(docStore, engine, nil, nil)

	// The document vanishes but its chunk row lingers.
	docStore.mu.Lock()
	delete(docStore.docs, "gone")
	docStore.mu.Unlock()

	results, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept[0], results[0].Chunk.ID)
}

func TestHybridSearch_DocumentLookupFailureSurfaces(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "content")

	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[0], Score: 2}}}
	svc := NewSearchService(docStore, engine, nil, nil)

	// A transient store error is not a missing document and must not be
	// swallowed.
	docStore.getErr = errors.New("database is locked")

	_, err := svc.HybridSearch(context.Background(), "query", 10, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "database is locked")
}

func TestHybridSearch_HydratesDocumentMetadata(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "report", "annual figures")

	engine := &mockSearchEngine{hits: []driven.SearchHit{{ChunkID: ids[0], Score: 2}}}
	svc := NewSearchService(docStore, engine, nil, nil)

	results, err := svc.HybridSearch(context.Background(), "figures", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "report.txt", results[0].DocumentTitle)
	assert.Equal(t, "/files/report.txt", results[0].FilePath)
}

func TestHybridSearch_RespectsLimit(t *testing.T) {
	docStore := newMockDocStore()
	ids := seedChunks(docStore, "doc", "one", "two", "three", "four")

	hits := make([]driven.SearchHit, len(ids))
	for i, id := range ids {
		hits[i] = driven.SearchHit{ChunkID: id, Score: float64(len(ids) - i)}
	}
	engine := &mockSearchEngine{hits: hits}
	svc := NewSearchService(docStore, engine, nil, nil)

	results, err := svc.HybridSearch(context.Background(), "query", 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestReciprocalRankFusion_Deterministic(t *testing.T) {
	lexical := []rankedHit{{chunkID: 3, rank: 1}, {chunkID: 1, rank: 2}}
	vector := []rankedHit{{chunkID: 1, rank: 1}, {chunkID: 2, rank: 2}}

	first := reciprocalRankFusion(lexical, vector)
	for i := 0; i < 10; i++ {
		again := reciprocalRankFusion(lexical, vector)
		assert.Equal(t, first, again)
	}

	require.Len(t, first, 3)
	assert.Equal(t, int64(1), first[0].chunkID)
}
