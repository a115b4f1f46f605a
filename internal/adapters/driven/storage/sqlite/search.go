package sqlite

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// ==================== Search Engine (FTS5) ====================

// searchEngine implements driven.SearchEngine over the chunks_fts
// virtual table.
type searchEngine struct {
	store *Store
}

var _ driven.SearchEngine = (*searchEngine)(nil)

// Search runs a BM25 keyword search. Scores are negated bm25() values
// so that higher is better.
func (s *searchEngine) Search(ctx context.Context, query string, limit int, documentIDs []string) ([]driven.SearchHit, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("query %q is empty after sanitisation: %w", query, domain.ErrQueryRejected)
	}
	if limit <= 0 {
		limit = 10
	}

	sql := `
		SELECT c.id, -bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{ftsQuery}

	if len(documentIDs) > 0 {
		sql += ` AND c.document_id IN (` + placeholders(len(documentIDs)) + `)`
		for _, id := range documentIDs {
			args = append(args, id)
		}
	}

	sql += ` ORDER BY bm25(chunks_fts) LIMIT ?`
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.SearchHit
		if err := rows.Scan(&hit.ChunkID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}

// prepareFTSQuery sanitises free text into an FTS5 MATCH expression.
// Characters with FTS5 syntax meaning become spaces; one-letter words
// are dropped. A single word becomes a prefix query, several words
// become the quoted phrase OR'd with each word's prefix query.
func prepareFTSQuery(query string) string {
	var b strings.Builder
	for _, c := range query {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '\'' || c == '.' || c == ',':
			b.WriteRune(c)
		case c > 127 && isLetterOrDigit(c):
			b.WriteRune(c)
		default:
			b.WriteRune(' ')
		}
	}

	sanitized := strings.TrimSpace(b.String())
	if sanitized == "" {
		return ""
	}

	var words []string
	for _, w := range strings.Fields(sanitized) {
		if len(w) > 1 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return ""
	}

	// Every term is quoted so that words like AND or NOT cannot be
	// read as FTS5 operators.
	if len(words) == 1 {
		return fmt.Sprintf("%q*", words[0])
	}

	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = fmt.Sprintf("%q*", w)
	}
	return fmt.Sprintf("%q OR %s", strings.Join(words, " "), strings.Join(terms, " OR "))
}

func isLetterOrDigit(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x00C0 // accept non-ASCII letters wholesale
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex with a brute-force cosine
// scan over the embeddings table. Personal corpora are small enough
// that a full scan beats maintaining an ANN structure.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Search returns the k most similar chunks to the query vector.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]driven.VectorHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector: %w", domain.ErrQueryRejected)
	}
	if k <= 0 {
		k = 10
	}

	sql := `
		SELECT e.chunk_id, e.vector
		FROM embeddings e`
	var args []any

	if len(documentIDs) > 0 {
		sql += `
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id IN (` + placeholders(len(documentIDs)) + `)`
		for _, id := range documentIDs {
			args = append(args, id)
		}
	}

	rows, err := v.store.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("embedding scan: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunkID int64
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}

		vec := bytesToFloat32Slice(blob)
		if len(vec) != len(query) {
			continue // dimension mismatch from an older model; skip
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: cosineSimilarity(query, vec),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Zero vectors yield zero similarity.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
