package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewEmbeddingService(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":embedContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/gemini-embedding-001", req.Model)
		assert.Equal(t, DefaultDimensions, req.OutputDimensionality)

		json.NewEncoder(w).Encode(embedResponse{
			Embedding: embeddingValues{Values: []float32{0.1, 0.2, 0.3}},
		})
	})

	vec, err := svc.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedBatch_SplitsLargeBatches(t *testing.T) {
	var batchSizes []int
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batchSizes = append(batchSizes, len(req.Requests))

		resp := batchEmbedResponse{Embeddings: make([]embeddingValues, len(req.Requests))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = embeddingValues{Values: []float32{float32(i)}}
		}
		json.NewEncoder(w).Encode(resp)
	})

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = "text"
	}

	out, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, out, 150)
	assert.Equal(t, []int{100, 50}, batchSizes)
}

func TestEmbed_ServerErrorIsTransient(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	})

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsTransientEmbeddingError(err))

	var ee *domain.EmbeddingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, http.StatusInternalServerError, ee.StatusCode)
}

func TestEmbed_ClientErrorIsPermanent(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, domain.IsTransientEmbeddingError(err))
}

func TestEmbed_TooManyRequestsIsTransient(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, domain.IsTransientEmbeddingError(err))
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	svc := newTestService(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for empty input")
	})

	out, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
