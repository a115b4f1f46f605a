package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *GenerationService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewGenerationService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return svc
}

func textResponse(text string) geminiResponse {
	return geminiResponse{
		Candidates: []candidate{
			{Content: &candidateContent{Parts: []geminiPart{{Text: text}}}},
		},
	}
}

func TestGenerate_ContextAndHistory(t *testing.T) {
	var got geminiRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(textResponse("The answer is in [12]."))
	})

	page := 3
	resp, err := svc.Generate(context.Background(), driven.GenerateRequest{
		Prompt:       "What does the report say?",
		SystemPrompt: "Cite your sources.",
		Context: []driven.ContextChunk{
			{ID: 12, Content: "Quarterly revenue rose.", Source: "report.pdf", Page: &page},
		},
		History: []driven.ConversationTurn{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is in [12].", resp.Content)

	// History turns come first, then the prompt with context prepended.
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)

	last := got.Contents[2].Parts[0].Text
	assert.Contains(t, last, `<chunk id="12" source="report.pdf" page="3">`)
	assert.Contains(t, last, "What does the report say?")

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "Cite your sources.", got.SystemInstruction.Parts[0].Text)
}

func TestTranscribe_InlineData(t *testing.T) {
	var got geminiRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(textResponse("hello from the audio"))
	})

	text, err := svc.Transcribe(context.Background(), []byte("audio-bytes"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "hello from the audio", text)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	require.NotNil(t, got.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "audio/mpeg", got.Contents[0].Parts[1].InlineData.MimeType)
	// No system instruction alongside inline data.
	assert.Nil(t, got.SystemInstruction)
}

func TestDescribeImage(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse("[NO TEXT DETECTED]"))
	})

	text, err := svc.DescribeImage(context.Background(), []byte{0xFF}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "[NO TEXT DETECTED]", text)
}

func TestGenerate_APIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid argument"}}`))
	})

	_, err := svc.Generate(context.Background(), driven.GenerateRequest{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestNewGenerationService_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerationService(Config{})
	assert.Error(t, err)
}
