package driven

import "context"

// GenerationService produces answers and descriptions from the
// reasoning model. It is optional; when nil, asking questions, image
// ingestion, media transcription and scanned-PDF OCR are unavailable
// while everything else keeps working.
type GenerationService interface {
	// Generate produces prose grounded in the supplied context chunks.
	// The model is instructed to cite chunks as [N] markers, which the
	// caller resolves against req.Context entries.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Transcribe converts an audio payload to text. The payload is one
	// bounded transcription window, not a whole file.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// DescribeImage produces a textual description of an image,
	// including any visible text. Used for image ingestion and as the
	// OCR fallback for scanned PDF pages.
	DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error)

	// Close releases resources.
	Close() error
}

// GenerateRequest carries the prompt, grounding context and history
// for one generation call.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Context      []ContextChunk
	History      []ConversationTurn
	MaxTokens    int
	Temperature  float32
}

// ContextChunk is one grounding passage offered to the model. ID is
// the chunk id the model cites with [N] markers.
type ContextChunk struct {
	ID        int64
	Content   string
	Source    string
	Page      *int
	Timestamp *float64
}

// ConversationTurn is a prior exchange replayed for continuity.
type ConversationTurn struct {
	Role    string
	Content string
}

// GenerateResponse is the model output plus usage accounting.
type GenerateResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}
