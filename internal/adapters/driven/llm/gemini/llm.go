// Package gemini provides a generation service adapter using the
// Gemini API: grounded answering, audio transcription and image
// description.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure GenerationService implements the interface.
var _ driven.GenerationService = (*GenerationService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 120 * time.Second
)

const transcribePrompt = "Transcribe the following audio. Provide a verbatim transcription. Output only the transcription text."

const describePrompt = "Extract ALL text from this image. Output only the raw text, preserving formatting. If no text is visible, output: [NO TEXT DETECTED]"

// Config holds configuration for the Gemini generation service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL is the API base URL. Changed only in tests.
	BaseURL string

	// Model is the reasoning model to use (default: gemini-2.0-flash).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// GenerationService calls the Gemini generateContent endpoint.
type GenerationService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Gemini API request/response shapes. Parts are modelled as a struct
// with optional fields rather than a union; the API accepts either
// text or inline_data per part.
type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type systemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent    `json:"contents"`
	SystemInstruction *systemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  *generationConfig  `json:"generation_config,omitempty"`
}

type candidateContent struct {
	Parts []geminiPart `json:"parts"`
}

type candidate struct {
	Content *candidateContent `json:"content"`
}

type geminiResponse struct {
	Candidates    []candidate `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewGenerationService creates a new Gemini generation service.
func NewGenerationService(cfg Config) (*GenerationService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &GenerationService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Generate produces grounded prose. Context chunks are serialised as
// tagged blocks ahead of the question; history is replayed as
// alternating user/model turns.
func (s *GenerationService) Generate(ctx context.Context, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	var contents []geminiContent

	for _, turn := range req.History {
		role := "model"
		if turn.Role == "user" {
			role = "user"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: turn.Content}},
		})
	}

	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: buildContextBlock(req.Context) + req.Prompt}},
	})

	body := geminiRequest{Contents: contents}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &systemInstruction{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.GenerationConfig = &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	resp, err := s.generateContent(ctx, body)
	if err != nil {
		return nil, err
	}

	out := &driven.GenerateResponse{Content: firstText(resp)}
	if resp.UsageMetadata != nil {
		out.PromptTokens = resp.UsageMetadata.PromptTokenCount
		out.CompletionTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// buildContextBlock renders retrieval context as chunk-tagged XML the
// model can cite by id.
func buildContextBlock(chunks []driven.ContextChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<context>\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, `<chunk id="%d" source="%s"`, c.ID, c.Source)
		if c.Page != nil {
			fmt.Fprintf(&b, ` page="%d"`, *c.Page)
		}
		if c.Timestamp != nil {
			fmt.Fprintf(&b, ` timestamp="%g"`, *c.Timestamp)
		}
		fmt.Fprintf(&b, ">%s</chunk>\n", c.Content)
	}
	b.WriteString("</context>\n\n")
	return b.String()
}

// Transcribe sends one audio window as inline data.
func (s *GenerationService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	// Instruction goes in the text part; system_instruction is
	// unreliable alongside inline data.
	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: transcribePrompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}

	resp, err := s.generateContent(ctx, body)
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

// DescribeImage asks the model to read all visible text off an image.
func (s *GenerationService) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: describePrompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: 16384,
			Temperature:     0.1,
		},
	}

	resp, err := s.generateContent(ctx, body)
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

func (s *GenerationService) generateContent(ctx context.Context, body geminiRequest) (*geminiResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("gemini error: %s", resp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini error (status %d): %s", httpResp.StatusCode, string(respBody))
	}
	return &resp, nil
}

// firstText pulls the first text part of the first candidate.
func firstText(resp *geminiResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// Close releases resources.
func (s *GenerationService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
