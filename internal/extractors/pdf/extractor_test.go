package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return m.output, m.err
}

func TestNew(t *testing.T) {
	extractor := New()
	require.NotNil(t, extractor)
	assert.True(t, extractor.Supports(domain.FileTypePDF))
	assert.False(t, extractor.Supports(domain.FileTypeText))
}

func TestIsScanned(t *testing.T) {
	assert.True(t, isScanned(nil))
	assert.True(t, isScanned([]string{"", "", ""}))
	assert.True(t, isScanned([]string{"ab", "cd"}))

	long := "This page carries a normal amount of extracted text content."
	assert.False(t, isScanned([]string{long, long}))

	// Mixed: one dense page lifts the average over the threshold.
	assert.False(t, isScanned([]string{long + long + long, ""}))
}

func TestRepairLigatures(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"the speci c e ect", "the specific effect"},
		{"di erent work ows", "different workflows"},
		{"a signi cant bene t", "a significant benefit"},
		{"no damage here", "no damage here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, repairLigatures(tt.in))
	}
}

func TestExtract_ScannedWithoutVision(t *testing.T) {
	extractor := New(WithRunner(&mockRunner{err: errors.New("should not run")}))

	// Nonexistent file forces the OCR path, which needs a vision client.
	_, err := extractor.Extract(context.Background(), "/nonexistent/scan.pdf", nil)
	assert.ErrorIs(t, err, domain.ErrOCRUnavailable)
}

func TestExtract_OCRRenderFailure(t *testing.T) {
	vision := &stubVision{}
	extractor := New(
		WithVision(vision),
		WithRunner(&mockRunner{err: errors.New("pdftoppm not found")}),
	)

	_, err := extractor.Extract(context.Background(), "/nonexistent/scan.pdf", nil)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

// stubVision satisfies GenerationService for OCR tests.
type stubVision struct{}

func (s *stubVision) Generate(context.Context, driven.GenerateRequest) (*driven.GenerateResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubVision) Transcribe(context.Context, []byte, string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubVision) DescribeImage(context.Context, []byte, string) (string, error) {
	return "ocr text", nil
}

func (s *stubVision) Close() error { return nil }
