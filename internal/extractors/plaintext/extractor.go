// Package plaintext extracts text and markdown files.
package plaintext

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor reads plain text and markdown files verbatim.
type Extractor struct{}

// New creates a plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supports reports whether this extractor handles the file type.
func (e *Extractor) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypeText || fileType == domain.FileTypeMarkdown
}

// Extract reads the whole file. An empty file is valid empty content.
// The read is a single unit of work, so progress is not reported.
func (e *Extractor) Extract(_ context.Context, path string, _ driven.ProgressFunc) (domain.ExtractedContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("read %s: %w", path, domain.ErrExtractionFailed)
	}
	return domain.ExtractedContent{Text: string(data)}, nil
}
