// Package image extracts searchable text from images by asking the
// vision client for a description.
package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// noTextPlaceholder keeps images without readable text indexable by
// title and metadata.
const noTextPlaceholder = "[Image with no detectable text]"

// Extractor describes images through the vision client.
type Extractor struct {
	vision driven.GenerationService
}

// New creates an image extractor. vision must be non-nil for
// extraction to succeed.
func New(vision driven.GenerationService) *Extractor {
	return &Extractor{vision: vision}
}

// Supports reports whether this extractor handles the file type.
func (e *Extractor) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypeImage
}

// Extract reads the image and returns the vision client's description.
// "No text" is a valid answer and yields a placeholder so the document
// still gets indexed.
func (e *Extractor) Extract(ctx context.Context, path string, _ driven.ProgressFunc) (domain.ExtractedContent, error) {
	if e.vision == nil {
		return domain.ExtractedContent{}, fmt.Errorf("no vision client configured: %w", domain.ErrExtractionFailed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("read %s: %w", path, domain.ErrExtractionFailed)
	}

	description, err := e.vision.DescribeImage(ctx, data, mimeForPath(path))
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("describe image %s: %v: %w", path, err, domain.ErrExtractionFailed)
	}

	description = strings.TrimSpace(description)
	if description == "" || description == "[NO TEXT DETECTED]" {
		return domain.ExtractedContent{Text: noTextPlaceholder}, nil
	}
	return domain.ExtractedContent{Text: description}, nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
