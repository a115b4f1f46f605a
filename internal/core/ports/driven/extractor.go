package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// ProgressFunc reports the completed fraction of a long-running
// extraction, in [0, 1]. A non-nil return aborts the extraction with
// that error; it is how the caller cancels between units of work.
type ProgressFunc func(fraction float64) error

// Extractor converts a file of one declared type into normalised text
// with positional anchors.
type Extractor interface {
	// Extract reads the file at path and returns its content. Empty
	// content is a valid result; failure to read or decode is an error
	// wrapping domain.ErrExtractionFailed. progress may be nil;
	// extractors with per-unit work (pages, transcription windows) call
	// it between units and stop when it errors.
	Extract(ctx context.Context, path string, progress ProgressFunc) (domain.ExtractedContent, error)

	// Supports reports whether this extractor handles the file type.
	Supports(fileType domain.FileType) bool
}

// ExtractorRegistry resolves the extractor for a file type.
type ExtractorRegistry interface {
	// ForType returns the extractor registered for fileType, or
	// domain.ErrUnsupportedType when none is.
	ForType(fileType domain.FileType) (Extractor, error)
}
