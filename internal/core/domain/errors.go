package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core domain. Callers discriminate with
// errors.Is; services wrap these with fmt.Errorf("...: %w", err) to add
// context without losing the sentinel.
var (
	// ErrNotFound indicates a requested document, chunk or conversation
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAdmissionDenied indicates the trial document limit was reached
	// and no valid licence key is configured. The submitted file leaves
	// no document record behind.
	ErrAdmissionDenied = errors.New("document limit reached")

	// ErrCancelled indicates an in-flight ingestion was cancelled at a
	// stage checkpoint. No partial chunks are committed.
	ErrCancelled = errors.New("ingestion cancelled")

	// ErrUnsupportedType indicates no extractor is registered for the
	// file's type.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExtractionFailed indicates an extractor could not produce
	// content, as opposed to producing legitimately empty content.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrFileTooLarge indicates the file exceeds the ingestion size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrRateLimitTimeout indicates the caller's deadline expired while
	// waiting for embedding rate-limit capacity.
	ErrRateLimitTimeout = errors.New("rate limit wait exceeded deadline")

	// ErrIndexWrite indicates the transactional dual-index commit failed;
	// neither index was modified.
	ErrIndexWrite = errors.New("index write failed")

	// ErrQueryRejected indicates a search query was empty or reduced to
	// nothing after sanitisation.
	ErrQueryRejected = errors.New("query rejected")

	// ErrSearchUnavailable indicates both retrieval legs failed and no
	// results can be returned.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrOCRUnavailable indicates a scanned document needed OCR but no
	// vision-capable client is configured.
	ErrOCRUnavailable = errors.New("ocr unavailable")

	// ErrInvalidLicense indicates a licence key failed format or
	// checksum validation.
	ErrInvalidLicense = errors.New("invalid license key")
)

// EmbeddingError classifies an embedding provider failure so the
// rate-limited client can decide whether to retry. Transient failures
// (HTTP 5xx, network errors) are retried with backoff; permanent ones
// (4xx) are returned immediately.
type EmbeddingError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *EmbeddingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding provider error: %s", e.Message)
}

// IsTransientEmbeddingError reports whether err is an embedding failure
// worth retrying.
func IsTransientEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee) && ee.Transient
}
