package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// IngestionService drives files through the extraction, chunking,
// embedding and indexing pipeline.
type IngestionService interface {
	// IngestFile submits one file. Idempotent on (path, hash): an
	// unchanged completed document is returned as-is, a changed file
	// re-enters the pipeline under the same ID, and an identical file
	// at a new path updates the stored path only. New documents are
	// subject to admission (domain.ErrAdmissionDenied).
	IngestFile(ctx context.Context, path string) (*domain.Document, error)

	// IngestDirectory ingests every supported file under root, walking
	// subdirectories only when recursive is set. Per-file failures are
	// recorded on the document, not returned.
	IngestDirectory(ctx context.Context, root string, recursive bool) ([]domain.Document, error)

	// ReingestDocument re-runs the pipeline for an existing document.
	ReingestDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// CancelIngestion flags an in-flight ingestion; the pipeline stops
	// at its next checkpoint without committing partial chunks.
	CancelIngestion(documentID string)

	// DeleteDocument removes a document, its chunks and index entries.
	DeleteDocument(ctx context.Context, documentID string) error

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// Stats summarises the corpus.
	Stats(ctx context.Context) (domain.IngestionStats, error)

	// Subscribe returns a channel of progress events and a cancel
	// function. Slow subscribers miss events rather than stall the
	// pipeline.
	Subscribe() (<-chan domain.IngestionProgress, func())
}
