package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID. Returns domain.ErrNotFound
	// when no such document exists.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByPath retrieves a document by its file path.
	GetDocumentByPath(ctx context.Context, path string) (*domain.Document, error)

	// GetDocumentByHash retrieves a document by its content hash.
	GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error)

	// UpdateDocumentStatus transitions a document's pipeline status.
	// errorMessage is stored only for domain.StatusFailed.
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errorMessage string) error

	// UpdateDocumentPath rewrites path and title after a rename is
	// detected (same hash, new location). No re-ingestion happens.
	UpdateDocumentPath(ctx context.Context, id, path, title string) error

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// CountDocuments returns the number of document records. Used by
	// the admission check.
	CountDocuments(ctx context.Context) (int, error)

	// DeleteDocument removes a document, its chunks and their index
	// entries.
	DeleteDocument(ctx context.Context, id string) error

	// GetChunks retrieves all chunks for a document, in order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunksByIDs retrieves chunks by id, preserving input order and
	// skipping ids that no longer exist.
	GetChunksByIDs(ctx context.Context, ids []int64) ([]domain.Chunk, error)

	// Stats summarises the corpus.
	Stats(ctx context.Context) (domain.IngestionStats, error)
}
