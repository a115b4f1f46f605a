package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService drives files through extraction, chunking, embedding
// and indexing.
type IngestionService struct {
	docStore    driven.DocumentStore
	indexWriter driven.IndexWriter
	extractors  driven.ExtractorRegistry
	chunker     driven.Chunker
	embedder    driven.EmbeddingService
	configStore driven.ConfigStore
	admission   driven.AdmissionProvider
	broker      *progressBroker

	// cancelled holds document IDs flagged for cancellation. The
	// pipeline consults it at stage boundaries.
	cancelMu  sync.Mutex
	cancelled map[string]bool

	// pathLocks serialises pipeline runs and deletes touching the same
	// document; re-ingest and delete key by the document's stored path.
	pathLocks sync.Map // path -> *sync.Mutex
}

// embedBatchSize bounds how many chunks are embedded per provider call.
// Batches double as cancellation and progress checkpoints.
const embedBatchSize = 100

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	docStore driven.DocumentStore,
	indexWriter driven.IndexWriter,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	configStore driven.ConfigStore,
	admission driven.AdmissionProvider,
) *IngestionService {
	return &IngestionService{
		docStore:    docStore,
		indexWriter: indexWriter,
		extractors:  extractors,
		chunker:     chunker,
		embedder:    embedder,
		configStore: configStore,
		admission:   admission,
		broker:      newProgressBroker(),
		cancelled:   make(map[string]bool),
	}
}

// Subscribe returns a channel of progress events and a cancel function.
func (s *IngestionService) Subscribe() (<-chan domain.IngestionProgress, func()) {
	return s.broker.Subscribe()
}

// CancelIngestion flags a document's in-flight ingestion. The pipeline
// stops at its next checkpoint without committing partial chunks.
func (s *IngestionService) CancelIngestion(documentID string) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.cancelled[documentID] = true
}

// IngestFile submits one file to the pipeline. Idempotent on
// (path, hash).
func (s *IngestionService) IngestFile(ctx context.Context, path string) (*domain.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", path, err)
	}

	lock := s.lockPath(absPath)
	lock.Lock()
	defer lock.Unlock()

	logger.Section("Ingestion")
	logger.Debug("File: %s", absPath)

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, use IngestDirectory", absPath)
	}
	if info.Size() > domain.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", absPath, info.Size(), domain.ErrFileTooLarge)
	}

	fileType := domain.FileTypeFromPath(absPath)
	if !fileType.IsSupported() {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(absPath), domain.ErrUnsupportedType)
	}

	hash, err := hashFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", absPath, err)
	}

	// Same path seen before.
	if existing, err := s.docStore.GetDocumentByPath(ctx, absPath); err == nil {
		if existing.FileHash == hash {
			if existing.Status == domain.StatusCompleted {
				logger.Debug("Unchanged document %s, skipping", existing.ID)
				return existing, nil
			}
			// A previous attempt did not complete; run again.
			logger.Info("Retrying document %s (status %s)", existing.ID, existing.Status)
			return s.runPipeline(ctx, existing, fileType, info.Size(), hash)
		}

		// Content changed: re-ingest under the same ID.
		logger.Info("Document %s changed on disk, re-ingesting", existing.ID)
		return s.runPipeline(ctx, existing, fileType, info.Size(), hash)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up document by path: %w", err)
	}

	// Identical content at a new path is a rename, not a new document.
	if existing, err := s.docStore.GetDocumentByHash(ctx, hash); err == nil {
		if _, statErr := os.Stat(existing.FilePath); os.IsNotExist(statErr) {
			logger.Info("Document %s moved to %s, updating path", existing.ID, absPath)
			title := filepath.Base(absPath)
			if err := s.docStore.UpdateDocumentPath(ctx, existing.ID, absPath, title); err != nil {
				return nil, fmt.Errorf("updating document path: %w", err)
			}
			existing.FilePath = absPath
			existing.Title = title
			return existing, nil
		}
		// Same content in two places is a copy; fall through and
		// ingest it as a new document.
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("looking up document by hash: %w", err)
	}

	// New document: admission applies before anything is recorded.
	if err := s.admission.Admit(ctx); err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:       uuid.New().String(),
		Title:    filepath.Base(absPath),
		FilePath: absPath,
		FileType: fileType,
		FileSize: info.Size(),
		FileHash: hash,
		Status:   domain.StatusQueued,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	s.publish(doc, domain.StatusQueued, "queued")

	return s.runPipeline(ctx, doc, fileType, info.Size(), hash)
}

// IngestDirectory ingests every supported file under root, descending
// into subdirectories only when recursive is set. Per-file failures are
// logged and recorded on the document, not returned; the walk itself
// failing is an error.
func (s *IngestionService) IngestDirectory(ctx context.Context, root string, recursive bool) ([]domain.Document, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			// Skip hidden directories like .git.
			if name := d.Name(); name != "." && len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if domain.FileTypeFromPath(path).IsSupported() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	logger.Info("Found %d supported files under %s", len(paths), root)

	settings, err := s.configStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	var mu sync.Mutex
	var docs []domain.Document

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(settings.MaxWorkers)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			doc, err := s.IngestFile(ctx, path)
			if err != nil {
				if errors.Is(err, domain.ErrAdmissionDenied) {
					logger.Warn("Skipping %s: %v", path, err)
					return nil
				}
				logger.Warn("Ingestion of %s failed: %v", path, err)
				return nil
			}
			mu.Lock()
			docs = append(docs, *doc)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].FilePath < docs[j].FilePath })
	return docs, nil
}

// ReingestDocument re-runs the pipeline for an existing document. No
// admission check applies, the document already holds a slot.
func (s *IngestionService) ReingestDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	lock := s.lockPath(doc.FilePath)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a concurrent run may have just updated it.
	doc, err = s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", doc.FilePath, err)
	}
	if info.Size() > domain.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", doc.FilePath, info.Size(), domain.ErrFileTooLarge)
	}

	hash, err := hashFile(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", doc.FilePath, err)
	}

	return s.runPipeline(ctx, doc, doc.FileType, info.Size(), hash)
}

// DeleteDocument removes a document, its chunks and index entries. The
// delete waits for any in-flight pipeline run on the same document.
func (s *IngestionService) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	lock := s.lockPath(doc.FilePath)
	lock.Lock()
	defer lock.Unlock()

	return s.docStore.DeleteDocument(ctx, documentID)
}

// ListDocuments returns all documents, newest first.
func (s *IngestionService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Stats summarises the corpus.
func (s *IngestionService) Stats(ctx context.Context) (domain.IngestionStats, error) {
	return s.docStore.Stats(ctx)
}

// runPipeline carries doc through every stage. On failure the document
// is marked failed with the stage error; cancellation stops at the next
// checkpoint without committing anything.
func (s *IngestionService) runPipeline(ctx context.Context, doc *domain.Document, fileType domain.FileType, size int64, hash string) (*domain.Document, error) {
	s.clearCancel(doc.ID)

	doc.FileType = fileType
	doc.FileSize = size
	doc.FileHash = hash
	doc.Status = domain.StatusQueued
	doc.ErrorMessage = ""
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	// Extract.
	if err := s.advance(ctx, doc, domain.StatusExtracting, "extracting text"); err != nil {
		return nil, err
	}
	extractor, err := s.extractors.ForType(doc.FileType)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}
	// The callback is a sub-stage checkpoint: long extractions (pages,
	// transcription windows) report fractions and stop on cancellation.
	content, err := extractor.Extract(ctx, doc.FilePath, func(fraction float64) error {
		if err := s.cancelCause(ctx, doc.ID); err != nil {
			return err
		}
		s.publishAt(doc, domain.StatusExtracting,
			domain.ProgressWithin(domain.StatusExtracting, fraction), "extracting text")
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	// Chunk.
	if err := s.advance(ctx, doc, domain.StatusChunking, "splitting into chunks"); err != nil {
		return nil, err
	}
	chunks, err := s.chunker.Chunk(ctx, doc.ID, content)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	// Embed.
	if err := s.advance(ctx, doc, domain.StatusEmbedding, fmt.Sprintf("embedding %d chunks", len(chunks))); err != nil {
		return nil, err
	}
	if len(chunks) > 0 && s.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		for start := 0; start < len(texts); start += embedBatchSize {
			end := min(start+embedBatchSize, len(texts))

			if err := s.cancelCause(ctx, doc.ID); err != nil {
				return nil, s.fail(ctx, doc, err)
			}
			vectors, err := s.embedder.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, s.fail(ctx, doc, err)
			}
			for i, v := range vectors {
				chunks[start+i].Embedding = v
			}

			if end < len(texts) {
				s.publishAt(doc, domain.StatusEmbedding,
					domain.ProgressWithin(domain.StatusEmbedding, float64(end)/float64(len(texts))),
					fmt.Sprintf("embedded %d of %d chunks", end, len(texts)))
			}
		}
	}

	// Index.
	if err := s.advance(ctx, doc, domain.StatusIndexing, "writing indexes"); err != nil {
		return nil, err
	}
	if _, err := s.indexWriter.Commit(ctx, doc.ID, chunks); err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	if err := s.checkpoint(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.docStore.UpdateDocumentStatus(ctx, doc.ID, domain.StatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("marking document completed: %w", err)
	}
	doc.Status = domain.StatusCompleted
	s.publish(doc, domain.StatusCompleted, "done")
	logger.Info("Document %s ingested (%d chunks)", doc.ID, len(chunks))

	return doc, nil
}

// advance is a stage checkpoint: it verifies cancellation, records the
// new status and publishes a progress event.
func (s *IngestionService) advance(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, message string) error {
	if err := s.checkpoint(ctx, doc); err != nil {
		return err
	}
	if err := s.docStore.UpdateDocumentStatus(ctx, doc.ID, status, ""); err != nil {
		return fmt.Errorf("updating status to %s: %w", status, err)
	}
	doc.Status = status
	s.publish(doc, status, message)
	return nil
}

// checkpoint fails the document when its ingestion has been cancelled,
// either explicitly or through ctx.
func (s *IngestionService) checkpoint(ctx context.Context, doc *domain.Document) error {
	if err := s.cancelCause(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc, err)
	}
	return nil
}

// cancelCause reports why an ingestion should stop, or nil. Unlike
// checkpoint it does not mark the document failed, so it is safe to
// call from inside a stage whose error the pipeline records once.
func (s *IngestionService) cancelCause(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrCancelled)
	}

	s.cancelMu.Lock()
	flagged := s.cancelled[documentID]
	s.cancelMu.Unlock()

	if flagged {
		return domain.ErrCancelled
	}
	return nil
}

// fail records the error on the document and publishes a terminal
// event. The document keeps the progress fraction of the failed stage.
func (s *IngestionService) fail(ctx context.Context, doc *domain.Document, cause error) error {
	// Status updates use a fresh context: the original may already be
	// cancelled and the failure still has to be recorded.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.docStore.UpdateDocumentStatus(ctx, doc.ID, domain.StatusFailed, cause.Error()); err != nil {
		logger.Error("Recording failure for document %s: %v", doc.ID, err)
	}

	// Failed documents keep the fraction of the stage they died in.
	failedAt := doc.Status
	doc.Status = domain.StatusFailed
	doc.ErrorMessage = cause.Error()
	s.broker.Publish(domain.IngestionProgress{
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		Stage:      domain.StatusFailed,
		Progress:   domain.ProgressForStatus(failedAt),
		Message:    cause.Error(),
	})
	logger.Warn("Document %s failed: %v", doc.ID, cause)
	return cause
}

func (s *IngestionService) publish(doc *domain.Document, stage domain.DocumentStatus, message string) {
	s.publishAt(doc, stage, domain.ProgressForStatus(stage), message)
}

func (s *IngestionService) publishAt(doc *domain.Document, stage domain.DocumentStatus, progress float64, message string) {
	s.broker.Publish(domain.IngestionProgress{
		DocumentID: doc.ID,
		FilePath:   doc.FilePath,
		Stage:      stage,
		Progress:   progress,
		Message:    message,
	})
}

func (s *IngestionService) clearCancel(documentID string) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	delete(s.cancelled, documentID)
}

func (s *IngestionService) lockPath(path string) *sync.Mutex {
	lock, _ := s.pathLocks.LoadOrStore(path, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// hashFile computes the SHA-256 of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
