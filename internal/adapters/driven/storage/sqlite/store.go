package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all metadata and index interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recall/data/recall.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "recall.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// IndexWriter returns an IndexWriter interface backed by this store.
func (s *Store) IndexWriter() driven.IndexWriter {
	return &indexWriter{store: s}
}

// SearchEngine returns a SearchEngine interface backed by this store.
func (s *Store) SearchEngine() driven.SearchEngine {
	return &searchEngine{store: s}
}

// VectorIndex returns a VectorIndex interface backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, file_path, file_type, file_size, file_hash,
			status, error_message, metadata, created_at, updated_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			file_path = excluded.file_path,
			file_type = excluded.file_type,
			file_size = excluded.file_size,
			file_hash = excluded.file_hash,
			status = excluded.status,
			error_message = excluded.error_message,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			ingested_at = excluded.ingested_at
	`, doc.ID, doc.Title, doc.FilePath, string(doc.FileType), doc.FileSize, doc.FileHash,
		string(doc.Status), nullString(doc.ErrorMessage), string(metadataJSON),
		doc.CreatedAt, doc.UpdatedAt, nullTime(doc.IngestedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const documentColumns = `id, title, file_path, file_type, file_size, file_hash,
	status, error_message, metadata, created_at, updated_at, ingested_at`

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByPath retrieves a document by its file path.
func (s *documentStore) GetDocumentByPath(ctx context.Context, path string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE file_path = ?`, path)
	return scanDocument(row)
}

// GetDocumentByHash retrieves a document by its content hash. When
// several match, the most recently updated wins.
func (s *documentStore) GetDocumentByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE file_hash = ?
		 ORDER BY updated_at DESC LIMIT 1`, hash)
	return scanDocument(row)
}

// UpdateDocumentStatus transitions a document's pipeline status.
func (s *documentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errorMessage string) error {
	now := time.Now().UTC()

	var ingestedAt any
	if status == domain.StatusCompleted {
		ingestedAt = now
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_message = ?, updated_at = ?,
			ingested_at = COALESCE(?, ingested_at)
		WHERE id = ?
	`, string(status), nullString(errorMessage), now, ingestedAt, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking status update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateDocumentPath rewrites path and title after a rename.
func (s *documentStore) UpdateDocumentPath(ctx context.Context, id, path, title string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET file_path = ?, title = ?, updated_at = ? WHERE id = ?
	`, path, title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating document path: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking path update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments returns all documents, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of document records.
func (s *documentStore) CountDocuments(ctx context.Context) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// DeleteDocument removes a document, its chunks and their index
// entries. Chunks are deleted explicitly so the FTS triggers fire.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteChunksTx(ctx, tx, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking document delete: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const chunkColumns = `id, document_id, chunk_index, content, token_count,
	page_number, timestamp_start, timestamp_end`

// GetChunks retrieves all chunks for a document, in order.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// GetChunksByIDs retrieves chunks by id, preserving input order.
func (s *documentStore) GetChunksByIDs(ctx context.Context, ids []int64) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by id: %w", err)
	}
	defer rows.Close()

	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	ordered := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// Stats summarises the corpus.
func (s *documentStore) Stats(ctx context.Context) (domain.IngestionStats, error) {
	var stats domain.IngestionStats

	row := s.store.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status NOT IN ('completed', 'failed') THEN 1 ELSE 0 END), 0)
		FROM documents
	`)
	if err := row.Scan(&stats.TotalDocuments, &stats.CompletedDocuments,
		&stats.FailedDocuments, &stats.PendingDocuments); err != nil {
		return stats, fmt.Errorf("scanning document stats: %w", err)
	}

	row = s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks")
	if err := row.Scan(&stats.TotalChunks); err != nil {
		return stats, fmt.Errorf("scanning chunk stats: %w", err)
	}
	return stats, nil
}

// ==================== Index Writer ====================

// indexWriter implements driven.IndexWriter.
type indexWriter struct {
	store *Store
}

var _ driven.IndexWriter = (*indexWriter)(nil)

// Commit replaces documentID's chunk set atomically. The delete and
// the inserts share one transaction, so readers either see the old
// chunk set or the new one, never neither.
func (w *indexWriter) Commit(ctx context.Context, documentID string, chunks []domain.Chunk) ([]int64, error) {
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %v: %w", err, domain.ErrIndexWrite)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteChunksTx(ctx, tx, documentID); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrIndexWrite)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, content, token_count,
			page_number, timestamp_start, timestamp_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing chunk insert: %v: %w", err, domain.ErrIndexWrite)
	}
	defer chunkStmt.Close()

	embeddingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimensions) VALUES (?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing embedding insert: %v: %w", err, domain.ErrIndexWrite)
	}
	defer embeddingStmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, chunk := range chunks {
		res, err := chunkStmt.ExecContext(ctx, documentID, chunk.Index, chunk.Content,
			chunk.TokenCount, chunk.PageNumber, chunk.TimestampStart, chunk.TimestampEnd)
		if err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %v: %w", chunk.Index, err, domain.ErrIndexWrite)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("chunk id for %d: %v: %w", chunk.Index, err, domain.ErrIndexWrite)
		}
		ids = append(ids, id)

		if len(chunk.Embedding) > 0 {
			blob := float32SliceToBytes(chunk.Embedding)
			if _, err := embeddingStmt.ExecContext(ctx, id, blob, len(chunk.Embedding)); err != nil {
				return nil, fmt.Errorf("inserting embedding %d: %v: %w", chunk.Index, err, domain.ErrIndexWrite)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing index write: %v: %w", err, domain.ErrIndexWrite)
	}
	return ids, nil
}

// Delete removes documentID's chunks from both indexes.
func (w *indexWriter) Delete(ctx context.Context, documentID string) error {
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %v: %w", err, domain.ErrIndexWrite)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteChunksTx(ctx, tx, documentID); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrIndexWrite)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index delete: %v: %w", err, domain.ErrIndexWrite)
	}
	return nil
}

// deleteChunksTx removes a document's chunks, embeddings and FTS
// entries inside tx. Chunks go through explicit DELETE so the FTS
// triggers fire; FK cascades would bypass them.
func deleteChunksTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM embeddings WHERE chunk_id IN
			(SELECT id FROM chunks WHERE document_id = ?)
	`, documentID); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// ==================== Scan helpers ====================

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocumentFrom(sc scanner) (*domain.Document, error) {
	var doc domain.Document
	var fileType, status string
	var errorMessage sql.NullString
	var metadataJSON string
	var createdAt, updatedAt sql.NullTime
	var ingestedAt sql.NullTime

	if err := sc.Scan(&doc.ID, &doc.Title, &doc.FilePath, &fileType, &doc.FileSize,
		&doc.FileHash, &status, &errorMessage, &metadataJSON,
		&createdAt, &updatedAt, &ingestedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.FileType = domain.FileType(fileType)
	doc.Status = domain.DocumentStatus(status)
	doc.ErrorMessage = errorMessage.String

	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	if ingestedAt.Valid {
		t := ingestedAt.Time
		doc.IngestedAt = &t
	}
	return &doc, nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	return scanDocumentFrom(row)
}

func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	return scanDocumentFrom(rows)
}

func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var pageNumber sql.NullInt64
		var tsStart, tsEnd sql.NullFloat64

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
			&chunk.TokenCount, &pageNumber, &tsStart, &tsEnd); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		if pageNumber.Valid {
			p := int(pageNumber.Int64)
			chunk.PageNumber = &p
		}
		if tsStart.Valid {
			v := tsStart.Float64
			chunk.TimestampStart = &v
		}
		if tsEnd.Valid {
			v := tsEnd.Float64
			chunk.TimestampEnd = &v
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// float32SliceToBytes encodes a vector as little-endian float32s.
func float32SliceToBytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a little-endian float32 vector.
func bytesToFloat32Slice(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
