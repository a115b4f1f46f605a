package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType classifies a file by the extractor that can handle it.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeAudio    FileType = "audio"
	FileTypeVideo    FileType = "video"
	FileTypeImage    FileType = "image"
	FileTypeUnknown  FileType = "unknown"
)

// FileTypeFromPath infers the file type from a path's extension.
// Unrecognised extensions map to FileTypeUnknown.
func FileTypeFromPath(path string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf":
		return FileTypePDF
	case "txt", "text", "log", "csv":
		return FileTypeText
	case "md", "markdown":
		return FileTypeMarkdown
	case "mp3", "wav", "m4a", "flac", "ogg", "aac":
		return FileTypeAudio
	case "mp4", "mov", "avi", "mkv", "webm":
		return FileTypeVideo
	case "png", "jpg", "jpeg", "gif", "bmp", "webp":
		return FileTypeImage
	default:
		return FileTypeUnknown
	}
}

// IsValid reports whether the file type is one of the defined constants.
func (t FileType) IsValid() bool {
	switch t {
	case FileTypePDF, FileTypeText, FileTypeMarkdown,
		FileTypeAudio, FileTypeVideo, FileTypeImage, FileTypeUnknown:
		return true
	}
	return false
}

// IsSupported reports whether an ingestion pipeline exists for this type.
func (t FileType) IsSupported() bool {
	return t.IsValid() && t != FileTypeUnknown
}

func (t FileType) String() string {
	return string(t)
}

// DocumentStatus is the lifecycle state of a document in the ingestion
// pipeline. Transitions are strictly forward:
//
//	queued → extracting → chunking → embedding → indexing → completed
//
// with failed reachable from any non-terminal state. completed and failed
// are terminal, except that re-ingestion of a changed file re-enters
// queued under the same document id.
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusIndexing   DocumentStatus = "indexing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions
// within a single ingestion run.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s DocumentStatus) String() string {
	return string(s)
}

// Document is an ingested (or ingesting) file. The pair (FilePath, FileHash)
// drives idempotency: re-submitting an unchanged completed file is a no-op,
// a changed file re-enters the pipeline under the same ID, and an identical
// file at a new path is treated as a rename.
type Document struct {
	ID           string
	Title        string
	FilePath     string
	FileType     FileType
	FileSize     int64
	FileHash     string
	Status       DocumentStatus
	ErrorMessage string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IngestedAt   *time.Time
}

// Chunk is a token-bounded slice of a document's extracted content.
// IDs are assigned by the store on commit; a chunk with ID zero has not
// been persisted. Exactly one anchor family is set depending on the
// source: PageNumber for paged documents, TimestampStart/TimestampEnd
// for timed media, neither for plain text.
type Chunk struct {
	ID             int64
	DocumentID     string
	Index          int
	Content        string
	TokenCount     int
	PageNumber     *int
	TimestampStart *float64
	TimestampEnd   *float64

	// Embedding is carried between the embedding and indexing stages;
	// it is persisted alongside the chunk, not as part of it.
	Embedding []float32
}

// ChunkWithScore is a chunk paired with its fused relevance score and
// the document metadata needed to present it.
type ChunkWithScore struct {
	Chunk         Chunk
	DocumentTitle string
	FilePath      string
	Score         float64
}

// SearchType identifies which retrieval legs produced a result set.
type SearchType string

const (
	SearchTypeHybrid  SearchType = "hybrid"
	SearchTypeLexical SearchType = "lexical"
	SearchTypeVector  SearchType = "vector"
)
