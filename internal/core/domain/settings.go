package domain

// Settings is the user configuration for the pipeline and retrieval
// engine. Zero values are replaced with defaults by DefaultSettings /
// the config store, never interpreted literally.
type Settings struct {
	// ChunkSize is the target chunk length in tokens.
	ChunkSize int
	// ChunkOverlap is the number of tokens shared between adjacent
	// chunks. Must be smaller than ChunkSize.
	ChunkOverlap int
	// MaxContextChunks bounds how many retrieved chunks are offered to
	// the generation model.
	MaxContextChunks int
	// DedupeContextByDocument keeps only the strongest chunk per
	// document when assembling answer context.
	DedupeContextByDocument bool
	// VideoSegmentDuration is the transcription window length in
	// seconds for audio and video files.
	VideoSegmentDuration int
	// RequestsPerMinute is the embedding provider budget enforced by
	// the shared rate limiter.
	RequestsPerMinute int
	// EmbeddingModel and ReasoningModel name the provider models.
	EmbeddingModel string
	ReasoningModel string
	// APIKey authenticates against the provider. When empty the
	// GEMINI_API_KEY environment variable is consulted.
	APIKey string
	// WatchedFolders are directories the watcher observes for new or
	// changed files.
	WatchedFolders []string
	// AutoIngest enables the watcher to submit changed files without
	// confirmation.
	AutoIngest bool
	// LicenseKey lifts the trial document limit when valid.
	LicenseKey string
	// MaxWorkers bounds concurrently processed documents.
	MaxWorkers int
}

// MaxFileSize is the hard cap on ingestible file size: 500 MB.
const MaxFileSize = 500 * 1024 * 1024

// TrialDocumentLimit is the number of documents an unlicensed
// installation may ingest.
const TrialDocumentLimit = 25

// DefaultSettings returns the settings used when no configuration file
// exists yet.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:            512,
		ChunkOverlap:         50,
		MaxContextChunks:     20,
		VideoSegmentDuration: 300,
		RequestsPerMinute:    60,
		EmbeddingModel:       "gemini-embedding-001",
		ReasoningModel:       "gemini-2.0-flash",
		MaxWorkers:           2,
	}
}

// Normalise fills zero-valued fields from the defaults and clamps
// inconsistent pairs (overlap >= size).
func (s Settings) Normalise() Settings {
	def := DefaultSettings()
	if s.ChunkSize <= 0 {
		s.ChunkSize = def.ChunkSize
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = def.ChunkOverlap
	}
	if s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = s.ChunkSize / 4
	}
	if s.MaxContextChunks <= 0 {
		s.MaxContextChunks = def.MaxContextChunks
	}
	if s.VideoSegmentDuration <= 0 {
		s.VideoSegmentDuration = def.VideoSegmentDuration
	}
	if s.RequestsPerMinute <= 0 {
		s.RequestsPerMinute = def.RequestsPerMinute
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = def.EmbeddingModel
	}
	if s.ReasoningModel == "" {
		s.ReasoningModel = def.ReasoningModel
	}
	if s.MaxWorkers <= 0 {
		s.MaxWorkers = def.MaxWorkers
	}
	return s
}
