package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// envAPIKey is consulted when the config file carries no API key.
const envAPIKey = "GEMINI_API_KEY"

// ConfigStore is a TOML-backed implementation of driven.ConfigStore.
type ConfigStore struct {
	mu       sync.Mutex
	filePath string
}

// tomlSettings mirrors domain.Settings with TOML field names. Keeping
// the wire shape separate lets the domain struct evolve without
// breaking existing config files.
type tomlSettings struct {
	ChunkSize            int      `toml:"chunk_size"`
	ChunkOverlap         int      `toml:"chunk_overlap"`
	MaxContextChunks     int      `toml:"max_context_chunks"`
	DedupeContext        bool     `toml:"dedupe_context_by_document"`
	VideoSegmentDuration int      `toml:"video_segment_duration"`
	RequestsPerMinute    int      `toml:"requests_per_minute"`
	EmbeddingModel       string   `toml:"embedding_model"`
	ReasoningModel       string   `toml:"reasoning_model"`
	APIKey               string   `toml:"api_key"`
	WatchedFolders       []string `toml:"watched_folders"`
	AutoIngest           bool     `toml:"auto_ingest"`
	LicenseKey           string   `toml:"license_key"`
	MaxWorkers           int      `toml:"max_workers"`
}

// NewConfigStore creates a TOML-based config store.
// If configDir is empty, defaults to ~/.recall.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".recall")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Load reads settings from disk. A missing file yields the defaults.
// Fields absent from the file keep their default values, and an API
// key absent from both is taken from the GEMINI_API_KEY environment
// variable.
func (s *ConfigStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.filePath)
	switch {
	case os.IsNotExist(err):
		// No config file yet, start from defaults.
	case err != nil:
		return settings, fmt.Errorf("reading config file: %w", err)
	default:
		// Unmarshal over the defaults so missing keys keep them.
		ts := toTOML(settings)
		if err := toml.Unmarshal(data, &ts); err != nil {
			return settings, fmt.Errorf("parsing config file: %w", err)
		}
		settings = fromTOML(ts)
	}

	if settings.APIKey == "" {
		settings.APIKey = os.Getenv(envAPIKey)
	}

	return settings.Normalise(), nil
}

// Save persists settings to disk with restricted permissions, since
// the file can contain the API key.
func (s *ConfigStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(toTOML(settings))
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func toTOML(s domain.Settings) tomlSettings {
	return tomlSettings{
		ChunkSize:            s.ChunkSize,
		ChunkOverlap:         s.ChunkOverlap,
		MaxContextChunks:     s.MaxContextChunks,
		DedupeContext:        s.DedupeContextByDocument,
		VideoSegmentDuration: s.VideoSegmentDuration,
		RequestsPerMinute:    s.RequestsPerMinute,
		EmbeddingModel:       s.EmbeddingModel,
		ReasoningModel:       s.ReasoningModel,
		APIKey:               s.APIKey,
		WatchedFolders:       s.WatchedFolders,
		AutoIngest:           s.AutoIngest,
		LicenseKey:           s.LicenseKey,
		MaxWorkers:           s.MaxWorkers,
	}
}

func fromTOML(t tomlSettings) domain.Settings {
	return domain.Settings{
		ChunkSize:               t.ChunkSize,
		ChunkOverlap:            t.ChunkOverlap,
		MaxContextChunks:        t.MaxContextChunks,
		DedupeContextByDocument: t.DedupeContext,
		VideoSegmentDuration:    t.VideoSegmentDuration,
		RequestsPerMinute:       t.RequestsPerMinute,
		EmbeddingModel:          t.EmbeddingModel,
		ReasoningModel:          t.ReasoningModel,
		APIKey:                  t.APIKey,
		WatchedFolders:          t.WatchedFolders,
		AutoIngest:              t.AutoIngest,
		LicenseKey:              t.LicenseKey,
		MaxWorkers:              t.MaxWorkers,
	}
}
