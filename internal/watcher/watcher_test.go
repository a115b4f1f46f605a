package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// recordingIngestion implements driving.IngestionService, recording
// submitted paths.
type recordingIngestion struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingIngestion) IngestFile(_ context.Context, path string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return &domain.Document{FilePath: path, Status: domain.StatusCompleted}, nil
}

func (r *recordingIngestion) IngestDirectory(_ context.Context, _ string, _ bool) ([]domain.Document, error) {
	return nil, nil
}

func (r *recordingIngestion) ReingestDocument(_ context.Context, _ string) (*domain.Document, error) {
	return nil, nil
}

func (r *recordingIngestion) CancelIngestion(_ string) {}

func (r *recordingIngestion) DeleteDocument(_ context.Context, _ string) error { return nil }

func (r *recordingIngestion) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return nil, nil
}

func (r *recordingIngestion) Stats(_ context.Context) (domain.IngestionStats, error) {
	return domain.IngestionStats{}, nil
}

func (r *recordingIngestion) Subscribe() (<-chan domain.IngestionProgress, func()) {
	ch := make(chan domain.IngestionProgress)
	return ch, func() { close(ch) }
}

func (r *recordingIngestion) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, ingestion *recordingIngestion, dir string) *Watcher {
	t.Helper()
	w, err := New(ingestion, []string{dir}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	w.Start(context.Background())
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_IngestsNewSupportedFile(t *testing.T) {
	dir := t.TempDir()
	ingestion := &recordingIngestion{}
	startWatcher(t, ingestion, dir)

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	require.Eventually(t, func() bool {
		return len(ingestion.submitted()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, path, ingestion.submitted()[0])
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	ingestion := &recordingIngestion{}
	startWatcher(t, ingestion, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0x01}, 0600))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, ingestion.submitted())
}

func TestWatcher_DebouncesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	ingestion := &recordingIngestion{}
	startWatcher(t, ingestion, dir)

	path := filepath.Join(dir, "growing.md")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("more content\n")
		require.NoError(t, err)
		require.NoError(t, f.Sync())
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return len(ingestion.submitted()) >= 1
	}, 2*time.Second, 20*time.Millisecond)

	// The burst settles into a single submission.
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, ingestion.submitted(), 1)
}

func TestWatcher_PicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	ingestion := &recordingIngestion{}
	startWatcher(t, ingestion, dir)

	sub := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(sub, 0700))
	// Give the watcher a beat to register the new directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "new.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	require.Eventually(t, func() bool {
		paths := ingestion.submitted()
		return len(paths) == 1 && paths[0] == path
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopCancelsPendingWork(t *testing.T) {
	dir := t.TempDir()
	ingestion := &recordingIngestion{}
	w, err := New(ingestion, []string{dir}, WithDebounce(time.Hour))
	require.NoError(t, err)
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pending.txt"), []byte("x"), 0600))
	time.Sleep(100 * time.Millisecond)

	w.Stop()
	assert.Empty(t, ingestion.submitted())
}
