// Package watcher observes configured folders and feeds new or changed
// files into the ingestion pipeline. Bursts of filesystem events for
// one path are debounced so a file being written is ingested once.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is
// submitted for ingestion.
const DefaultDebounce = 500 * time.Millisecond

// Watcher connects fsnotify events to the ingestion service.
type Watcher struct {
	ingestion driving.IngestionService
	fsw       *fsnotify.Watcher
	debounce  time.Duration

	timersMu sync.Mutex
	timers   map[string]*time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce overrides the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over the given folders. Each folder is watched
// recursively; folders that cannot be watched are logged and skipped.
func New(ingestion driving.IngestionService, folders []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		ingestion: ingestion,
		fsw:       fsw,
		debounce:  DefaultDebounce,
		timers:    make(map[string]*time.Timer),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, folder := range folders {
		if err := w.addRecursive(folder); err != nil {
			logger.Warn("Cannot watch %s: %v", folder, err)
		}
	}
	return w, nil
}

// Start begins processing events until Stop is called or ctx ends.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
	logger.Info("Watching %d folders", len(w.fsw.WatchList()))
}

// Stop ends event processing and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.fsw.Close()
		w.wg.Wait()

		w.timersMu.Lock()
		for _, timer := range w.timers {
			timer.Stop()
		}
		w.timersMu.Unlock()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	// New directories join the watch set.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Debug("Cannot watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}

	if !domain.FileTypeFromPath(event.Name).IsSupported() {
		return
	}

	w.scheduleIngest(ctx, event.Name)
}

// scheduleIngest (re)arms the debounce timer for path.
func (w *Watcher) scheduleIngest(ctx context.Context, path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		select {
		case <-w.stopCh:
			return
		default:
		}

		logger.Debug("Watcher submitting %s", path)
		if _, err := w.ingestion.IngestFile(ctx, path); err != nil {
			logger.Warn("Watcher ingestion of %s failed: %v", path, err)
		}
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != filepath.Base(root) && len(name) > 1 && name[0] == '.' {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
