package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a ConfigWatcher.
type WatcherOption func(*ConfigWatcher)

// WithWatchDebounce sets the debounce duration for file change events.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *ConfigWatcher) { w.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *ConfigWatcher) { w.logger = l }
}

// ConfigWatcher monitors a config file for changes and invokes a callback.
// It watches the directory containing the file so editors that save by
// rename are still seen.
type ConfigWatcher struct {
	source   *FileSource
	debounce time.Duration
	logger   *slog.Logger
	onChange func(ChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastHash  string

	mu           sync.Mutex
	pending      time.Time
	dirty        bool
	filesChanged bool
}

// NewConfigWatcher creates a ConfigWatcher for the given FileSource.
func NewConfigWatcher(source *FileSource, onChange func(ChangeEvent), opts ...WatcherOption) *ConfigWatcher {
	w := &ConfigWatcher{
		source:   source,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the config file's directory for changes.
func (w *ConfigWatcher) Start() error {
	hash, err := w.source.Hash(context.Background())
	if err != nil {
		return fmt.Errorf("config watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dir := filepath.Dir(w.source.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine to exit.
// It is safe to call Stop multiple times.
func (w *ConfigWatcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *ConfigWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	target := filepath.Clean(w.source.Path())
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Template and schema files next to the config also trigger a reload.
			if filepath.Clean(event.Name) != target && !isTemplateFile(event.Name) {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.dirty = true
			if filepath.Clean(event.Name) != target {
				w.filesChanged = true
			}
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "err", err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *ConfigWatcher) processPending() {
	w.mu.Lock()
	ready := w.dirty && time.Since(w.pending) >= w.debounce
	filesChanged := w.filesChanged
	if ready {
		w.dirty = false
		w.filesChanged = false
	}
	w.mu.Unlock()

	if ready {
		w.processChange(filesChanged)
	}
}

// processChange reloads the config and calls onChange if the content differs
// from the last seen hash or a template file next to it changed.
func (w *ConfigWatcher) processChange(filesChanged bool) {
	ctx := context.Background()
	path := w.source.Path()

	spec, err := w.source.Load(ctx)
	if err != nil {
		w.logger.Error("config watcher: failed to load config", "path", path, "err", err)
		return
	}

	newHash, err := w.source.Hash(ctx)
	if err != nil {
		w.logger.Error("config watcher: failed to hash config", "path", path, "err", err)
		return
	}

	oldHash := w.lastHash
	if newHash == oldHash && !filesChanged {
		w.logger.Debug("config watcher: content unchanged, skipping", "path", path)
		return
	}
	w.lastHash = newHash
	w.logger.Info("config changed", "path", path, "old_hash", shortHash(oldHash), "new_hash", shortHash(newHash), "templates_changed", filesChanged)

	w.onChange(ChangeEvent{
		Source:  w.source.Name(),
		OldHash: oldHash,
		NewHash: newHash,
		Spec:    spec,
		Time:    time.Now(),
	})
}

func isTemplateFile(name string) bool {
	switch filepath.Ext(name) {
	case ".vtl", ".graphql", ".gql", ".graphqls":
		return true
	}
	return false
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
