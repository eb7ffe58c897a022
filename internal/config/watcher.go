package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback is invoked after the store picked up an external edit.
type ChangeCallback func(cfg AppConfig)

// WatcherConfig holds configuration for the settings watcher.
type WatcherConfig struct {
	Store              *Store
	StabilityThreshold time.Duration
	OnChange           ChangeCallback
	Logger             zerolog.Logger
}

// Watcher reloads the store when the settings file is edited by something
// other than the store itself. Writes made through the store are recognized
// by their digest and ignored.
type Watcher struct {
	watcher            *fsnotify.Watcher
	store              *Store
	stabilityThreshold time.Duration
	onChange           ChangeCallback
	logger             zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a settings watcher. Start must be called to begin watching.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = 150 * time.Millisecond
	}

	return &Watcher{
		watcher:            fw,
		store:              cfg.Store,
		stabilityThreshold: cfg.StabilityThreshold,
		onChange:           cfg.OnChange,
		logger:             cfg.Logger.With().Str("component", "config-watcher").Logger(),
		done:               make(chan struct{}),
	}, nil
}

// Start watches the directory containing the settings file. The directory is
// created if needed, since editors and the store replace the file by rename.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.store.Path()).Msg("Settings watcher started")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) {
		w.logger.Warn().Str("path", event.Name).Msg("Settings file removed; keeping in-memory settings")
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.stabilityThreshold, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	data, err := os.ReadFile(w.store.Path())
	if err != nil {
		// Renames leave a short gap where the file is missing.
		w.logger.Debug().Err(err).Msg("Settings file not readable yet")
		return
	}
	if DigestBytes(data) == w.store.Digest() {
		return
	}

	cfg, err := w.store.Reload()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Ignoring external settings change")
		return
	}

	w.logger.Info().Msg("Settings changed on disk; shortcut changes take effect after restart")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
