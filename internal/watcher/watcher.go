// Package watcher watches the configuration file and triggers hot reloads.
// It supports cross-platform fsnotify event handling.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/googler-dev/googler-web/internal/config"
	log "github.com/sirupsen/logrus"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher reloads the configuration when its file changes on disk.
type Watcher struct {
	configPath string
	debounce   time.Duration

	mu             sync.RWMutex
	config         *config.Config
	lastConfigHash string

	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer

	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher
}

// NewWatcher creates a watcher for configPath. reloadCallback receives every successfully
// loaded configuration that differs from the previous one.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	watcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	absPath, errAbs := filepath.Abs(configPath)
	if errAbs != nil {
		absPath = configPath
	}
	return &Watcher{
		configPath:     filepath.Clean(absPath),
		debounce:       configReloadDebounce,
		reloadCallback: reloadCallback,
		watcher:        watcher,
	}, nil
}

// Start watches the directory holding the config file so that editors replacing the file
// through a rename are still observed. Events are processed until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if errAdd := w.watcher.Add(dir); errAdd != nil {
		log.Errorf("failed to watch config directory %s: %v", dir, errAdd)
		return errAdd
	}
	log.Debugf("watching config file: %s", w.configPath)

	w.mu.Lock()
	if w.lastConfigHash == "" {
		if hash, errHash := fileHash(w.configPath); errHash == nil {
			w.lastConfigHash = hash
		}
	}
	w.mu.Unlock()

	go w.processEvents(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}

// SetConfig records the configuration currently in effect.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Config returns the configuration currently in effect.
func (w *Watcher) Config() *config.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
