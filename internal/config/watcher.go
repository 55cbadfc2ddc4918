package config

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher reloads a config file when its modification time changes.
type Watcher struct {
	path string

	mu      sync.Mutex
	modTime time.Time
}

// NewWatcher starts watching path from its current state, so the first
// Check only reports later edits.
func NewWatcher(path string) *Watcher {
	w := &Watcher{path: path}
	if info, err := os.Stat(path); err == nil {
		w.modTime = info.ModTime()
	}
	return w
}

// Check returns a freshly loaded config when the file changed since the
// last check, or nil when nothing changed. Invalid files are logged and
// skipped so the running config stays in effect.
func (w *Watcher) Check() *Config {
	info, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Config stat failed", "path", w.path, "error", err)
		}
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.modTime) {
		return nil
	}
	w.modTime = info.ModTime()

	cfg, err := LoadFile(w.path)
	if err != nil {
		slog.Error("Config reload failed; keeping previous settings", "path", w.path, "error", err)
		return nil
	}
	slog.Info("Config reloaded", "path", w.path)
	return cfg
}
