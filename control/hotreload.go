// control/hotreload.go
// Follows the config file with fsnotify and hands validated reloads to a callback.
// Check is the reload step itself and can be driven directly in tests.

package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever its modification time changes.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*FileConfig)
	onError  func(error)
	lastMod  time.Time
}

// NewWatcher creates a watcher. Bursts of file events closer together than
// debounce collapse into one reload. onError may be nil.
func NewWatcher(path string, debounce time.Duration, onChange func(*FileConfig), onError func(error)) *Watcher {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if onError == nil {
		onError = func(error) {}
	}
	w := &Watcher{path: filepath.Clean(path), debounce: debounce, onChange: onChange, onError: onError}
	if fi, err := os.Stat(path); err == nil {
		w.lastMod = fi.ModTime()
	}
	return w
}

// Check reloads the file if its modification time moved past the last
// accepted one, and reports whether a new config was delivered.
// Invalid files are reported and do not advance the watermark, so a fixed
// file is picked up on the next check.
func (w *Watcher) Check() (bool, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat config %s: %w", w.path, err)
	}
	if !fi.ModTime().After(w.lastMod) {
		return false, nil
	}
	cfg, err := LoadFile(w.path)
	if err != nil {
		return false, err
	}
	w.lastMod = fi.ModTime()
	w.onChange(cfg)
	return true, nil
}

// Run watches the directory holding the config file until ctx is cancelled.
// Editors often replace the file through a rename, which a watch on the
// file itself would lose.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == w.path && ev.Op&relevant != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.onError(fmt.Errorf("config watcher: %w", err))
		case <-timer.C:
			if _, err := w.Check(); err != nil {
				w.onError(err)
			}
		}
	}
}
