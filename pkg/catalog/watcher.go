package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher calls onChange once per burst of catalog file events.
type fileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *debouncer
	logger   *slog.Logger
}

func newFileWatcher(path string, interval time.Duration, logger *slog.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &fileWatcher{
		path:     path,
		watcher:  w,
		debounce: newDebouncer(interval),
		logger:   logger,
	}, nil
}

// run blocks until ctx is done. The watcher is closed on return.
func (fw *fileWatcher) run(ctx context.Context, onChange func()) error {
	defer fw.debounce.stop()
	defer fw.watcher.Close()

	if err := fw.add(fw.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevant(event) {
				continue
			}
			fw.logger.Debug("catalog file changed", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				// New subdirectories must be watched too.
				_ = fw.add(event.Name)
			}
			fw.debounce.trigger(onChange)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// add watches path, and every non-hidden subdirectory when it is a
// directory. Editors replace files on save, so directories are watched
// rather than files.
func (fw *fileWatcher) add(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if p == path {
				return fw.watcher.Add(filepath.Dir(p))
			}
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.watcher.Add(p)
	})
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if event.Has(fsnotify.Create) && filepath.Ext(event.Name) == "" {
		return true
	}
	return hasCatalogExtension(event.Name)
}

// debouncer runs the last triggered callback after a quiet interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
