package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the freshly reloaded config after the
// file changes on disk.
type ChangeCallback func(*Config)

// Watcher reloads the config file when it changes. Editors often write a
// file several times in quick succession, so events are debounced before
// reloading.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	callback ChangeCallback
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer

	cancel context.CancelFunc
}

// NewWatcher creates a watcher for the given config path. The parent
// directory is watched rather than the file itself so atomic
// rename-into-place saves are still seen.
func NewWatcher(path string, callback ChangeCallback) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		watcher:  fw,
		callback: callback,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching for config changes.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Stop stops watching for config changes. A pending debounced reload is
// dropped so the callback never fires after Stop returns.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	w.watcher.Close()
}

// SetDebounce sets the debounce duration for batching file events.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	if w.callback == nil {
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		return // Keep the previous config on parse errors
	}
	w.callback(cfg)
}
