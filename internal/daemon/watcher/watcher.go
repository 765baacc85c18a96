// Package watcher observes the configuration and style files and turns noisy
// filesystem event bursts into single debounced reload requests.
package watcher

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultRetryInterval is how often a failed watch subscription is retried.
const DefaultRetryInterval = 2 * time.Second

// ReloadFunc is called once per debounced burst of file changes. styleOnly is
// true when only the stylesheet changed, letting the caller skip re-parsing
// the configuration.
type ReloadFunc func(styleOnly bool)

// Watcher watches the parent directories of the configuration and style
// paths. Editors typically save via write-temp-then-rename, which produces
// events on the directory rather than the original file inode, so watching
// the file itself would go blind after the first save.
type Watcher struct {
	configPath string
	stylePath  string
	debouncer  *Debouncer
	retry      time.Duration
	onReload   ReloadFunc

	fsw  *fsnotify.Watcher
	done chan struct{}

	mu            sync.Mutex
	watching      map[string]bool
	pendingConfig bool
	pendingStyle  bool
	closed        bool
}

// New creates a watcher for the given paths. debounce and retry fall back to
// defaults when zero.
func New(configPath, stylePath string, debounce, retry time.Duration, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if retry <= 0 {
		retry = DefaultRetryInterval
	}

	return &Watcher{
		configPath: filepath.Clean(configPath),
		stylePath:  filepath.Clean(stylePath),
		debouncer:  NewDebouncer(debounce),
		retry:      retry,
		onReload:   onReload,
		fsw:        fsw,
		done:       make(chan struct{}),
		watching:   make(map[string]bool),
	}, nil
}

// Start subscribes to the watch directories and begins processing events.
// Subscription failures are logged and retried on a timer; they never fail
// Start itself.
func (w *Watcher) Start() {
	w.addAll()
	go w.run()
	go w.retryLoop()
}

// Close stops the watcher and releases the underlying subscriptions.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.debouncer.Cancel()
	close(w.done)
	return w.fsw.Close()
}

// dirs returns the unique parent directories that need a subscription.
func (w *Watcher) dirs() []string {
	configDir := filepath.Dir(w.configPath)
	styleDir := filepath.Dir(w.stylePath)
	if configDir == styleDir {
		return []string{configDir}
	}
	return []string{configDir, styleDir}
}

// addAll attempts to subscribe to every watch directory.
func (w *Watcher) addAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, dir := range w.dirs() {
		if w.watching[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			log.Printf("[watcher] cannot watch %s (will retry): %v", dir, err)
			continue
		}
		w.watching[dir] = true
	}
}

// retryLoop re-attempts failed subscriptions until Close. A deleted config
// directory that reappears is picked up here.
func (w *Watcher) retryLoop() {
	ticker := time.NewTicker(w.retry)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.addAll()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Write, create, rename, and remove can all be part of an atomic editor
	// save; chmod alone never changes content.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	name := filepath.Clean(event.Name)

	w.mu.Lock()
	// A removed watch directory stops delivering events; mark it so the
	// retry loop re-subscribes when it reappears.
	if w.watching[name] && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(w.watching, name)
	}

	switch name {
	case w.configPath:
		w.pendingConfig = true
	case w.stylePath:
		w.pendingStyle = true
	default:
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.debouncer.Trigger(w.fire)
}

// fire delivers one reload request for the accumulated burst.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	styleOnly := w.pendingStyle && !w.pendingConfig
	w.pendingConfig = false
	w.pendingStyle = false
	w.mu.Unlock()

	if w.onReload != nil {
		w.onReload(styleOnly)
	}
}
