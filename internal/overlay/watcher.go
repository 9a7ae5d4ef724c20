package overlay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ctxwrap/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// BuildFunc receives the outcome of every rebuild the Watcher performs.
type BuildFunc func(*Result, error)

// Watcher rebuilds the overlay whenever a Go file in a watched package changes.
// Bursts of events are collapsed into one rebuild once they settle for the
// debounce interval.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	builder     *Builder
	patterns    []string
	onBuild     BuildFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Rebuilds      int
	Failures      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
	LastBuildTime time.Time
}

// NewWatcher creates a Watcher for the packages matched by patterns.
// onBuild may be nil.
func NewWatcher(builder *Builder, patterns []string, debounce time.Duration, onBuild BuildFunc) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if onBuild == nil {
		onBuild = func(*Result, error) {}
	}

	return &Watcher{
		watcher:     watcher,
		builder:     builder,
		patterns:    patterns,
		onBuild:     onBuild,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds the package directories to the watch list, runs an initial build
// and starts the event loop. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs, err := w.builder.Packages(w.patterns)
	if err != nil {
		w.abort()
		return err
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.abort()
			return err
		}
		logging.WatchDebug("watching %s", dir)
	}
	logging.Watch("watching %d package(s)", len(dirs))

	w.rebuild(ctx)

	go w.run(ctx)
	return nil
}

func (w *Watcher) abort() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	close(w.doneCh)
	w.watcher.Close()
}

// Stop ends the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("%v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 && w.watchNewDir(event.Name) {
		return
	}
	if !strings.HasSuffix(event.Name, ".go") || !w.builder.isSource(filepath.Base(event.Name)) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return
	}

	logging.WatchDebug("%s %s", eventType, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType
	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	default:
		w.stats.FilesDeleted++
	}
	w.debounceMap[event.Name] = time.Now()
}

// watchNewDir adds a directory created under a recursive pattern root.
// It reports whether path was a directory.
func (w *Watcher) watchNewDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.builder.skipDir(path, filepath.Base(path)) || !w.underRecursiveRoot(path) {
		return true
	}
	if err := w.watcher.Add(path); err != nil {
		logging.WatchError("watch %s: %v", path, err)
		return true
	}
	logging.WatchDebug("watching new directory %s", path)
	return true
}

func (w *Watcher) underRecursiveRoot(path string) bool {
	for _, pattern := range w.patterns {
		root, ok := strings.CutSuffix(filepath.ToSlash(pattern), "...")
		if !ok {
			continue
		}
		root = resolve(w.builder.opts.Dir, filepath.FromSlash(strings.TrimSuffix(root, "/")))
		rel, err := filepath.Rel(root, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// processDebouncedEvents rebuilds once if any recorded change has settled.
func (w *Watcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	settled := 0
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled++
		}
	}
	w.mu.Unlock()

	if settled > 0 {
		logging.WatchDebug("%d change(s) settled", settled)
		w.rebuild(ctx)
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	res, err := w.builder.Build(ctx, w.patterns)

	w.mu.Lock()
	w.stats.Rebuilds++
	w.stats.LastBuildTime = time.Now()
	if err != nil {
		w.stats.Failures++
	}
	w.mu.Unlock()

	if err != nil {
		logging.WatchError("rebuild failed: %v", err)
	}
	w.onBuild(res, err)
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// GetWatchedDirs returns the directories being watched.
func (w *Watcher) GetWatchedDirs() []string {
	return w.watcher.WatchList()
}
