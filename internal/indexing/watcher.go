package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/smaliref/internal/debug"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreate:
		return "create"
	case FileEventWrite:
		return "write"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Batch describes one debounced flush of file events.
type Batch struct {
	Reloaded int
	Removed  int
	Errors   []error
	Duration time.Duration
}

// Watcher keeps a corpus in sync with the file system. Changed files are
// re-read through the loader, which takes the corpus write lock; searches
// in progress finish before the update is published.
type Watcher struct {
	watcher   *fsnotify.Watcher
	loader    *Loader
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	onBatch func(Batch)

	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}

// NewWatcher creates a watcher that reloads files through loader after
// debounce of quiet time.
func NewWatcher(loader *Loader, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher: fsw,
		loader:  loader,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.debouncer = newEventDebouncer(debounce, w.flush)
	return w, nil
}

// OnBatch registers a callback run after every flush. Call before Start.
func (w *Watcher) OnBatch(fn func(Batch)) {
	w.onBatch = fn
}

// Start watches every loadable directory below the project root.
func (w *Watcher) Start() error {
	root := w.loader.cfg.Project.Root
	debug.LogIndex("starting file watcher for %s\n", root)

	if err := w.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends watching. Pending events are dropped.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		w.debouncer.stop()
		err = w.watcher.Close()
		w.wg.Wait()
		debug.LogIndex("file watcher stopped\n")
	})
	return err
}

// addWatches adds watches to root and every directory below it that is
// not excluded.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.loader.matcher.SkipDir(path) {
			return filepath.SkipDir
		}

		// Guard against bind-mount and junction cycles
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true

		if err := w.watcher.Add(path); err != nil {
			debug.LogIndex("failed to watch %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
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
			debug.LogIndex("file watcher error: %v\n", err)
			w.incrementStats(0, 1)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogIndex("watcher: %v %s\n", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// Gone: a remove, or the old name of a rename
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.loader.matcher.MatchFile(path) {
			w.debouncer.addEvent(path, FileEventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			w.handleNewDirectory(path)
		}
		return
	}

	if !w.loader.matcher.MatchFile(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.debouncer.addEvent(path, FileEventCreate)
	case event.Op&fsnotify.Write != 0:
		w.debouncer.addEvent(path, FileEventWrite)
	case event.Op&fsnotify.Rename != 0:
		w.debouncer.addEvent(path, FileEventRename)
	}
}

// handleNewDirectory watches a new directory and queues the files already
// in it; they may have been written before the watch was added.
func (w *Watcher) handleNewDirectory(dir string) {
	if w.loader.matcher.SkipDir(dir) {
		return
	}
	if err := w.addWatches(dir); err != nil {
		debug.LogIndex("failed to watch new directory %s: %v\n", dir, err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.loader.matcher.MatchFile(path) {
			w.debouncer.addEvent(path, FileEventCreate)
		}
		return nil
	})
}

func (w *Watcher) flush(events map[string]FileEventType) {
	if w.ctx.Err() != nil {
		return
	}
	start := time.Now()
	var batch Batch

	// Removals first, then reloads
	for path, eventType := range events {
		if eventType == FileEventRemove && w.loader.Remove(path) {
			batch.Removed++
		}
	}
	for path, eventType := range events {
		if eventType == FileEventRemove {
			continue
		}
		changed, err := w.loader.LoadFile(path)
		if err != nil {
			batch.Errors = append(batch.Errors, err)
			continue
		}
		if changed {
			batch.Reloaded++
		}
	}

	batch.Duration = time.Since(start)
	w.incrementStats(int64(len(events)), int64(len(batch.Errors)))
	debug.LogIndex("watcher: %d reloaded, %d removed, %d errors in %v\n",
		batch.Reloaded, batch.Removed, len(batch.Errors), batch.Duration)

	if w.onBatch != nil {
		w.onBatch(batch)
	}
}

func (w *Watcher) incrementStats(events, errors int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.eventsProcessed += events
	w.errorCount += errors
	w.lastEventTime = time.Now()
}

// Stats returns current watch statistics.
func (w *Watcher) Stats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: w.eventsProcessed,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.ctx.Err() == nil,
	}
}

// eventDebouncer batches file events until the file system goes quiet.
type eventDebouncer struct {
	mu       sync.Mutex
	events   map[string]FileEventType
	debounce time.Duration
	timer    *time.Timer
	stopped  bool
	running  sync.WaitGroup
	flushFn  func(map[string]FileEventType)
}

func newEventDebouncer(debounce time.Duration, flush func(map[string]FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		flushFn:  flush,
	}
}

// addEvent records the latest event for path and restarts the quiet timer.
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.events[path] = eventType

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.events) == 0 {
		d.mu.Unlock()
		return
	}
	events := d.events
	d.events = make(map[string]FileEventType)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.flushFn(events)
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	// Wait for a flush that started before the stop
	d.running.Wait()
}
