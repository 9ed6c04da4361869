package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/standardbeagle/smaliref/internal/indexing"
)

// Loading states reported by index_stats
const (
	statusIdle      = "idle"
	statusIndexing  = "indexing"
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// AutoIndexingManager loads the corpus in the background when the server
// starts and then keeps it current with a file watcher. Tool calls wait for
// the first load through waitForCompletion.
type AutoIndexingManager struct {
	loader   *indexing.Loader
	debounce time.Duration
	watch    bool
	logger   *DiagnosticLogger

	mu        sync.RWMutex
	status    string
	stats     indexing.LoadStats
	errorMsg  string
	startTime time.Time
	watcher   *indexing.Watcher

	cancelFn context.CancelFunc
	doneChan chan struct{}
	wg       sync.WaitGroup
}

// NewAutoIndexingManager creates a manager for loader. With watch set, a
// watcher is started after a successful load.
func NewAutoIndexingManager(loader *indexing.Loader, watch bool, debounce time.Duration, logger *DiagnosticLogger) *AutoIndexingManager {
	return &AutoIndexingManager{
		loader:   loader,
		watch:    watch,
		debounce: debounce,
		logger:   logger,
		status:   statusIdle,
		doneChan: make(chan struct{}),
	}
}

// start launches the background load. Calling it twice is a no-op.
func (m *AutoIndexingManager) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != statusIdle {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel
	m.status = statusIndexing
	m.startTime = time.Now()

	m.wg.Add(1)
	go m.run(ctx)
}

func (m *AutoIndexingManager) run(ctx context.Context) {
	defer m.wg.Done()
	defer close(m.doneChan)

	stats, err := m.loader.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			m.finish(statusCancelled, stats, "")
			return
		}
		m.logger.Errorf("initial load failed: %v", err)
		m.finish(statusFailed, stats, err.Error())
		return
	}
	m.logger.Printf("loaded %d files (%d skipped, %d errors) in %v",
		stats.Loaded, stats.Skipped, len(stats.Errors), stats.Duration)
	for _, fileErr := range stats.Errors {
		m.logger.Printf("load: %v", fileErr)
	}

	if m.watch {
		if err := m.startWatcher(); err != nil {
			// The corpus is usable without live updates
			m.logger.Errorf("file watcher unavailable: %v", err)
		}
	}
	m.finish(statusCompleted, stats, "")
}

func (m *AutoIndexingManager) startWatcher() error {
	w, err := indexing.NewWatcher(m.loader, m.debounce)
	if err != nil {
		return err
	}
	w.OnBatch(func(b indexing.Batch) {
		m.logger.Printf("watcher: %d reloaded, %d removed, %d errors", b.Reloaded, b.Removed, len(b.Errors))
	})
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}

	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
	return nil
}

func (m *AutoIndexingManager) finish(status string, stats indexing.LoadStats, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.stats = stats
	m.errorMsg = errMsg
}

// getStatus returns the current status
func (m *AutoIndexingManager) getStatus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// waitForCompletion blocks until the first load ends, ctx is done or
// timeout passes. It returns an error unless the load completed.
func (m *AutoIndexingManager) waitForCompletion(ctx context.Context, timeout time.Duration) error {
	if m.getStatus() == statusIdle {
		return fmt.Errorf("corpus loading has not started")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-m.doneChan:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v waiting for the corpus to load", timeout)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	switch m.status {
	case statusCompleted:
		return nil
	case statusFailed:
		return fmt.Errorf("loading failed: %s", m.errorMsg)
	default:
		return fmt.Errorf("loading %s", m.status)
	}
}

// IndexState is the index_stats view of the manager.
type IndexState struct {
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Loaded    int           `json:"loaded"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
	Watching  bool          `json:"watching"`
	Events    int64         `json:"watch_events,omitempty"`
}

func (m *AutoIndexingManager) state() IndexState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := IndexState{
		Status:    m.status,
		Error:     m.errorMsg,
		Loaded:    m.stats.Loaded,
		Unchanged: m.stats.Unchanged,
		Skipped:   m.stats.Skipped,
		Failed:    len(m.stats.Errors),
		Duration:  m.stats.Duration,
	}
	if m.watcher != nil {
		ws := m.watcher.Stats()
		st.Watching = ws.IsActive
		st.Events = ws.EventsProcessed
	}
	return st
}

// Close cancels a running load, stops the watcher and waits for the
// background goroutine.
func (m *AutoIndexingManager) Close() error {
	m.mu.RLock()
	cancel := m.cancelFn
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w != nil {
		return w.Stop()
	}
	return nil
}
