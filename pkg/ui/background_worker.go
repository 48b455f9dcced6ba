// This file implements the BackgroundWorker for off-thread graph builds.
package ui

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chat_timelines/pkg/graph"
	"chat_timelines/pkg/loader"
	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
	"chat_timelines/pkg/watcher"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is building a new snapshot.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "load", "build", "verify"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Number of retry attempts
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// GraphSnapshot is one fully built timeline graph with its provenance.
type GraphSnapshot struct {
	Graph    model.Graph
	Report   graph.BuildReport
	DataHash string
	BuiltAt  time.Time
}

// SnapshotReadyMsg is sent to the UI when a new snapshot is ready.
type SnapshotReadyMsg struct {
	Snapshot *GraphSnapshot
}

// SnapshotErrorMsg is sent to the UI when snapshot building fails. The UI
// keeps displaying its previous graph.
type SnapshotErrorMsg struct {
	Err         error
	Recoverable bool
}

// BackgroundWorker watches the chat directory and rebuilds the timeline
// graph off the UI thread, with content-hash dedup so touch events that
// change nothing are skipped.
type BackgroundWorker struct {
	chatsDir      string
	groupMode     bool
	opts          settings.Settings
	debounceDelay time.Duration

	mu       sync.RWMutex
	state    WorkerState
	dirty    bool // change arrived while processing
	snapshot *GraphSnapshot
	started  bool
	lastHash string

	lastError  *WorkerError
	errorCount int

	watcher *watcher.Watcher
	program *tea.Program

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	ChatsDir      string
	GroupMode     bool
	Options       settings.Settings
	DebounceDelay time.Duration
	Program       *tea.Program
}

// NewBackgroundWorker creates a new background worker.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}

	w := &BackgroundWorker{
		chatsDir:      cfg.ChatsDir,
		groupMode:     cfg.GroupMode,
		opts:          cfg.Options,
		debounceDelay: cfg.DebounceDelay,
		program:       cfg.Program,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.ChatsDir != "" {
		fw, err := watcher.NewWatcher(cfg.ChatsDir,
			watcher.WithDebounceDuration(cfg.DebounceDelay),
		)
		if err != nil {
			cancel()
			return nil, err
		}
		w.watcher = fw
	}

	return w, nil
}

// SetProgram installs the bubbletea program that receives snapshot
// messages. Call before Start; the program is created after the model, so
// it cannot be part of WorkerConfig when the model needs the worker.
func (w *BackgroundWorker) SetProgram(p *tea.Program) {
	w.mu.Lock()
	w.program = p
	w.mu.Unlock()
}

func (w *BackgroundWorker) prog() *tea.Program {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.program
}

// Start begins watching for file changes. Idempotent.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Start(); err != nil {
			return err
		}
		go w.processLoop()
	} else {
		close(w.done)
	}

	return nil
}

// Stop halts the background worker. Idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()

	if w.watcher != nil {
		w.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// TriggerRefresh manually triggers a rebuild. No effect while stopped; a
// rebuild in flight is marked dirty and re-runs when done.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if w.state == WorkerProcessing {
		w.dirty = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// GetSnapshot returns the current snapshot (may be nil).
func (w *BackgroundWorker) GetSnapshot() *GraphSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *BackgroundWorker) processLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-w.watcher.Changed():
			w.process()
		}
	}
}

func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	// Returns nil if content unchanged (dedup) or on error.
	snapshot := w.buildSnapshot()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if snapshot != nil {
		w.snapshot = snapshot
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	w.mu.Unlock()

	if p := w.prog(); p != nil && snapshot != nil {
		p.Send(SnapshotReadyMsg{Snapshot: snapshot})
	}

	if wasDirty {
		go w.process()
	}
}

// safeCompute executes fn and recovers from any panics.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastError returns the most recent error (nil if last operation
// succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// buildSnapshot loads the chat directory and constructs a new snapshot.
// Called from the worker goroutine, never the UI thread. Returns nil when
// the directory is unset, loading fails, or the content hash is unchanged.
func (w *BackgroundWorker) buildSnapshot() *GraphSnapshot {
	if w.chatsDir == "" {
		return nil
	}

	start := time.Now()

	var sessions map[string][]model.ChatMessage
	loadErr := w.safeCompute("load", func() error {
		var err error
		sessions, err = loader.LoadSessions(w.chatsDir)
		return err
	})
	if loadErr != nil {
		log.Printf("buildSnapshot: error loading %s: %v", w.chatsDir, loadErr)
		w.recordError(loadErr)
		if p := w.prog(); p != nil {
			p.Send(SnapshotErrorMsg{Err: loadErr, Recoverable: true})
		}
		return nil
	}

	loadDuration := time.Since(start)

	hash := graph.ComputeDataHash(sessions)

	w.mu.RLock()
	lastHash := w.lastHash
	w.mu.RUnlock()

	if hash == lastHash && lastHash != "" {
		log.Printf("buildSnapshot: content unchanged (hash=%s), skipping rebuild", hashPrefix(hash))
		w.recordError(nil)
		return nil
	}

	var g model.Graph
	var report graph.BuildReport
	buildStart := time.Now()
	buildErr := w.safeCompute("build", func() error {
		if w.groupMode {
			files, err := loader.LoadGroupChats(w.chatsDir)
			if err != nil {
				return err
			}
			g, report = graph.BuildGroup(files, w.opts)
			return nil
		}
		g, report = graph.Build(sessions, w.opts)
		return graph.Verify(g)
	})
	buildDuration := time.Since(buildStart)

	if buildErr != nil {
		log.Printf("buildSnapshot: build error: %v", buildErr)
		w.recordError(buildErr)
		if p := w.prog(); p != nil {
			p.Send(SnapshotErrorMsg{Err: buildErr, Recoverable: true})
		}
		return nil
	}

	w.recordError(nil)

	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	log.Printf("buildSnapshot: %d sessions, %d nodes, %d edges (load=%v, build=%v, hash=%s)",
		len(sessions), len(g.Nodes), len(g.Edges), loadDuration, buildDuration, hashPrefix(hash))

	return &GraphSnapshot{
		Graph:    g,
		Report:   report,
		DataHash: hash,
		BuiltAt:  time.Now(),
	}
}

// WatcherChanged returns the watcher's change notification channel.
func (w *BackgroundWorker) WatcherChanged() <-chan struct{} {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Changed()
}

// LastHash returns the content hash from the last successful build.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// ResetHash clears the stored content hash, forcing the next build to run
// even if content is unchanged.
func (w *BackgroundWorker) ResetHash() {
	w.mu.Lock()
	w.lastHash = ""
	w.mu.Unlock()
}

// hashPrefix returns up to 16 characters of the hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
