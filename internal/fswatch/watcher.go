// Package fswatch implements the File Watcher (spec section 4.J):
// per-workspace filesystem notification with debounced, collapsed event
// batches. Consumers treat a delivered event on file F as: invalidate
// the Cache Store for F, and enqueue F for reindex at High priority if
// it still exists.
package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// Config controls one Watcher's debounce window, filters, and limits.
type Config struct {
	DebounceInterval time.Duration
	EventBatchSize   int
	MaxFileSize      int64
	MaxFilesPerWorkspace int
	Include          []string
	Exclude          []string

	// PollInterval, when positive, runs a periodic reconciliation walk
	// over every watched root that compares each file's mtime with the
	// previous walk: the first walk after a root is added reports every
	// file it finds as Created; later walks report new files as Created,
	// advanced mtimes as Modified and vanished files as Deleted, whether
	// or not fsnotify also delivered the change (this catches coalesced
	// OS events and some network filesystems). Zero disables
	// reconciliation and relies on fsnotify alone.
	PollInterval time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		DebounceInterval:     100 * time.Millisecond,
		EventBatchSize:       256,
		MaxFileSize:          10 * 1024 * 1024,
		MaxFilesPerWorkspace: 0, // 0 = unbounded
		Include:              []string{"**/*"},
		Exclude:              nil,
		PollInterval:         time.Second,
	}
}

// BatchFunc receives one collapsed, debounced batch of events for a
// single workspace.
type BatchFunc func(batch []types.FileEvent)

// Watcher monitors one or more workspace roots and delivers debounced,
// collapsed FileEvent batches to a BatchFunc.
type Watcher struct {
	cfg     Config
	onBatch BatchFunc

	fsw *fsnotify.Watcher

	mu         sync.Mutex
	workspaces map[string]*workspaceState // root -> state
	pathRoot   map[string]string          // watched path -> owning workspace root

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// workspaceState tracks the pending, not-yet-flushed events for a single
// watched workspace root.
type workspaceState struct {
	root    string
	mu      sync.Mutex
	pending map[string]types.EventType // path as reported by fsnotify or the reconciliation walk -> collapsed type
	timer   *time.Timer
	fileCount int

	seenMu sync.Mutex
	seen   map[string]time.Time // path -> mtime last observed by a poll reconciliation
}

// New creates a Watcher with cfg and the callback invoked for each
// flushed batch. Call Watch to begin monitoring a workspace root, and
// Close to stop and release all fsnotify resources.
func New(cfg Config, onBatch BatchFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		cfg:        cfg,
		onBatch:    onBatch,
		fsw:        fsw,
		workspaces: make(map[string]*workspaceState),
		pathRoot:   make(map[string]string),
		ctx:        ctx,
		cancel:     cancel,
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Watch begins watching root (and every subdirectory under it not
// excluded by cfg), tagging its events with root as the workspace.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)

	w.mu.Lock()
	if _, exists := w.workspaces[root]; exists {
		w.mu.Unlock()
		return nil
	}
	state := &workspaceState{root: root, pending: make(map[string]types.EventType), seen: make(map[string]time.Time)}
	w.workspaces[root] = state
	w.mu.Unlock()

	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if w.shouldIgnoreDir(root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			debug.LogIndexing("fswatch: failed to add watch for %s: %v\n", path, err)
			return nil
		}
		w.mu.Lock()
		w.pathRoot[path] = root
		w.mu.Unlock()
		return nil
	})
}

// Unwatch stops tracking root, discarding any pending (not yet
// flushed) events for it.
func (w *Watcher) Unwatch(root string) {
	root = filepath.Clean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if state, ok := w.workspaces[root]; ok {
		state.mu.Lock()
		if state.timer != nil {
			state.timer.Stop()
		}
		state.mu.Unlock()
		delete(w.workspaces, root)
	}
	for path, r := range w.pathRoot {
		if r == root {
			delete(w.pathRoot, path)
		}
	}
}

// Close stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) workspaceRootFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(path)
	if root, ok := w.pathRoot[dir]; ok {
		return root, true
	}
	// Fall back to prefix match against known roots for files whose
	// parent directory watch hasn't been recorded yet (newly created
	// directories processed out of order).
	for root := range w.workspaces {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !hasDotDotPrefix(rel) {
			return root, true
		}
	}
	return "", false
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var tick <-chan time.Time
	if w.cfg.PollInterval > 0 {
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogIndexing("fswatch: error %v\n", err)
		case <-tick:
			w.reconcile()
		}
	}
}

// reconcile walks every watched workspace root and synthesizes events
// for files whose mtime moved past what the last reconciliation saw,
// catching changes fsnotify itself missed or coalesced.
func (w *Watcher) reconcile() {
	w.mu.Lock()
	roots := make([]*workspaceState, 0, len(w.workspaces))
	for _, state := range w.workspaces {
		roots = append(roots, state)
	}
	w.mu.Unlock()

	for _, state := range roots {
		w.reconcileRoot(state)
	}
}

func (w *Watcher) reconcileRoot(state *workspaceState) {
	state.seenMu.Lock()
	defer state.seenMu.Unlock()

	current := make(map[string]time.Time, len(state.seen))
	_ = filepath.Walk(state.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			if err == nil && info != nil && info.IsDir() && w.shouldIgnoreDir(state.root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > w.cfg.MaxFileSize || !w.shouldProcessFile(state.root, path) {
			return nil
		}
		current[path] = info.ModTime()
		if prior, ok := state.seen[path]; !ok {
			w.queueEvent(state.root, path, types.EventCreated)
		} else if info.ModTime().After(prior) {
			w.queueEvent(state.root, path, types.EventModified)
		}
		return nil
	})

	for path := range state.seen {
		if _, ok := current[path]; !ok {
			w.queueEvent(state.root, path, types.EventDeleted)
		}
	}
	state.seen = current
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	root, ok := w.workspaceRootFor(path)
	if !ok {
		return
	}

	info, statErr := os.Stat(path)
	isRemove := event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0

	if statErr != nil {
		if isRemove {
			w.queueEvent(root, path, types.EventDeleted)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.shouldIgnoreDir(root, path) {
			if err := w.fsw.Add(path); err == nil {
				w.mu.Lock()
				w.pathRoot[path] = root
				w.mu.Unlock()
			}
		}
		return
	}

	if info.Size() > w.cfg.MaxFileSize {
		return
	}
	if !w.shouldProcessFile(root, path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.queueEvent(root, path, types.EventCreated)
	case event.Op&fsnotify.Write != 0:
		w.queueEvent(root, path, types.EventModified)
	default:
	}
}

// queueEvent applies the collapse rule for evt against whatever is
// already pending for path within the current debounce window:
// Created+Deleted -> no event, Created+Modified -> Created,
// Modified+Deleted -> Deleted. Any other pairing is replaced outright.
func (w *Watcher) queueEvent(root, path string, evt types.EventType) {
	w.mu.Lock()
	state, ok := w.workspaces[root]
	w.mu.Unlock()
	if !ok {
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if w.cfg.MaxFilesPerWorkspace > 0 {
		_, already := state.pending[path]
		if !already && state.fileCount >= w.cfg.MaxFilesPerWorkspace {
			return
		}
	}

	prior, had := state.pending[path]
	if !had {
		state.pending[path] = evt
		state.fileCount++
	} else {
		collapsed, keep := collapse(prior, evt)
		if !keep {
			delete(state.pending, path)
			state.fileCount--
		} else {
			state.pending[path] = collapsed
		}
	}

	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(w.cfg.DebounceInterval, func() { w.flush(state) })
}

// collapse implements the debounce-window collapse table from spec
// section 4.J. keep is false only for Created followed by Deleted.
func collapse(prior, next types.EventType) (types.EventType, bool) {
	switch {
	case prior == types.EventCreated && next == types.EventDeleted:
		return 0, false
	case prior == types.EventCreated && next == types.EventModified:
		return types.EventCreated, true
	case prior == types.EventModified && next == types.EventDeleted:
		return types.EventDeleted, true
	default:
		return next, true
	}
}

func (w *Watcher) flush(state *workspaceState) {
	state.mu.Lock()
	pending := state.pending
	state.pending = make(map[string]types.EventType)
	state.fileCount = 0
	state.mu.Unlock()

	if len(pending) == 0 || w.onBatch == nil {
		return
	}

	batch := make([]types.FileEvent, 0, len(pending))
	for path, evt := range pending {
		batch = append(batch, types.FileEvent{WorkspaceRoot: state.root, FilePath: path, EventType: evt})
		if len(batch) == w.cfg.EventBatchSize {
			w.onBatch(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		w.onBatch(batch)
	}
}

func (w *Watcher) shouldIgnoreDir(root, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); matched {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) shouldProcessFile(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}
	if len(w.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range w.cfg.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
