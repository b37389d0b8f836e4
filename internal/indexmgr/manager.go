// Package indexmgr implements the Indexing Manager (spec section 4.I):
// per-workspace discovery, worker-pool dispatch into the Analyzer
// Manager, memory-budget enforcement, and progress tracking. Adapted
// from the teacher's internal/indexing pipeline (FileScanner's
// filepath.Walk discovery, its worker-pool dispatch loop) but
// restructured around this module's Indexing Queue instead of raw
// Go channels, since G already gives the priority ordering and
// back-pressure the teacher's pipeline otherwise hand-rolled.
package indexmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/lci-cached-nav/internal/analyzer"
	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/indexqueue"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// State is a position in the Indexing Manager's per-workspace state
// machine: Idle -> Discovering -> Running [<-> Paused] -> Draining ->
// Idle, with a terminal Failed reachable from any active state.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateRunning
	StatePaused
	StateDraining
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDraining:
		return "draining"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config bounds discovery, dispatch, and the shared memory budget.
type Config struct {
	MaxWorkers              int
	MaxFileSize             int64
	Include                 []string
	Exclude                 []string
	MemoryBudgetBytes       int64
	MemoryPressureThreshold float64 // above threshold * budget a worker re-enqueues its item instead of processing it
	FileTimeout             time.Duration
	DrainGracePeriod        time.Duration
	RecencyWindow           time.Duration // files modified within this window get a Medium boost
	PriorityBoosts          []string      // glob patterns enqueued at High regardless of recency
}

// DefaultConfig returns this package's defaults: a fixed pool of four
// workers plus the size, memory and timing knobs below.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:              4,
		MaxFileSize:             10 * 1024 * 1024,
		Include:                 []string{"**/*"},
		MemoryBudgetBytes:       512 * 1024 * 1024,
		MemoryPressureThreshold: 0.9,
		FileTimeout:             30 * time.Second,
		DrainGracePeriod:        10 * time.Second,
		RecencyWindow:           5 * time.Minute,
	}
}

// Progress reports discovery/processing counters for a status RPC.
type Progress struct {
	Discovered int64
	Processed  int64
	Failed     int64
	State      State
}

// Manager drives one workspace's indexing lifecycle.
type Manager struct {
	root        string
	workspaceID string
	cfg         Config
	queue       *indexqueue.Queue
	store       *wscache.Store
	analyzerMgr *analyzer.Manager

	state atomic.Int32

	discovered atomic.Int64
	processed  atomic.Int64
	failed     atomic.Int64

	memoryReserved atomic.Int64
	versionCounter atomic.Uint64

	activeWorkers atomic.Int32
	draining      atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Manager for one workspace. root is the workspace's
// absolute filesystem path; workspaceID is its content-addressed ID
// (spec section 4.C); queue and store are the workspace's Indexing
// Queue and Persistent Workspace Cache handles.
func New(root, workspaceID string, cfg Config, queue *indexqueue.Queue, store *wscache.Store, analyzerMgr *analyzer.Manager) *Manager {
	return &Manager{
		root:        filepath.Clean(root),
		workspaceID: workspaceID,
		cfg:         cfg,
		queue:       queue,
		store:       store,
		analyzerMgr: analyzerMgr,
	}
}

// State reports the manager's current state machine position.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Progress reports a point-in-time snapshot of discovery/processing
// counters. IsComplete iff the queue is empty and no worker is active.
func (m *Manager) Progress() Progress {
	return Progress{
		Discovered: m.discovered.Load(),
		Processed:  m.processed.Load(),
		Failed:     m.failed.Load(),
		State:      m.State(),
	}
}

// IsComplete reports whether indexing has drained: no queued work and
// no worker currently processing a file.
func (m *Manager) IsComplete() bool {
	return m.queue.IsEmpty() && m.activeWorkers.Load() == 0
}

// StartIndexing transitions Idle -> Discovering, walks root honoring
// cfg's include/exclude globs and file-size limit, enqueues each
// candidate at a computed priority, then transitions Running and
// starts the worker pool. Returns an error if the manager isn't Idle.
func (m *Manager) StartIndexing(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateDiscovering)) {
		return fmt.Errorf("indexmgr: cannot start indexing from state %s", m.State())
	}

	m.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.draining.Store(false)
	m.discovered.Store(0)
	m.processed.Store(0)
	m.failed.Store(0)

	if err := m.discover(ctx); err != nil {
		m.state.Store(int32(StateFailed))
		return err
	}

	m.state.Store(int32(StateRunning))
	for i := 0; i < m.cfg.MaxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	return nil
}

// Pause transitions Running -> Paused: the queue stops yielding work,
// but already-dispatched files keep processing to completion.
func (m *Manager) Pause() {
	if m.state.CompareAndSwap(int32(StateRunning), int32(StatePaused)) {
		m.queue.Pause()
	}
}

// Resume transitions Paused -> Running.
func (m *Manager) Resume() {
	if m.state.CompareAndSwap(int32(StatePaused), int32(StateRunning)) {
		m.queue.Resume()
	}
}

// StopIndexing transitions to Draining: discovery (if still running)
// and new enqueues stop immediately; outstanding dispatched work gets
// cfg.DrainGracePeriod to finish before its context is cancelled.
// Blocks until every worker has returned, then transitions to Idle.
func (m *Manager) StopIndexing() {
	switch m.State() {
	case StateIdle, StateFailed:
		return
	}
	m.state.Store(int32(StateDraining))
	m.draining.Store(true)

	timer := time.AfterFunc(m.cfg.DrainGracePeriod, func() {
		m.mu.Lock()
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	m.wg.Wait()
	timer.Stop()

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	m.state.Store(int32(StateIdle))
}

func (m *Manager) discover(ctx context.Context) error {
	// Keyed by a 64-bit hash of the resolved path rather than the string itself:
	// this set exists only to break symlink cycles during the walk, not to
	// address cached content, so a non-cryptographic hash is the right
	// tool and keeps memory flat on repositories with very deep trees.
	visited := make(map[uint64]bool)
	return filepath.Walk(m.root, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if m.draining.Load() {
			return filepath.SkipAll
		}
		if walkErr != nil {
			return nil
		}

		if info.IsDir() {
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			realHash := xxhash.Sum64String(real)
			if visited[realHash] {
				return filepath.SkipDir
			}
			visited[realHash] = true
			if path != m.root && m.matchesExclude(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !m.shouldProcess(path, info) {
			return nil
		}

		lang := LanguageFromExt(path)
		if lang == "" {
			return nil
		}

		item := types.QueueItem{
			ID:             m.queue.NextID(),
			FilePath:       path,
			Priority:       m.priorityFor(path, info),
			EnqueuedAtMs:   time.Now().UnixMilli(),
			LanguageHint:   lang,
			EstimatedBytes: info.Size(),
		}
		if m.queue.Enqueue(item) {
			m.discovered.Add(1)
		}
		return nil
	})
}

func (m *Manager) matchesExclude(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (m *Manager) shouldProcess(path string, info os.FileInfo) bool {
	if info.Size() > m.cfg.MaxFileSize {
		return false
	}
	if m.matchesExclude(path) {
		return false
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if len(m.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range m.cfg.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// priorityFor applies the configurable heuristics spec 4.I names:
// explicit glob boosts first, then last-modified recency, defaulting
// to Low for ordinary backfill.
func (m *Manager) priorityFor(path string, info os.FileInfo) types.Priority {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range m.cfg.PriorityBoosts {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return types.PriorityHigh
		}
	}
	if m.cfg.RecencyWindow > 0 && time.Since(info.ModTime()) <= m.cfg.RecencyWindow {
		return types.PriorityMedium
	}
	return types.PriorityLow
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.draining.Load() && m.queue.IsEmpty() {
			return
		}

		item, ok := m.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		m.activeWorkers.Add(1)
		m.processItem(ctx, item)
		m.activeWorkers.Add(-1)
	}
}

func (m *Manager) processItem(ctx context.Context, item types.QueueItem) {
	size := item.EstimatedBytes
	if size <= 0 {
		size = m.cfg.MaxFileSize
	}
	if !m.reserveMemory(size) {
		// Over the memory pressure threshold: drop the item back at
		// its original priority rather than block the worker pool.
		m.queue.Enqueue(item)
		time.Sleep(100 * time.Millisecond)
		return
	}
	defer m.releaseMemory(size)

	fileCtx, cancel := context.WithTimeout(ctx, m.cfg.FileTimeout)
	defer cancel()

	content, err := os.ReadFile(item.FilePath)
	if err != nil {
		m.failed.Add(1)
		debug.LogIndexing("indexmgr: read %s: %v\n", item.FilePath, err)
		return
	}

	rel, err := filepath.Rel(m.root, item.FilePath)
	if err != nil {
		rel = item.FilePath
	}
	rel = filepath.ToSlash(rel)

	version := m.versionCounter.Add(1)
	if err := m.analyzerMgr.AnalyzeFile(fileCtx, m.store, m.workspaceID, item.FilePath, rel, item.LanguageHint, content, version); err != nil {
		m.failed.Add(1)
		debug.LogIndexing("indexmgr: analyze %s: %v\n", item.FilePath, err)
		return
	}
	m.processed.Add(1)
}

// reserveMemory atomically reserves size bytes against the shared
// budget, refusing when doing so would cross
// MemoryPressureThreshold * MemoryBudgetBytes.
func (m *Manager) reserveMemory(size int64) bool {
	if m.cfg.MemoryBudgetBytes <= 0 {
		return true
	}
	limit := int64(float64(m.cfg.MemoryBudgetBytes) * m.cfg.MemoryPressureThreshold)
	for {
		current := m.memoryReserved.Load()
		next := current + size
		if next > limit {
			return false
		}
		if m.memoryReserved.CompareAndSwap(current, next) {
			return true
		}
	}
}

func (m *Manager) releaseMemory(size int64) {
	m.memoryReserved.Add(-size)
}
