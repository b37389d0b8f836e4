// Package cachestore implements the two-tier cache: an in-process L1 with
// TTL and capacity eviction, backed by the L2 persistent tier in
// internal/wscache, with single-flight deduplication so concurrent
// queries for the same key only compute the answer once (spec section
// 4.E).
package cachestore

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/lci-cached-nav/internal/cachekey"
	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// Config mirrors the tunables the persistent cache this was adapted from
// exposed for its memory tier.
type Config struct {
	MemoryCacheCapacity int           // max number of L1 entries
	MemoryTTL           time.Duration // zero means entries never expire on their own
	MaxEntrySize        int           // bytes; larger values are rejected rather than cached
}

// DefaultConfig mirrors the defaults of the system this cache replaces:
// 10000 entries, 5 minute TTL, 10MiB max entry size.
func DefaultConfig() Config {
	return Config{
		MemoryCacheCapacity: 10000,
		MemoryTTL:           5 * time.Minute,
		MaxEntrySize:        10 * 1024 * 1024,
	}
}

type l1Record struct {
	entry     types.CacheEntry
	storedAt  time.Time
}

// Store is the combined L1/L2 cache for one daemon process, shared across
// all workspaces (individual workspace isolation happens inside the
// storage key and the L2 router).
type Store struct {
	cfg    Config
	router *wscache.Router
	group  singleflight.Group

	mu    sync.Mutex
	l1    map[string]*l1Record
	lru   []string // store order, oldest first; reads do not reorder it, stale records are skipped on eviction

	statsMu sync.Mutex
	stats   map[string]*types.MethodStats // keyed by workspaceID+method
	hits    map[string]uint64
	misses  map[string]uint64
}

// New creates a Store backed by router for its persistent tier.
func New(cfg Config, router *wscache.Router) *Store {
	return &Store{
		cfg:    cfg,
		router: router,
		l1:     make(map[string]*l1Record),
		stats:  make(map[string]*types.MethodStats),
		hits:   make(map[string]uint64),
		misses: make(map[string]uint64),
	}
}

// Get looks up key, trying L1 then L2, promoting an L2 hit back into L1.
func (s *Store) Get(key types.CacheKey) ([]byte, bool) {
	storageKey := cachekey.ToStorageKey(key)

	if rec, ok := s.getL1(storageKey); ok {
		s.recordHit(key)
		debug.LogCache("L1 hit for %s", storageKey)
		return rec.Data, true
	}

	store, err := s.router.CacheForWorkspaceID(key.WorkspaceID)
	if err != nil {
		s.recordMiss(key)
		return nil, false
	}

	entry, found, err := store.Get(storageKey)
	if err != nil || !found {
		s.recordMiss(key)
		return nil, false
	}
	if entry.IsExpired(time.Now()) {
		s.recordMiss(key)
		return nil, false
	}

	s.putL1(storageKey, entry)
	s.recordHit(key)
	debug.LogCache("L2 hit for %s", storageKey)
	return entry.Data, true
}

// Set stores data under key in both tiers with the given TTL (zero means
// no expiration). Entries larger than MaxEntrySize are silently skipped,
// matching the soft-fail semantics of the cache this replaces.
func (s *Store) Set(key types.CacheKey, data []byte, ttl time.Duration) error {
	if len(data) > s.cfg.MaxEntrySize {
		debug.LogCache("entry too large (%d bytes), skipping %s", len(data), cachekey.ToStorageKey(key))
		return nil
	}

	now := time.Now()
	entry := types.CacheEntry{
		Data:         data,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
		SizeBytes:    len(data),
		TTL:          ttl,
	}

	storageKey := cachekey.ToStorageKey(key)
	s.putL1(storageKey, entry)

	store, err := s.router.CacheForWorkspaceID(key.WorkspaceID)
	if err != nil {
		return err
	}
	if err := store.Put(storageKey, key.WorkspaceRelativePath, entry); err != nil {
		return err
	}

	s.recordSet(key, len(data))
	debug.LogCache("cached %s (%d bytes)", storageKey, len(data))
	return nil
}

// Compute is the value passed to GetOrCompute: it runs on an L1+L2 miss
// and returns the bytes to cache.
type Compute func() ([]byte, time.Duration, error)

// GetOrCompute returns the cached value for key, or calls compute exactly
// once among concurrently-racing callers and caches its result. Callers
// single-flight on sfKey, not on key's own storage key: sfKey must be
// built with cachekey.Builder.BuildSingleflightKey, which hashes only
// method+path+params and never touches the filesystem. key, by
// contrast, bakes in the file's mtime at the moment it was built, so
// two callers racing a file whose mtime changes mid-race can resolve to
// different CacheKeys for what is logically the same request; deduping
// on that mtime-dependent key would let both callers miss the
// single-flight slot and call compute twice.
func (s *Store) GetOrCompute(sfKey string, key types.CacheKey, compute Compute) ([]byte, error) {
	if data, ok := s.Get(key); ok {
		return data, nil
	}

	v, err, _ := s.group.Do(sfKey, func() (any, error) {
		// Re-check now that we hold the single-flight slot: another
		// goroutine may have populated the cache while we waited.
		if data, ok := s.Get(key); ok {
			return data, nil
		}
		data, ttl, err := compute()
		if err != nil {
			return nil, err
		}
		if err := s.Set(key, data, ttl); err != nil {
			debug.LogCache("failed to persist computed value for %s: %v", sfKey, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// InvalidateFile removes every cached entry for relativePath within the
// workspace containing absFilePath. This uses the by-file auxiliary index
// maintained in internal/wscache rather than reconstructing storage keys
// from partial information, which is the bug this subsystem's Rust
// ancestor had (its invalidate_file built keys with literal "unknown"
// placeholders that could never match a stored key).
func (s *Store) InvalidateFile(absFilePath, relativePath string) (int, error) {
	stores, err := s.router.PickReadPath(absFilePath)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, store := range stores {
		keys, err := store.GetByFile(relativePath)
		if err != nil {
			continue
		}
		for _, k := range keys {
			s.deleteL1(k)
		}
		n, err := store.InvalidateFile(relativePath)
		if err != nil {
			continue
		}
		total += n
	}
	debug.LogCache("invalidated %d entries for %s", total, relativePath)
	return total, nil
}

// ClearWorkspace empties both tiers for the workspace rooted at
// workspaceRoot and drops its aggregated statistics.
func (s *Store) ClearWorkspace(workspaceRoot string) (int, error) {
	store, err := s.router.CacheForWorkspace(workspaceRoot)
	if err != nil {
		return 0, err
	}
	n, err := store.Clear()
	if err != nil {
		return 0, err
	}

	workspaceID := s.router.WorkspaceIDFor(workspaceRoot)
	s.clearL1ForWorkspace(workspaceID)

	s.statsMu.Lock()
	for k := range s.stats {
		if hasWorkspacePrefix(k, workspaceID) {
			delete(s.stats, k)
		}
	}
	delete(s.hits, workspaceID)
	delete(s.misses, workspaceID)
	s.statsMu.Unlock()

	return n, nil
}

// Stats returns an aggregate snapshot across every workspace this process
// has touched.
func (s *Store) Stats() types.CacheStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	var totalHits, totalMisses uint64
	methodTotals := make(map[types.Method]types.MethodStats)
	workspaces := make(map[string]bool)

	for k, ms := range s.stats {
		wsID, method := splitStatsKey(k)
		workspaces[wsID] = true
		agg := methodTotals[method]
		agg.Entries += ms.Entries
		agg.SizeBytes += ms.SizeBytes
		agg.Hits += ms.Hits
		agg.Misses += ms.Misses
		methodTotals[method] = agg
	}
	for _, h := range s.hits {
		totalHits += h
	}
	for _, m := range s.misses {
		totalMisses += m
	}

	total := totalHits + totalMisses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(totalHits) / float64(total)
	}

	s.mu.Lock()
	entries := uint64(len(s.l1))
	var size uint64
	for _, r := range s.l1 {
		size += uint64(r.entry.SizeBytes)
	}
	s.mu.Unlock()

	return types.CacheStats{
		TotalEntries:     entries,
		TotalSizeBytes:   size,
		ActiveWorkspaces: len(workspaces),
		HitRate:          hitRate,
		MissRate:         1 - hitRate,
		MethodStats:      methodTotals,
	}
}

func (s *Store) getL1(storageKey string) (types.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.l1[storageKey]
	if !ok {
		return types.CacheEntry{}, false
	}
	if rec.entry.IsExpired(time.Now()) {
		delete(s.l1, storageKey)
		return types.CacheEntry{}, false
	}
	rec.entry.Touch(time.Now())
	return rec.entry, true
}

func (s *Store) putL1(storageKey string, entry types.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.l1[storageKey]; !exists && len(s.l1) >= s.cfg.MemoryCacheCapacity {
		s.evictOldestLocked()
	}
	if entry.TTL == 0 {
		entry.TTL = s.cfg.MemoryTTL
	}
	s.l1[storageKey] = &l1Record{entry: entry, storedAt: time.Now()}
	s.lru = append(s.lru, storageKey)
}

func (s *Store) deleteL1(storageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.l1, storageKey)
}

func (s *Store) clearL1ForWorkspace(workspaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.l1 {
		if hasWorkspacePrefix(k, workspaceID) {
			delete(s.l1, k)
		}
	}
}

// evictOldestLocked drops the L1 entry named by the oldest record in the
// store-order log. Records whose key is no longer in L1 are skipped without
// rebuilding the whole log, keeping eviction O(1) amortized; a key stored
// more than once is evicted by its oldest record.
func (s *Store) evictOldestLocked() {
	for len(s.lru) > 0 {
		oldest := s.lru[0]
		s.lru = s.lru[1:]
		if _, ok := s.l1[oldest]; ok {
			delete(s.l1, oldest)
			return
		}
	}
}

func (s *Store) recordHit(key types.CacheKey) {
	s.bump(key, func(ms *types.MethodStats) { ms.Hits++ })
	s.statsMu.Lock()
	s.hits[key.WorkspaceID]++
	s.statsMu.Unlock()
}

func (s *Store) recordMiss(key types.CacheKey) {
	s.bump(key, func(ms *types.MethodStats) { ms.Misses++ })
	s.statsMu.Lock()
	s.misses[key.WorkspaceID]++
	s.statsMu.Unlock()
}

func (s *Store) recordSet(key types.CacheKey, size int) {
	s.bump(key, func(ms *types.MethodStats) {
		ms.Entries++
		ms.SizeBytes += uint64(size)
	})
}

func (s *Store) bump(key types.CacheKey, f func(*types.MethodStats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	statsKey := key.WorkspaceID + "\x00" + key.Method.String()
	ms, ok := s.stats[statsKey]
	if !ok {
		ms = &types.MethodStats{}
		s.stats[statsKey] = ms
	}
	f(ms)
}

func hasWorkspacePrefix(statsOrL1Key, workspaceID string) bool {
	prefix := workspaceID + ":"
	altPrefix := workspaceID + "\x00"
	return len(statsOrL1Key) >= len(prefix) && statsOrL1Key[:len(prefix)] == prefix ||
		len(statsOrL1Key) >= len(altPrefix) && statsOrL1Key[:len(altPrefix)] == altPrefix
}

func splitStatsKey(k string) (workspaceID string, method types.Method) {
	for i := 0; i < len(k); i++ {
		if k[i] == 0 {
			m, _ := types.ParseMethod(k[i+1:])
			return k[:i], m
		}
	}
	return k, 0
}
