package wscache

import (
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/lci-cached-nav/internal/workspace"
)

// RouterConfig controls how many workspace databases the Router keeps
// open at once and how far it looks up the directory tree for ancestor
// workspaces when building a read path.
type RouterConfig struct {
	BaseCacheDir        string
	MaxOpenCaches       int
	MaxParentLookupDepth int
}

// DefaultRouterConfig mirrors the defaults the system this was adapted
// from used for its workspace cache router.
func DefaultRouterConfig(baseCacheDir string) RouterConfig {
	return RouterConfig{
		BaseCacheDir:         baseCacheDir,
		MaxOpenCaches:        32,
		MaxParentLookupDepth: 2,
	}
}

// Router pools open *Store handles behind an LRU eviction policy, so the
// number of simultaneously open bbolt files stays bounded regardless of
// how many workspaces a long-running daemon has touched.
type Router struct {
	cfg      RouterConfig
	resolver *workspace.Resolver

	mu     sync.Mutex
	cache  *lru.Cache[string, *Store]
}

// NewRouter creates a Router bound to resolver for workspace-root lookups.
func NewRouter(cfg RouterConfig, resolver *workspace.Resolver) (*Router, error) {
	r := &Router{cfg: cfg, resolver: resolver}

	c, err := lru.NewWithEvict[string, *Store](cfg.MaxOpenCaches, func(_ string, s *Store) {
		_ = s.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("wscache: create LRU router: %w", err)
	}
	r.cache = c
	return r, nil
}

// CacheForWorkspace returns the (opening if necessary) *Store for the
// workspace rooted at workspaceRoot.
func (r *Router) CacheForWorkspace(workspaceRoot string) (*Store, error) {
	return r.CacheForWorkspaceID(r.workspaceIDFor(workspaceRoot))
}

// CacheForWorkspaceID returns the (opening if necessary) *Store for an
// already-known workspace ID, without needing the workspace root path.
// CacheKey carries only the ID once built, so query-path lookups (which
// never see the root path again) use this instead of CacheForWorkspace.
func (r *Router) CacheForWorkspaceID(id string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.cache.Get(id); ok {
		return s, nil
	}

	s, err := Open(r.cfg.BaseCacheDir, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, s)
	return s, nil
}

// WorkspaceIDFor resolves the workspace ID for a root path without
// opening its cache.
func (r *Router) WorkspaceIDFor(workspaceRoot string) string {
	return r.workspaceIDFor(workspaceRoot)
}

func (r *Router) workspaceIDFor(workspaceRoot string) string {
	_, id, err := r.resolver.ResolveForFile(workspaceRoot)
	if err != nil {
		// Fall back to resolving the root directly as its own workspace;
		// ResolveForFile only fails when neither a marker nor the
		// current directory is reachable.
		return filepath.Base(workspaceRoot)
	}
	return id
}

// PickReadPath returns the Stores to consult for filePath: the file's own
// workspace plus up to MaxParentLookupDepth enclosing workspaces, nearest
// first. This lets a query against a file inside a nested sub-workspace
// also surface entries cached against an enclosing workspace root.
func (r *Router) PickReadPath(filePath string) ([]*Store, error) {
	root, _, err := r.resolver.ResolveForFile(filePath)
	if err != nil {
		return nil, err
	}

	var stores []*Store
	seen := make(map[string]bool)

	dir := root
	for depth := 0; depth <= r.cfg.MaxParentLookupDepth; depth++ {
		if seen[dir] {
			break
		}
		seen[dir] = true

		s, err := r.CacheForWorkspace(dir)
		if err != nil {
			return stores, err
		}
		stores = append(stores, s)

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return stores, nil
}

// CloseAll closes every currently open Store and empties the router.
func (r *Router) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}

// OpenCount reports how many workspace databases are currently open.
func (r *Router) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}
