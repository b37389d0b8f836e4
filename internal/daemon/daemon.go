// Package daemon wires every component built for this system (cache,
// router, resolver, key builder, indexing queue/manager, analyzer,
// watcher, upstream LSP pool, and query front-end) into one
// long-lived process, and lazily stands up each workspace's own
// indexing/watching pipeline the first time that workspace is touched
// — the same lazy-open-on-first-use idiom the Workspace Cache Router
// and LSP client Pool already use internally.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/standardbeagle/lci-cached-nav/internal/analyzer"
	"github.com/standardbeagle/lci-cached-nav/internal/cachestore"
	"github.com/standardbeagle/lci-cached-nav/internal/config"
	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/fswatch"
	"github.com/standardbeagle/lci-cached-nav/internal/indexmgr"
	"github.com/standardbeagle/lci-cached-nav/internal/indexqueue"
	"github.com/standardbeagle/lci-cached-nav/internal/lspclient"
	"github.com/standardbeagle/lci-cached-nav/internal/queryfe"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/workspace"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// Daemon is one running process's shared infrastructure plus one
// lazily-populated pipeline per workspace it has been asked to serve.
type Daemon struct {
	cfg      config.Config
	resolver *workspace.Resolver
	router   *wscache.Router
	cache    *cachestore.Store
	pool     *lspclient.Pool
	frontend *queryfe.FrontEnd

	mu         sync.Mutex
	workspaces map[string]*workspacePipeline // root -> pipeline
}

// workspacePipeline is the indexing/watching half of one workspace:
// the Query Front-End's read path never touches this directly, only
// the shared *cachestore.Store it fills.
type workspacePipeline struct {
	root        string
	workspaceID string
	queue       *indexqueue.Queue
	store       *wscache.Store
	analyzerMgr *analyzer.Manager
	indexMgr    *indexmgr.Manager
	watcher     *fswatch.Watcher
}

// New builds the process-wide shared infrastructure from cfg.
// baseCacheDir is where the Workspace Cache Router keeps its
// per-workspace bbolt files.
func New(cfg config.Config, baseCacheDir string) (*Daemon, error) {
	resolver := workspace.New()

	router, err := wscache.NewRouter(cfg.ToRouterConfig(baseCacheDir), resolver)
	if err != nil {
		return nil, fmt.Errorf("daemon: create router: %w", err)
	}

	cache := cachestore.New(cfg.ToCacheStoreConfig(), router)
	pool := lspclient.NewPool(cfg.ServerCommand())
	frontend := queryfe.New(cfg.ToQueryFEConfig(), resolver, cache, pool)

	return &Daemon{
		cfg:        cfg,
		resolver:   resolver,
		router:     router,
		cache:      cache,
		pool:       pool,
		frontend:   frontend,
		workspaces: make(map[string]*workspacePipeline),
	}, nil
}

// HandleQuery answers one Query Method call, lazily starting the
// owning workspace's indexing/watching pipeline first if this is the
// first time the daemon has seen it.
func (d *Daemon) HandleQuery(ctx context.Context, methodName string, rawParams json.RawMessage, workspaceRootHint string) (json.RawMessage, error) {
	anchor := workspaceRootHint
	if anchor == "" {
		if path, err := queryfe.FilePathFromParams(rawParams); err == nil {
			anchor = path
		}
	}
	if anchor != "" {
		if root, _, err := d.resolver.ResolveForFile(anchor); err == nil {
			if _, err := d.EnsureWorkspace(ctx, root); err != nil {
				debug.LogQuery("daemon: ensure workspace for %s: %v", root, err)
			}
		}
	}

	return d.frontend.Handle(ctx, methodName, rawParams, workspaceRootHint)
}

// EnsureWorkspace lazily creates and starts a workspace's indexing and
// watching pipeline the first time root is seen, and is a no-op on
// every call after that.
func (d *Daemon) EnsureWorkspace(ctx context.Context, root string) (*workspacePipeline, error) {
	root = filepath.Clean(root)

	d.mu.Lock()
	if wp, ok := d.workspaces[root]; ok {
		d.mu.Unlock()
		return wp, nil
	}
	d.mu.Unlock()

	wp, err := d.startWorkspace(ctx, root)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if existing, ok := d.workspaces[root]; ok {
		d.mu.Unlock()
		wp.watcher.Close()
		wp.indexMgr.StopIndexing()
		return existing, nil
	}
	d.workspaces[root] = wp
	d.mu.Unlock()

	return wp, nil
}

func (d *Daemon) startWorkspace(ctx context.Context, root string) (*workspacePipeline, error) {
	store, err := d.router.CacheForWorkspace(root)
	if err != nil {
		return nil, fmt.Errorf("daemon: open workspace cache for %s: %w", root, err)
	}
	workspaceID := d.router.WorkspaceIDFor(root)

	var enhancer analyzer.SemanticEnhancer
	if d.cfg.Upstream.EnableSemanticEnhancement {
		enhancer = lspclient.NewEnhancer(d.pool, root, store, 50)
	}
	analyzerMgr := analyzer.New(d.cfg.ToAnalyzerConfig(), enhancer)

	queue := indexqueue.New(d.cfg.IndexQueueMaxSize())
	indexMgr := indexmgr.New(root, workspaceID, d.cfg.ToIndexMgrConfig(), queue, store, analyzerMgr)

	watcher, err := fswatch.New(d.cfg.ToWatcherConfig(), func(batch []types.FileEvent) {
		d.handleFileEvents(root, queue, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: create watcher for %s: %w", root, err)
	}
	if err := watcher.Watch(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("daemon: watch %s: %w", root, err)
	}

	if err := indexMgr.StartIndexing(ctx); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("daemon: start indexing %s: %w", root, err)
	}

	return &workspacePipeline{
		root:        root,
		workspaceID: workspaceID,
		queue:       queue,
		store:       store,
		analyzerMgr: analyzerMgr,
		indexMgr:    indexMgr,
		watcher:     watcher,
	}, nil
}

// handleFileEvents is the File Watcher's BatchFunc (spec 4.J):
// invalidate the Cache Store for every changed file, and enqueue
// surviving files for reindex at High priority.
func (d *Daemon) handleFileEvents(root string, queue *indexqueue.Queue, batch []types.FileEvent) {
	for _, evt := range batch {
		rel, err := filepath.Rel(root, evt.FilePath)
		if err != nil {
			rel = evt.FilePath
		}
		if _, err := d.cache.InvalidateFile(evt.FilePath, filepath.ToSlash(rel)); err != nil {
			debug.LogCache("daemon: invalidate %s: %v", evt.FilePath, err)
		}

		if evt.EventType == types.EventDeleted {
			continue
		}
		queue.Enqueue(types.QueueItem{
			ID:             queue.NextID(),
			FilePath:       evt.FilePath,
			Priority:       types.PriorityHigh,
			EstimatedBytes: -1,
		})
	}
}

// Shutdown stops every workspace's watcher and indexing pipeline, then
// releases the shared cache and LSP pool resources.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	pipelines := make([]*workspacePipeline, 0, len(d.workspaces))
	for _, wp := range d.workspaces {
		pipelines = append(pipelines, wp)
	}
	d.workspaces = make(map[string]*workspacePipeline)
	d.mu.Unlock()

	for _, wp := range pipelines {
		wp.watcher.Close()
		wp.indexMgr.StopIndexing()
	}

	d.pool.CloseAll()
	d.router.CloseAll()
}
