// Package config loads and validates this daemon's runtime configuration:
// the cache, router, indexing, watcher, and upstream tunables named in
// this project's external interface surface. Like the teacher, it reads
// KDL files and merges a base (user-level) config with a per-project
// override.
package config

import (
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/analyzer"
	"github.com/standardbeagle/lci-cached-nav/internal/cachestore"
	"github.com/standardbeagle/lci-cached-nav/internal/fswatch"
	"github.com/standardbeagle/lci-cached-nav/internal/indexmgr"
	"github.com/standardbeagle/lci-cached-nav/internal/queryfe"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// Config is the flat, section-per-component configuration model this
// daemon exposes to operators: cache.*, router.*, indexing.*,
// watcher.*, upstream.*.
type Config struct {
	ProjectRoot string

	Cache    CacheConfig
	Router   RouterConfig
	Indexing IndexingConfig
	Watcher  WatcherConfig
	Upstream UpstreamConfig

	// These track whether a boolean overlay field was explicitly set
	// by a KDL file, since the zero value of bool can't distinguish
	// "false" from "absent" the way mergeConfig needs it to.
	watcherRespectGitignoreSet bool
	watcherDetectArtifactsSet  bool
	upstreamSemanticSet        bool
}

// CacheConfig holds the Cache Store's capacity and freshness knobs.
type CacheConfig struct {
	MemoryCapacity    int
	MemoryTTLSecs     int
	MaxEntrySizeBytes int64
}

// RouterConfig holds the Workspace Cache Router's open-handle bounds.
type RouterConfig struct {
	MaxOpenCaches        int
	MaxParentLookupDepth int
}

// IndexingConfig holds the Indexing Manager and Indexing Queue's knobs.
type IndexingConfig struct {
	MaxWorkers                  int
	BatchSize                   int
	TimeoutSeconds              int
	MemoryBudgetBytes           int64
	MemoryPressureThreshold     float64
	MaxQueueSize                int
	IncrementalThresholdSeconds int
}

// WatcherConfig holds the File Watcher's knobs.
type WatcherConfig struct {
	PollIntervalSecs   int
	DebounceIntervalMs int
	EventBatchSize     int
	MaxFileSizeBytes   int64
	Include            []string
	Exclude            []string

	// RespectGitignore, when true, appends patterns derived from the
	// project's .gitignore to Exclude (supplementing, not replacing,
	// explicitly configured exclusions).
	RespectGitignore bool
	// DetectBuildArtifacts, when true, scans language-specific build
	// configuration (package.json, Cargo.toml, ...) for custom output
	// directories and excludes them too.
	DetectBuildArtifacts bool
}

// UpstreamConfig holds the Query Front-End and Analyzer Manager's
// upstream-collaborator knobs.
type UpstreamConfig struct {
	PerMethodTimeoutMs        map[string]int
	DefaultTimeoutMs          int
	EnableSemanticEnhancement bool

	// LSPServers maps a language name (as indexmgr.LanguageFromExt
	// returns it) to the command+args that launch its language
	// server, e.g. "go" -> ["gopls"]. A language absent from this map
	// has no upstream collaborator: queries for it fail with
	// LspUnavailable rather than being silently dropped.
	LSPServers map[string][]string
}

// DefaultConfig mirrors the documented defaults for every component.
func DefaultConfig(projectRoot string) Config {
	return Config{
		ProjectRoot: projectRoot,
		Cache: CacheConfig{
			MemoryCapacity:    10000,
			MemoryTTLSecs:     300,
			MaxEntrySizeBytes: 10 * 1024 * 1024,
		},
		Router: RouterConfig{
			MaxOpenCaches:        32,
			MaxParentLookupDepth: 2,
		},
		Indexing: IndexingConfig{
			MaxWorkers:                  4,
			BatchSize:                   20,
			TimeoutSeconds:              30,
			MemoryBudgetBytes:           512 * 1024 * 1024,
			MemoryPressureThreshold:     0.8,
			MaxQueueSize:                1000,
			IncrementalThresholdSeconds: 5,
		},
		Watcher: WatcherConfig{
			PollIntervalSecs:     1,
			DebounceIntervalMs:   100,
			EventBatchSize:       256,
			MaxFileSizeBytes:     10 * 1024 * 1024,
			Include:              []string{"**/*"},
			Exclude:              nil,
			RespectGitignore:     true,
			DetectBuildArtifacts: true,
		},
		Upstream: UpstreamConfig{
			PerMethodTimeoutMs:        map[string]int{},
			DefaultTimeoutMs:          5000,
			EnableSemanticEnhancement: true,
			LSPServers: map[string][]string{
				"go":         {"gopls"},
				"typescript": {"typescript-language-server", "--stdio"},
				"javascript": {"typescript-language-server", "--stdio"},
				"python":     {"pylsp"},
				"rust":       {"rust-analyzer"},
			},
		},
	}
}

// ToCacheStoreConfig converts to the Cache Store's own config type.
func (c Config) ToCacheStoreConfig() cachestore.Config {
	return cachestore.Config{
		MemoryCacheCapacity: c.Cache.MemoryCapacity,
		MemoryTTL:           time.Duration(c.Cache.MemoryTTLSecs) * time.Second,
		MaxEntrySize:        int(c.Cache.MaxEntrySizeBytes),
	}
}

// ToRouterConfig converts to the Workspace Cache Router's own config
// type, rooted at baseCacheDir (where per-workspace bbolt files live).
func (c Config) ToRouterConfig(baseCacheDir string) wscache.RouterConfig {
	return wscache.RouterConfig{
		BaseCacheDir:         baseCacheDir,
		MaxOpenCaches:        c.Router.MaxOpenCaches,
		MaxParentLookupDepth: c.Router.MaxParentLookupDepth,
	}
}

// ToIndexMgrConfig converts to the Indexing Manager's own config type.
// Exclude is the union of the configured Watcher.Exclude plus any
// gitignore/build-artifact patterns resolved by ResolveExclusions.
func (c Config) ToIndexMgrConfig() indexmgr.Config {
	return indexmgr.Config{
		MaxWorkers:              c.Indexing.MaxWorkers,
		MaxFileSize:             c.Watcher.MaxFileSizeBytes,
		Include:                 c.Watcher.Include,
		Exclude:                 c.ResolveExclusions(),
		MemoryBudgetBytes:       c.Indexing.MemoryBudgetBytes,
		MemoryPressureThreshold: c.Indexing.MemoryPressureThreshold,
		FileTimeout:             time.Duration(c.Indexing.TimeoutSeconds) * time.Second,
		DrainGracePeriod:        5 * time.Second,
		RecencyWindow:           time.Duration(c.Indexing.IncrementalThresholdSeconds) * time.Second,
	}
}

// ToWatcherConfig converts to the File Watcher's own config type.
func (c Config) ToWatcherConfig() fswatch.Config {
	return fswatch.Config{
		DebounceInterval:     time.Duration(c.Watcher.DebounceIntervalMs) * time.Millisecond,
		EventBatchSize:       c.Watcher.EventBatchSize,
		MaxFileSize:          c.Watcher.MaxFileSizeBytes,
		MaxFilesPerWorkspace: 0,
		Include:              c.Watcher.Include,
		Exclude:              c.ResolveExclusions(),
		PollInterval:         time.Duration(c.Watcher.PollIntervalSecs) * time.Second,
	}
}

// ToAnalyzerConfig converts to the Analyzer Manager's own config type.
func (c Config) ToAnalyzerConfig() analyzer.Config {
	cfg := analyzer.DefaultConfig()
	cfg.MaxFileSize = c.Watcher.MaxFileSizeBytes
	cfg.ParseTimeout = time.Duration(c.Indexing.TimeoutSeconds) * time.Second
	if !c.Upstream.EnableSemanticEnhancement {
		cfg.SemanticTimeout = 0
	}
	return cfg
}

// ToQueryFEConfig converts to the Query Front-End's own config type.
func (c Config) ToQueryFEConfig() queryfe.Config {
	cfg := queryfe.DefaultConfig()
	cfg.DefaultTimeout = time.Duration(c.Upstream.DefaultTimeoutMs) * time.Millisecond
	cfg.DefaultTTL = time.Duration(c.Cache.MemoryTTLSecs) * time.Second
	for name, ms := range c.Upstream.PerMethodTimeoutMs {
		method, err := types.ParseMethod(name)
		if err != nil {
			continue
		}
		cfg.PerMethodTimeout[method] = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// IndexQueueMaxSize returns the Indexing Queue's bound.
func (c Config) IndexQueueMaxSize() int {
	return c.Indexing.MaxQueueSize
}

// ServerCommand adapts Upstream.LSPServers into the lspclient.Pool's
// ServerCommand resolver shape: a language with no configured server
// resolves to (nil, false), which the Pool and Query Front-End both
// already treat as LspUnavailable.
func (c Config) ServerCommand() func(language string) ([]string, bool) {
	servers := c.Upstream.LSPServers
	return func(language string) ([]string, bool) {
		cmd, ok := servers[language]
		return cmd, ok
	}
}

// ResolveExclusions returns Watcher.Exclude supplemented with
// gitignore-derived and build-artifact-derived patterns when those
// features are enabled, deduplicated.
func (c Config) ResolveExclusions() []string {
	patterns := append([]string{}, c.Watcher.Exclude...)

	if c.Watcher.RespectGitignore && c.ProjectRoot != "" {
		gi := NewGitignoreParser()
		if err := gi.LoadGitignore(c.ProjectRoot); err == nil {
			patterns = append(patterns, gi.GetExclusionPatterns()...)
		}
	}

	if c.Watcher.DetectBuildArtifacts && c.ProjectRoot != "" {
		bad := NewBuildArtifactDetector(c.ProjectRoot)
		patterns = append(patterns, bad.DetectOutputDirectories()...)
	}

	return DeduplicatePatterns(patterns)
}
