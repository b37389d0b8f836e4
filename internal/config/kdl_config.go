package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// configFileName is the project-level override file, read from the
// workspace root. Load consults a user-level lci-navd/config.kdl under
// os.UserConfigDir first so one set of preferences can apply across every
// workspace.
const configFileName = ".lci-navd.kdl"

// Load resolves a Config for projectRoot: it starts from DefaultConfig,
// merges in a base config if one exists under the user's config
// directory, then merges in a project-level .lci-navd.kdl if present.
// Either file being absent is not an error.
func Load(projectRoot string) (Config, error) {
	cfg := DefaultConfig(projectRoot)

	if baseDir, err := os.UserConfigDir(); err == nil {
		if base, err := loadKDLFile(filepath.Join(baseDir, "lci-navd", "config.kdl")); err != nil {
			return cfg, err
		} else if base != nil {
			cfg = mergeConfig(cfg, *base)
		}
	}

	if project, err := loadKDLFile(filepath.Join(projectRoot, configFileName)); err != nil {
		return cfg, err
	} else if project != nil {
		cfg = mergeConfig(cfg, *project)
	}

	ValidateAndSetDefaults(&cfg)
	return cfg, nil
}

// loadKDLFile parses path as a partial Config overlay. It returns
// (nil, nil) when path doesn't exist.
func loadKDLFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	overlay := zeroConfig()
	if err := parseKDL(string(content), &overlay); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &overlay, nil
}

// zeroConfig is the overlay starting point: every field absent so
// mergeConfig can tell "not set in this file" from "set to zero".
func zeroConfig() Config {
	return Config{Upstream: UpstreamConfig{
		PerMethodTimeoutMs: map[string]int{},
		LSPServers:         map[string][]string{},
	}}
}

// mergeConfig layers overlay on top of base: any non-zero overlay field
// replaces the base's, field by field, the same one-file-wins-per-key
// idiom the teacher's mergeConfigs uses.
func mergeConfig(base, overlay Config) Config {
	if overlay.Cache.MemoryCapacity != 0 {
		base.Cache.MemoryCapacity = overlay.Cache.MemoryCapacity
	}
	if overlay.Cache.MemoryTTLSecs != 0 {
		base.Cache.MemoryTTLSecs = overlay.Cache.MemoryTTLSecs
	}
	if overlay.Cache.MaxEntrySizeBytes != 0 {
		base.Cache.MaxEntrySizeBytes = overlay.Cache.MaxEntrySizeBytes
	}

	if overlay.Router.MaxOpenCaches != 0 {
		base.Router.MaxOpenCaches = overlay.Router.MaxOpenCaches
	}
	if overlay.Router.MaxParentLookupDepth != 0 {
		base.Router.MaxParentLookupDepth = overlay.Router.MaxParentLookupDepth
	}

	if overlay.Indexing.MaxWorkers != 0 {
		base.Indexing.MaxWorkers = overlay.Indexing.MaxWorkers
	}
	if overlay.Indexing.BatchSize != 0 {
		base.Indexing.BatchSize = overlay.Indexing.BatchSize
	}
	if overlay.Indexing.TimeoutSeconds != 0 {
		base.Indexing.TimeoutSeconds = overlay.Indexing.TimeoutSeconds
	}
	if overlay.Indexing.MemoryBudgetBytes != 0 {
		base.Indexing.MemoryBudgetBytes = overlay.Indexing.MemoryBudgetBytes
	}
	if overlay.Indexing.MemoryPressureThreshold != 0 {
		base.Indexing.MemoryPressureThreshold = overlay.Indexing.MemoryPressureThreshold
	}
	if overlay.Indexing.MaxQueueSize != 0 {
		base.Indexing.MaxQueueSize = overlay.Indexing.MaxQueueSize
	}
	if overlay.Indexing.IncrementalThresholdSeconds != 0 {
		base.Indexing.IncrementalThresholdSeconds = overlay.Indexing.IncrementalThresholdSeconds
	}

	if overlay.Watcher.PollIntervalSecs != 0 {
		base.Watcher.PollIntervalSecs = overlay.Watcher.PollIntervalSecs
	}
	if overlay.Watcher.DebounceIntervalMs != 0 {
		base.Watcher.DebounceIntervalMs = overlay.Watcher.DebounceIntervalMs
	}
	if overlay.Watcher.EventBatchSize != 0 {
		base.Watcher.EventBatchSize = overlay.Watcher.EventBatchSize
	}
	if overlay.Watcher.MaxFileSizeBytes != 0 {
		base.Watcher.MaxFileSizeBytes = overlay.Watcher.MaxFileSizeBytes
	}
	if len(overlay.Watcher.Include) > 0 {
		base.Watcher.Include = overlay.Watcher.Include
	}
	if len(overlay.Watcher.Exclude) > 0 {
		base.Watcher.Exclude = overlay.Watcher.Exclude
	}
	if overlay.watcherRespectGitignoreSet {
		base.Watcher.RespectGitignore = overlay.Watcher.RespectGitignore
	}
	if overlay.watcherDetectArtifactsSet {
		base.Watcher.DetectBuildArtifacts = overlay.Watcher.DetectBuildArtifacts
	}

	if overlay.Upstream.DefaultTimeoutMs != 0 {
		base.Upstream.DefaultTimeoutMs = overlay.Upstream.DefaultTimeoutMs
	}
	if overlay.upstreamSemanticSet {
		base.Upstream.EnableSemanticEnhancement = overlay.Upstream.EnableSemanticEnhancement
	}
	for method, ms := range overlay.Upstream.PerMethodTimeoutMs {
		base.Upstream.PerMethodTimeoutMs[method] = ms
	}
	for language, cmd := range overlay.Upstream.LSPServers {
		base.Upstream.LSPServers[language] = cmd
	}

	return base
}

// parseKDL walks a KDL document's nodes into cfg, recognizing the five
// top-level sections (cache, router, indexing, watcher, upstream) this
// daemon's flat key model documents.
func parseKDL(content string, cfg *Config) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "memory_capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MemoryCapacity = v
					}
				case "memory_ttl_secs":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MemoryTTLSecs = v
					}
				case "max_entry_size_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MaxEntrySizeBytes = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Cache.MaxEntrySizeBytes = sz
						}
					}
				}
			}
		case "router":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_open_caches":
					if v, ok := firstIntArg(cn); ok {
						cfg.Router.MaxOpenCaches = v
					}
				case "max_parent_lookup_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Router.MaxParentLookupDepth = v
					}
				}
			}
		case "indexing":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.MaxWorkers = v
					}
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.BatchSize = v
					}
				case "timeout_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.TimeoutSeconds = v
					}
				case "memory_budget_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.MemoryBudgetBytes = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Indexing.MemoryBudgetBytes = sz
						}
					}
				case "memory_pressure_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Indexing.MemoryPressureThreshold = v
					}
				case "max_queue_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.MaxQueueSize = v
					}
				case "incremental_threshold_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.Indexing.IncrementalThresholdSeconds = v
					}
				}
			}
		case "watcher":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "poll_interval_secs":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watcher.PollIntervalSecs = v
					}
				case "debounce_interval_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watcher.DebounceIntervalMs = v
					}
				case "event_batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watcher.EventBatchSize = v
					}
				case "max_file_size_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watcher.MaxFileSizeBytes = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Watcher.MaxFileSizeBytes = sz
						}
					}
				case "include":
					cfg.Watcher.Include = collectStringArgs(cn)
				case "exclude":
					cfg.Watcher.Exclude = collectStringArgs(cn)
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watcher.RespectGitignore = b
						cfg.watcherRespectGitignoreSet = true
					}
				case "detect_build_artifacts":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watcher.DetectBuildArtifacts = b
						cfg.watcherDetectArtifactsSet = true
					}
				}
			}
		case "upstream":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "default_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Upstream.DefaultTimeoutMs = v
					}
				case "enable_semantic_enhancement":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Upstream.EnableSemanticEnhancement = b
						cfg.upstreamSemanticSet = true
					}
				case "per_method_timeout_ms":
					for _, mn := range cn.Children {
						if v, ok := firstIntArg(mn); ok {
							cfg.Upstream.PerMethodTimeoutMs[nodeName(mn)] = v
						}
					}
				case "lsp_servers":
					for _, ln := range cn.Children {
						if cmd := collectStringArgs(ln); len(cmd) > 0 {
							cfg.Upstream.LSPServers[nodeName(ln)] = cmd
						}
					}
				}
			}
		}
	}

	return nil
}

// nodeName returns a KDL node's name, or "" for a nil node/name.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("config: invalid numeric value for %q: got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
