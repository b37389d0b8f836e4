// Package cachekey builds the content-addressed CacheKey described in spec
// section 4.A: deterministic across repeated calls for an unchanged file,
// sensitive to any mutation that could change a query's answer, and cheap
// enough to compute on every query since it never reads file content on
// the hot path.
package cachekey

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/standardbeagle/lci-cached-nav/internal/errs"
	"github.com/standardbeagle/lci-cached-nav/internal/gitinfo"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/workspace"
)

// hasherPool recycles *blake3.Hasher instances across Builder calls,
// mirroring the original implementation's Hasher pool (see SPEC_FULL.md).
var hasherPool = sync.Pool{
	New: func() any { return blake3.New() },
}

func getHasher() *blake3.Hasher {
	return hasherPool.Get().(*blake3.Hasher)
}

func putHasher(h *blake3.Hasher) {
	h.Reset()
	hasherPool.Put(h)
}

// Builder constructs CacheKeys for a single daemon process, backed by a
// Workspace Resolver for deterministic, memoized workspace lookups.
type Builder struct {
	resolver *workspace.Resolver
}

// New creates a Builder bound to the given Workspace Resolver.
func New(resolver *workspace.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build produces a content-addressed CacheKey for (method, filePath,
// params). It requires the file to exist (stat must succeed) and rejects
// any path containing a ".." component.
func (b *Builder) Build(method types.Method, filePath string, params string) (types.CacheKey, error) {
	if err := rejectDotDot(filePath); err != nil {
		return types.CacheKey{}, err
	}
	if !method.IsValid() {
		return types.CacheKey{}, &errs.KeyError{Reason: "unsupported method", Path: filePath}
	}

	canonical := canonicalize(filePath)

	info, err := os.Stat(canonical)
	if err != nil {
		return types.CacheKey{}, &errs.KeyError{Reason: fmt.Sprintf("stat failed: %v", err), Path: filePath}
	}
	mtimeNs := info.ModTime().UnixNano()
	length := info.Size()

	root, workspaceID, err := b.resolver.ResolveForFile(canonical)
	if err != nil {
		return types.CacheKey{}, &errs.KeyError{Reason: fmt.Sprintf("workspace resolution failed: %v", err), Path: filePath}
	}

	relPath := relativeTo(canonical, root)

	hash := contentHash(method, relPath, params, mtimeNs, length)

	return types.CacheKey{
		WorkspaceRelativePath: relPath,
		Method:                method,
		ContentHash:           hash,
		WorkspaceID:           workspaceID,
		FileMtimeNs:           mtimeNs,
		Position:              extractPosition(params),
	}, nil
}

// BuildSingleflightKey is the synchronous variant used to register a
// single-flight slot before any file I/O: it canonicalizes the path
// in-process (no stat) and hashes params alone.
func (b *Builder) BuildSingleflightKey(method types.Method, filePath string, params string) string {
	canonical := canonicalize(filePath)
	h := getHasher()
	defer putHasher(h)
	h.Write([]byte(params))
	sum := h.Sum(nil)
	return fmt.Sprintf("sf_%s:%s:%s", methodUnderscored(method), canonical, hex.EncodeToString(sum))
}

// GenerateServerFingerprint hashes the upstream language server's
// identity so cache entries can be namespaced by server version and, for
// git workspaces, by the current HEAD commit.
func GenerateServerFingerprint(language, serverVersion, workspaceRoot string) string {
	h := getHasher()
	defer putHasher(h)

	h.Write([]byte("server_fingerprint:"))
	h.Write([]byte(language))
	h.Write([]byte(":"))
	h.Write([]byte(serverVersion))
	h.Write([]byte(":"))
	h.Write([]byte(workspaceRoot))

	if commit, ok := gitinfo.HeadCommit(workspaceRoot); ok {
		h.Write([]byte(":"))
		h.Write([]byte(commit))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// IsKeyValid reports whether key still describes currentFilePath: the
// file must exist and its current mtime must equal key.FileMtimeNs.
func IsKeyValid(key types.CacheKey, currentFilePath string) bool {
	info, err := os.Stat(currentFilePath)
	if err != nil {
		return false
	}
	return info.ModTime().UnixNano() == key.FileMtimeNs
}

func contentHash(method types.Method, relPath, params string, mtimeNs int64, length int64) string {
	h := getHasher()
	defer putHasher(h)

	h.Write([]byte("fast_cache_key:"))
	h.Write([]byte(method.String()))
	h.Write([]byte(":"))
	h.Write([]byte(relPath))
	h.Write([]byte(":"))
	h.Write([]byte(params))
	h.Write([]byte(":"))
	h.Write(le64(uint64(mtimeNs)))
	h.Write([]byte(":"))
	h.Write(le64(uint64(length)))

	return hex.EncodeToString(h.Sum(nil))
}

func le64(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

func rejectDotDot(p string) error {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return &errs.KeyError{Reason: "path contains '..' component", Path: p}
		}
	}
	return nil
}

func canonicalize(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			return real
		}
		return abs
	}
	return p
}

func relativeTo(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func methodUnderscored(m types.Method) string {
	return strings.ReplaceAll(m.String(), "/", "_")
}

// extractPosition pulls a display-only "line:char" (1-based) out of LSP
// params JSON when a top-level "position" field is present.
func extractPosition(params string) string {
	var parsed struct {
		Position *struct {
			Line      int `json:"line"`
			Character int `json:"character"`
		} `json:"position"`
	}
	if err := json.Unmarshal([]byte(params), &parsed); err != nil || parsed.Position == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", parsed.Position.Line+1, parsed.Position.Character+1)
}
