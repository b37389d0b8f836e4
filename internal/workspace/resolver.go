// Package workspace resolves the nearest project root for a file by
// walking up the directory tree looking for a marker file, and memoizes
// that resolution process-wide so repeated queries against the same file
// never re-walk the filesystem (spec section 4.C).
package workspace

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
)

// markers lists the project-root indicator files/directories, in no
// particular priority order: the nearest one found wins regardless of
// which marker it is.
var markers = []string{
	"Cargo.toml",
	"package.json",
	"go.mod",
	"pyproject.toml",
	"setup.py",
	"requirements.txt",
	"tsconfig.json",
	".git",
	"pom.xml",
	"build.gradle",
	"CMakeLists.txt",
}

type resolution struct {
	root string
	id   string
}

// Resolver resolves and memoizes workspace roots for a single daemon
// process. The zero value is not usable; use New.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]resolution
}

// New creates an empty Resolver.
func New() *Resolver {
	return &Resolver{cache: make(map[string]resolution)}
}

// ResolveForFile returns the workspace root and workspace ID for the file
// at path, memoized by path for the lifetime of the Resolver.
func (r *Resolver) ResolveForFile(path string) (root string, workspaceID string, err error) {
	r.mu.RLock()
	if res, ok := r.cache[path]; ok {
		r.mu.RUnlock()
		return res.root, res.id, nil
	}
	r.mu.RUnlock()

	root, err = findWorkspaceRoot(path)
	if err != nil {
		return "", "", err
	}
	workspaceID = generateWorkspaceID(root)

	r.mu.Lock()
	r.cache[path] = resolution{root: root, id: workspaceID}
	r.mu.Unlock()

	return root, workspaceID, nil
}

// InvalidateWorkspaceResolution drops the memoized entry for path, forcing
// the next ResolveForFile call to re-walk the directory tree. Exposed
// primarily for tests that create or remove marker files mid-run.
func (r *Resolver) InvalidateWorkspaceResolution(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, path)
}

// InvalidateAll clears every memoized resolution.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]resolution)
}

func findWorkspaceRoot(path string) (string, error) {
	startDir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		startDir = filepath.Dir(path)
	}

	dir := startDir
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd, nil
	}
	return "", fmt.Errorf("workspace: no marker found above %s and current directory unavailable", path)
}

// generateWorkspaceID builds the "<hash8>_<basename>" workspace identifier
// from a resolved workspace root.
func generateWorkspaceID(root string) string {
	h := blake3.New()
	h.Write([]byte("workspace_id:"))
	h.Write([]byte(root))
	sum := h.Sum(nil)

	folderName := filepath.Base(root)
	if folderName == "" || folderName == "." || folderName == string(filepath.Separator) {
		folderName = "unknown"
	}

	return fmt.Sprintf("%s_%s", hex.EncodeToString(sum)[:8], folderName)
}
