package cachekey

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/lci-cached-nav/internal/errs"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// ToStorageKey serializes a CacheKey into the on-disk/in-memory storage key
// format: workspace_id:method_with_underscores:relative_path:content_hash
// with an optional trailing :symbol_name segment. FileMtimeNs never appears
// in the storage key — it is a display/validation-only field.
func ToStorageKey(k types.CacheKey) string {
	parts := []string{
		k.WorkspaceID,
		methodUnderscored(k.Method),
		k.WorkspaceRelativePath,
		k.ContentHash,
	}
	if k.SymbolName != "" {
		parts = append(parts, k.SymbolName)
	}
	return strings.Join(parts, ":")
}

// FromStorageKey parses a storage key back into a CacheKey. Since relative
// paths may themselves contain ':' on some platforms, the path is taken as
// everything between the method field and the trailing hex64 hash, found by
// splitting from the right: workspace_id:method:...path...:hash[:symbol].
func FromStorageKey(s string) (types.CacheKey, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 4 {
		return types.CacheKey{}, &errs.KeyError{Reason: "storage key has too few fields", Path: s}
	}

	workspaceID := fields[0]
	method := strings.ReplaceAll(fields[1], "_", "/")

	// The content hash is always a 64-char hex string (Blake3-256). Walk
	// from the end looking for the first field matching that shape; an
	// optional symbol name may follow it.
	hashIdx := -1
	for i := len(fields) - 1; i >= 2; i-- {
		if isHex64(fields[i]) {
			hashIdx = i
			break
		}
	}
	if hashIdx == -1 {
		return types.CacheKey{}, &errs.KeyError{Reason: "storage key missing content hash", Path: s}
	}

	relPath := strings.Join(fields[2:hashIdx], ":")
	contentHash := fields[hashIdx]

	var symbolName string
	if hashIdx+1 < len(fields) {
		symbolName = strings.Join(fields[hashIdx+1:], ":")
	}

	m, err := types.ParseMethod(method)
	if err != nil {
		return types.CacheKey{}, &errs.KeyError{Reason: fmt.Sprintf("unknown method in storage key: %v", err), Path: s}
	}

	return types.CacheKey{
		WorkspaceRelativePath: relPath,
		Method:                m,
		ContentHash:           contentHash,
		WorkspaceID:           workspaceID,
		SymbolName:            symbolName,
	}, nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
