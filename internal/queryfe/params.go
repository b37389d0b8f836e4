package queryfe

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// textDocumentParams is the envelope every per-file Query Method's params
// share in LSP: a document URI and, for position-dependent methods, a
// cursor position. Extra fields (context, options, ...) are left
// unparsed — the Front-End only needs the file identity out of params,
// the rest travels to the upstream collaborator verbatim.
type textDocumentParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
}

// FilePathFromParams extracts the local filesystem path named by a
// per-file method's textDocument.uri, stripping the file:// scheme LSP
// clients send it with. Exported so other front doors onto HandleQuery
// (the daemon's own lazy workspace-start path) resolve the same file
// identity this front end does, instead of re-deriving it.
func FilePathFromParams(raw json.RawMessage) (string, error) {
	var env textDocumentParams
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("queryfe: decode params: %w", err)
	}
	if env.TextDocument.URI == "" {
		return "", fmt.Errorf("queryfe: params missing textDocument.uri")
	}
	return strings.TrimPrefix(env.TextDocument.URI, "file://"), nil
}

// relativeTo renders path relative to root for client-facing error
// messages, falling back to path itself if it isn't under root (spec's
// ClientError must not leak paths beyond the workspace-relative one).
func relativeTo(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
