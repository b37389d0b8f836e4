package analyzer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// extracted is the per-file output of step 2/3 of the Analyzer Manager
// pipeline (spec section 4.H), before dedup and persistence.
type extracted struct {
	Symbols []types.Symbol
	Edges   []types.Edge
}

// symbolExtractor produces symbols and structural relationships for one
// parsed file. Implementations are language-specific; languages without
// a dedicated implementation fall back to genericExtractor.
type symbolExtractor interface {
	Language() string
	Extract(file string, content []byte, tree *sitter.Tree, workspaceID string, fileVersionID uint64) (extracted, error)
}

var extractors = map[string]symbolExtractor{
	"go": goExtractor{},
}

// extractorFor returns the best extractor for language, falling back to
// a generic tree-sitter-node-kind heuristic extractor for languages
// without a dedicated implementation.
func extractorFor(language string) symbolExtractor {
	if ex, ok := extractors[language]; ok {
		return ex
	}
	return genericExtractor{lang: language}
}
