package lspclient

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-lsp"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// Enhancer implements analyzer.SemanticEnhancer (spec 4.H step 3) by
// mapping each extracted definition's position to
// textDocument/references over the upstream language server, then
// resolving each returned location back onto a symbol already known
// for its file in the Persistent Workspace Cache. Unresolvable
// locations (outside any indexed symbol's range, or in a file not yet
// indexed) are silently dropped rather than treated as errors.
type Enhancer struct {
	pool         *Pool
	root         string
	store        *wscache.Store
	maxPerSymbol int
}

// NewEnhancer builds an Enhancer for one workspace. maxPerSymbol
// bounds how many reference locations are converted into edges per
// symbol, matching spec 4.H's "per-symbol bound configurable".
func NewEnhancer(pool *Pool, root string, store *wscache.Store, maxPerSymbol int) *Enhancer {
	if maxPerSymbol <= 0 {
		maxPerSymbol = 50
	}
	return &Enhancer{pool: pool, root: root, store: store, maxPerSymbol: maxPerSymbol}
}

// Enhance satisfies analyzer.SemanticEnhancer.
func (e *Enhancer) Enhance(ctx context.Context, file, language string, symbols []types.Symbol) ([]types.Edge, error) {
	client, ok, err := e.pool.Get(ctx, language, e.root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lspclient: no upstream collaborator configured for %s", language)
	}

	uri := lsp.DocumentURI("file://" + file)
	var edges []types.Edge

	for _, sym := range symbols {
		if !sym.IsDefinition {
			continue
		}

		var locations []lsp.Location
		params := lsp.ReferenceParams{
			TextDocumentPositionParams: lsp.TextDocumentPositionParams{
				TextDocument: lsp.TextDocumentIdentifier{URI: uri},
				Position:     lsp.Position{Line: sym.StartLine - 1, Character: sym.StartChar - 1},
			},
			Context: lsp.ReferenceContext{IncludeDeclaration: false},
		}
		if err := client.Call(ctx, "textDocument/references", params, &locations); err != nil {
			continue // per-symbol upstream failure is tolerated, not fatal
		}

		count := 0
		for _, loc := range locations {
			if count >= e.maxPerSymbol {
				break
			}
			if edge, ok := e.resolveEdge(sym, loc, types.RelationReferences); ok {
				edges = append(edges, edge)
				count++
			}
		}
	}

	return edges, nil
}

func (e *Enhancer) resolveEdge(source types.Symbol, loc lsp.Location, relation types.Relation) (types.Edge, bool) {
	path := strings.TrimPrefix(string(loc.URI), "file://")
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	targets, err := e.store.GetSymbolsForFile(rel)
	if err != nil {
		return types.Edge{}, false
	}

	line := loc.Range.Start.Line + 1
	char := loc.Range.Start.Character + 1
	for _, t := range targets {
		if containsPosition(t, line, char) {
			return types.Edge{
				Language:        source.Language,
				Relation:        relation,
				SourceSymbolUID: source.SymbolUID,
				TargetSymbolUID: t.SymbolUID,
				Confidence:      1.0,
			}, true
		}
	}
	return types.Edge{}, false
}

func containsPosition(s types.Symbol, line, char int) bool {
	if line < s.StartLine || line > s.EndLine {
		return false
	}
	if line == s.StartLine && char < s.StartChar {
		return false
	}
	if line == s.EndLine && char > s.EndChar {
		return false
	}
	return true
}
