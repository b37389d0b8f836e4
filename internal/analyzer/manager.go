// Package analyzer implements the Analyzer Manager (spec section 4.H):
// per-file syntactic parse, symbol extraction with stable UIDs,
// structural relationship extraction, optional LSP semantic
// enhancement, dedup, and persistence into the Persistent Workspace
// Cache.
package analyzer

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/errs"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

// SemanticEnhancer maps already-extracted symbols onto additional edges
// using an upstream LSP collaborator (references/definition/
// implementation/call hierarchy/typeDefinition). Optional: a nil
// Enhancer on Manager skips step 3's semantic half entirely.
type SemanticEnhancer interface {
	Enhance(ctx context.Context, file, language string, symbols []types.Symbol) ([]types.Edge, error)
}

// Config bounds one Manager's per-step behavior.
type Config struct {
	MaxFileSize      int64
	ParseTimeout     time.Duration
	SemanticTimeout  time.Duration
	ConfidenceFloor  float64 // edges from Enhance below this confidence are dropped; edges with Confidence 0 are kept
}

// DefaultConfig matches the teacher's indexing defaults for parse/IO
// bounding, extended with the semantic-enhancement timeout spec 4.H
// calls for.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:     10 * 1024 * 1024,
		ParseTimeout:    5 * time.Second,
		SemanticTimeout: 3 * time.Second,
		ConfidenceFloor: 0.5,
	}
}

// Manager runs the per-file analysis pipeline and persists its output.
type Manager struct {
	cfg      Config
	enhancer SemanticEnhancer
}

// New constructs a Manager. enhancer may be nil.
func New(cfg Config, enhancer SemanticEnhancer) *Manager {
	return &Manager{cfg: cfg, enhancer: enhancer}
}

// AnalyzeFile runs the full pipeline for one file and writes its
// symbols/edges into store under relativePath, superseding whatever was
// there for an older fileVersionID.
func (m *Manager) AnalyzeFile(ctx context.Context, store *wscache.Store, workspaceID, absPath, relativePath, language string, content []byte, fileVersionID uint64) error {
	if int64(len(content)) > m.cfg.MaxFileSize {
		return errs.NewAnalyzerError(errs.KindFileTooLarge, absPath, "analyze_file",
			fmt.Errorf("file is %d bytes, exceeds limit of %d", len(content), m.cfg.MaxFileSize))
	}

	tree, err := m.runParse(ctx, language, content)
	if err != nil {
		return err
	}
	defer tree.Close()

	ex := extractorFor(language)
	result, err := ex.Extract(absPath, content, tree, workspaceID, fileVersionID)
	if err != nil {
		return errs.NewAnalyzerError(errs.KindUidGenerationError, absPath, "extract_symbols", err)
	}

	if m.enhancer != nil {
		semanticEdges, err := m.runEnhance(ctx, absPath, language, result.Symbols)
		if err != nil {
			// Semantic enhancement failures are recoverable (spec 4.H):
			// the file still gets its structural symbols/edges.
			debug.LogIndexing("analyzer: semantic enhancement failed for %s: %v\n", absPath, err)
		} else {
			for _, e := range semanticEdges {
				if e.Confidence == 0 || e.Confidence >= m.cfg.ConfidenceFloor {
					result.Edges = append(result.Edges, e)
				}
			}
		}
	}

	result.Edges = dedupEdges(result.Edges)

	if err := store.ReplaceFileSymbolsAndEdges(relativePath, fileVersionID, result.Symbols, result.Edges); err != nil {
		return errs.NewAnalyzerError(errs.KindIoError, absPath, "persist", err)
	}
	return nil
}

func (m *Manager) runParse(ctx context.Context, language string, content []byte) (*sitter.Tree, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ParseTimeout)
	defer cancel()

	type out struct {
		tree *sitter.Tree
		err  error
	}
	done := make(chan out, 1)
	go func() {
		tree, err := parse(language, content)
		done <- out{tree, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errs.NewAnalyzerError(errs.KindTimeout, "", "parse", ctx.Err())
	case o := <-done:
		return o.tree, o.err
	}
}

func (m *Manager) runEnhance(ctx context.Context, file, language string, symbols []types.Symbol) ([]types.Edge, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SemanticTimeout)
	defer cancel()

	type out struct {
		edges []types.Edge
		err   error
	}
	done := make(chan out, 1)
	go func() {
		edges, err := m.enhancer.Enhance(ctx, file, language, symbols)
		done <- out{edges, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errs.NewAnalyzerError(errs.KindTimeout, file, "semantic_enhance", ctx.Err())
	case o := <-done:
		return o.edges, o.err
	}
}

// dedupEdges removes duplicate (source, target, relation) rows,
// keeping the first occurrence (structural edges are appended before
// semantic ones, so a structural edge wins a tie).
func dedupEdges(edges []types.Edge) []types.Edge {
	seen := make(map[[3]string]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
