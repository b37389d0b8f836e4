package lspclient

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
)

func openEnhancerTestStore(t *testing.T) *wscache.Store {
	t.Helper()
	s, err := wscache.Open(t.TempDir(), "abc12345_enh")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// poolWithFakeServer wires a Pool whose single client is backed by an
// in-process fakeServer instead of a dialed subprocess, so Enhance's
// textDocument/references round trip can be tested without a real
// language server.
func poolWithFakeServer(t *testing.T, language string, responder func(method string, params json.RawMessage) (any, *jsonrpc2.Error)) *Pool {
	t.Helper()
	toServer, fromClient := io.Pipe()
	toClient, fromServer := io.Pipe()

	server := &fakeServer{
		reader:    bufio.NewReader(toServer),
		writer:    bufio.NewWriter(fromServer),
		responder: responder,
	}
	go server.run()

	client := newClient(language, fromClient, toClient)
	t.Cleanup(func() {
		client.Close()
		fromClient.Close()
		fromServer.Close()
	})

	pool := NewPool(func(string) ([]string, bool) { return nil, false })
	pool.clients[poolKey(language, "/ws")] = client
	return pool
}

func TestEnhanceResolvesReferencesToKnownSymbols(t *testing.T) {
	store := openEnhancerTestStore(t)
	target := types.Symbol{
		SymbolUID: "target-uid",
		File:      "other.go",
		Name:      "Helper",
		StartLine: 5, StartChar: 1,
		EndLine: 5, EndChar: 20,
		IsDefinition: true,
	}
	if err := store.ReplaceFileSymbolsAndEdges("other.go", 1, []types.Symbol{target}, nil); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	pool := poolWithFakeServer(t, "go", func(method string, _ json.RawMessage) (any, *jsonrpc2.Error) {
		if method != "textDocument/references" {
			t.Errorf("unexpected method %q", method)
		}
		return []lsp.Location{
			{
				URI: lsp.DocumentURI("file:///ws/other.go"),
				Range: lsp.Range{
					Start: lsp.Position{Line: 4, Character: 2},
					End:   lsp.Position{Line: 4, Character: 8},
				},
			},
		}, nil
	})

	enh := NewEnhancer(pool, "/ws", store, 10)
	source := types.Symbol{
		SymbolUID: "source-uid", File: "/ws/sample.go", Language: "go",
		StartLine: 1, StartChar: 1, EndLine: 3, EndChar: 1,
		IsDefinition: true,
	}

	edges, err := enh.Enhance(context.Background(), "/ws/sample.go", "go", []types.Symbol{source})
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].TargetSymbolUID != "target-uid" {
		t.Errorf("expected edge to target-uid, got %q", edges[0].TargetSymbolUID)
	}
}

func TestEnhanceSkipsNonDefinitionSymbols(t *testing.T) {
	store := openEnhancerTestStore(t)
	called := false
	pool := poolWithFakeServer(t, "go", func(method string, _ json.RawMessage) (any, *jsonrpc2.Error) {
		called = true
		return []lsp.Location{}, nil
	})

	enh := NewEnhancer(pool, "/ws", store, 10)
	use := types.Symbol{SymbolUID: "use-uid", IsDefinition: false}

	edges, err := enh.Enhance(context.Background(), "/ws/sample.go", "go", []types.Symbol{use})
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if called {
		t.Errorf("expected no references lookup for a non-definition symbol")
	}
	if len(edges) != 0 {
		t.Errorf("expected no edges, got %d", len(edges))
	}
}

func TestEnhanceEnforcesPerSymbolBound(t *testing.T) {
	store := openEnhancerTestStore(t)
	target := types.Symbol{
		SymbolUID: "target-uid", File: "other.go",
		StartLine: 1, StartChar: 1, EndLine: 100, EndChar: 1,
		IsDefinition: true,
	}
	if err := store.ReplaceFileSymbolsAndEdges("other.go", 1, []types.Symbol{target}, nil); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	pool := poolWithFakeServer(t, "go", func(method string, _ json.RawMessage) (any, *jsonrpc2.Error) {
		locs := make([]lsp.Location, 5)
		for i := range locs {
			locs[i] = lsp.Location{
				URI:   lsp.DocumentURI("file:///ws/other.go"),
				Range: lsp.Range{Start: lsp.Position{Line: 1, Character: 0}},
			}
		}
		return locs, nil
	})

	enh := NewEnhancer(pool, "/ws", store, 2)
	source := types.Symbol{SymbolUID: "source-uid", IsDefinition: true}

	edges, err := enh.Enhance(context.Background(), "/ws/sample.go", "go", []types.Symbol{source})
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected per-symbol bound of 2, got %d", len(edges))
	}
}

func TestContainsPositionBoundaries(t *testing.T) {
	s := types.Symbol{StartLine: 2, StartChar: 5, EndLine: 4, EndChar: 10}

	cases := []struct {
		line, char int
		want       bool
	}{
		{1, 0, false},
		{2, 4, false},
		{2, 5, true},
		{3, 0, true},
		{4, 10, true},
		{4, 11, false},
		{5, 0, false},
	}
	for _, c := range cases {
		if got := containsPosition(s, c.line, c.char); got != c.want {
			t.Errorf("containsPosition(line=%d,char=%d) = %v, want %v", c.line, c.char, got, c.want)
		}
	}
}
