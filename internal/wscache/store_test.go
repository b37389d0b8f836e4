package wscache

import (
	"testing"
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	entry := types.CacheEntry{Data: []byte(`{"x":1}`), CreatedAt: time.Now(), SizeBytes: 7}
	if err := s.Put("abc12345_demo:textDocument_hover:src/main.go:"+hexHash(), "src/main.go", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get("abc12345_demo:textDocument_hover:src/main.go:" + hexHash())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected entry to be found")
	}
	if string(got.Data) != `{"x":1}` {
		t.Fatalf("unexpected data: %s", got.Data)
	}
}

func TestStoreInvalidateFileRemovesAllEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entry := types.CacheEntry{Data: []byte("x")}
	key1 := "abc12345_demo:textDocument_hover:src/main.go:" + hexHash()
	key2 := "abc12345_demo:textDocument_definition:src/main.go:" + hexHash()
	if err := s.Put(key1, "src/main.go", entry); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(key2, "src/main.go", entry); err != nil {
		t.Fatal(err)
	}

	n, err := s.InvalidateFile("src/main.go")
	if err != nil {
		t.Fatalf("InvalidateFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries invalidated, got %d", n)
	}

	if _, ok, _ := s.Get(key1); ok {
		t.Fatalf("expected key1 to be gone after invalidation")
	}
	if _, ok, _ := s.Get(key2); ok {
		t.Fatalf("expected key2 to be gone after invalidation")
	}
}

func TestStoreClearResetsCount(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entry := types.CacheEntry{Data: []byte("x")}
	if err := s.Put("k1", "f1", entry); err != nil {
		t.Fatal(err)
	}

	n, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected Clear to report 1 entry removed, got %d", n)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected empty store after Clear, got count=%d", count)
	}
}

func hexHash() string {
	return "00112233001122330011223300112233001122330011223300112233001122"
}

func TestReplaceFileSymbolsAndEdgesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	symbols := []types.Symbol{
		{SymbolUID: "go::main::run", File: "main.go", FileVersionID: 1, Name: "run"},
	}
	edges := []types.Edge{
		{SourceSymbolUID: "go::main::run", TargetSymbolUID: "go::main::helper", Relation: types.RelationCalls, AnchorFileVersionID: 1},
	}

	if err := s.ReplaceFileSymbolsAndEdges("main.go", 1, symbols, edges); err != nil {
		t.Fatalf("ReplaceFileSymbolsAndEdges: %v", err)
	}

	got, err := s.GetSymbolsForFile("main.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SymbolUID != "go::main::run" {
		t.Fatalf("unexpected symbols: %+v", got)
	}

	gotEdges, err := s.GetEdgesForFile("main.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(gotEdges) != 1 || gotEdges[0].TargetSymbolUID != "go::main::helper" {
		t.Fatalf("unexpected edges: %+v", gotEdges)
	}
}

func TestReplaceFileSymbolsAndEdgesSkipsStaleVersion(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	fresh := []types.Symbol{{SymbolUID: "go::main::run", File: "main.go", FileVersionID: 5, Name: "run-v5"}}
	if err := s.ReplaceFileSymbolsAndEdges("main.go", 5, fresh, nil); err != nil {
		t.Fatal(err)
	}

	stale := []types.Symbol{{SymbolUID: "go::main::run", File: "main.go", FileVersionID: 2, Name: "run-v2"}}
	if err := s.ReplaceFileSymbolsAndEdges("main.go", 2, stale, nil); err != nil {
		t.Fatal(err)
	}

	sym, ok, err := s.GetSymbol("go::main::run")
	if err != nil || !ok {
		t.Fatalf("expected symbol to exist: ok=%v err=%v", ok, err)
	}
	if sym.Name != "run-v5" {
		t.Fatalf("expected newer version to survive, got %q", sym.Name)
	}
}

func TestRemoveFileSymbolsAndEdges(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "abc12345_demo")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	symbols := []types.Symbol{{SymbolUID: "go::main::run", File: "main.go", FileVersionID: 1}}
	if err := s.ReplaceFileSymbolsAndEdges("main.go", 1, symbols, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveFileSymbolsAndEdges("main.go"); err != nil {
		t.Fatalf("RemoveFileSymbolsAndEdges: %v", err)
	}
	if _, ok, _ := s.GetSymbol("go::main::run"); ok {
		t.Fatalf("expected symbol to be removed")
	}
}
