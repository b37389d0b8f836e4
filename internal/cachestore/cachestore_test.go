package cachestore

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/cachekey"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/wscache"
	"github.com/standardbeagle/lci-cached-nav/internal/workspace"
)

func newTestStore(t *testing.T) (*Store, *cachekey.Builder, string) {
	t.Helper()
	resolver := workspace.New()
	router, err := wscache.NewRouter(wscache.DefaultRouterConfig(t.TempDir()), resolver)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(router.CloseAll)

	store := New(DefaultConfig(), router)
	builder := cachekey.New(resolver)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return store, builder, root
}

func TestSetThenGetHitsL1(t *testing.T) {
	store, builder, root := newTestStore(t)
	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}

	key, err := builder.Build(types.MethodHover, file, `{}`)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set(key, []byte("cached-value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, ok := store.Get(key)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if string(data) != "cached-value" {
		t.Fatalf("unexpected data: %s", data)
	}
}

func TestGetOrComputeRunsOnce(t *testing.T) {
	store, builder, root := newTestStore(t)
	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}
	key, err := builder.Build(types.MethodDefinition, file, `{}`)
	if err != nil {
		t.Fatal(err)
	}
	sfKey := builder.BuildSingleflightKey(types.MethodDefinition, file, `{}`)

	var calls int32
	compute := func() ([]byte, time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("computed"), time.Minute, nil
	}

	data1, err := store.GetOrCompute(sfKey, key, compute)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := store.GetOrCompute(sfKey, key, compute)
	if err != nil {
		t.Fatal(err)
	}
	if string(data1) != "computed" || string(data2) != "computed" {
		t.Fatalf("unexpected values: %s, %s", data1, data2)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected compute to run exactly once, ran %d times", calls)
	}
}

// TestGetOrComputeDedupesAcrossMtimeChange guards the bug a storage-key
// derived single-flight key would reintroduce: two CacheKeys for the same
// logical request that differ only because the file's mtime changed
// between them must still collapse into the same single-flight slot, so
// long as callers share one synchronous sfKey.
func TestGetOrComputeDedupesAcrossMtimeChange(t *testing.T) {
	store, builder, root := newTestStore(t)
	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}

	sfKey := builder.BuildSingleflightKey(types.MethodDefinition, file, `{}`)

	keyBefore, err := builder.Build(types.MethodDefinition, file, `{}`)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Chtimes(file, time.Now().Add(time.Second), time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	keyAfter, err := builder.Build(types.MethodDefinition, file, `{}`)
	if err != nil {
		t.Fatal(err)
	}
	if keyBefore.ContentHash == keyAfter.ContentHash {
		t.Fatalf("expected the mtime change to produce a different CacheKey")
	}

	var calls int32
	var wg sync.WaitGroup
	results := make([][]byte, 2)
	keys := []types.CacheKey{keyBefore, keyAfter}
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := store.GetOrCompute(sfKey, keys[i], func() ([]byte, time.Duration, error) {
				atomic.AddInt32(&calls, 1)
				return []byte("computed"), time.Minute, nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected compute to run exactly once across racing mtimes, ran %d times", calls)
	}
	if string(results[0]) != "computed" || string(results[1]) != "computed" {
		t.Fatalf("unexpected values: %s, %s", results[0], results[1])
	}
}

func TestInvalidateFileUsesByFileIndexNotPlaceholders(t *testing.T) {
	store, builder, root := newTestStore(t)
	file := filepath.Join(root, "lib.go")
	if err := os.WriteFile(file, []byte("package lib"), 0644); err != nil {
		t.Fatal(err)
	}

	key1, err := builder.Build(types.MethodHover, file, `{"a":1}`)
	if err != nil {
		t.Fatal(err)
	}
	key2, err := builder.Build(types.MethodDefinition, file, `{"a":2}`)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set(key1, []byte("v1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(key2, []byte("v2"), time.Minute); err != nil {
		t.Fatal(err)
	}

	n, err := store.InvalidateFile(file, key1.WorkspaceRelativePath)
	if err != nil {
		t.Fatalf("InvalidateFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries invalidated, got %d", n)
	}

	if _, ok := store.Get(key1); ok {
		t.Fatalf("expected key1 to be invalidated")
	}
	if _, ok := store.Get(key2); ok {
		t.Fatalf("expected key2 to be invalidated")
	}
}

func TestSetRejectsOversizedEntry(t *testing.T) {
	store, builder, root := newTestStore(t)
	store.cfg.MaxEntrySize = 4

	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}
	key, err := builder.Build(types.MethodHover, file, `{}`)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set(key, []byte("too-big-to-cache"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(key); ok {
		t.Fatalf("expected oversized entry to be rejected")
	}
}
