// Package wscache implements the persistent (L2) half of the cache: one
// bbolt database per workspace, opened on demand and pooled behind an
// LRU-bounded router (spec section 4.B/4.D). Unlike the system this was
// distilled from, where the persistent tier was stubbed out entirely
// (get_from_persistent_cache/set_in_persistent_cache always missed or
// no-op'd), this tier is fully functional: every set reaches durable
// storage and every get can be satisfied from it after a process
// restart.
package wscache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

var (
	bucketEntries       = []byte("entries")
	bucketByFile        = []byte("by_file")
	bucketMeta          = []byte("meta")
	bucketSymbols       = []byte("symbols")
	bucketSymbolsByFile = []byte("symbols_by_file")
	bucketEdges         = []byte("edges")
	bucketEdgesByFile   = []byte("edges_by_file")
)

var allBuckets = [][]byte{
	bucketEntries, bucketByFile, bucketMeta,
	bucketSymbols, bucketSymbolsByFile, bucketEdges, bucketEdgesByFile,
}

// Store is a single workspace's persistent cache, backed by one bbolt
// file under <base_cache_dir>/<workspace_id>.db. Beyond the query-result
// entries bucket, it also holds the derived symbol/edge rows the
// Analyzer Manager writes (spec section 4.H's "write to B").
type Store struct {
	db          *bolt.DB
	path        string
	workspaceID string
}

// Open creates or opens the bbolt database for workspaceID under dir,
// creating the buckets the store needs.
func Open(dir, workspaceID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("wscache: create cache dir: %w", err)
	}
	path := filepath.Join(dir, workspaceID+".db")

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("wscache: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path, workspaceID: workspaceID}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry stored under storageKey, if any.
func (s *Store) Get(storageKey string) (types.CacheEntry, bool, error) {
	var entry types.CacheEntry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(storageKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	return entry, found, err
}

// Put stores entry under storageKey and indexes it by relativePath so
// InvalidateFile / GetByFile can find it again.
func (s *Store) Put(storageKey, relativePath string, entry types.CacheEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketEntries).Put([]byte(storageKey), data); err != nil {
			return err
		}

		keys, err := s.fileIndex(tx, relativePath)
		if err != nil {
			return err
		}
		keys = addUnique(keys, storageKey)
		return s.putFileIndex(tx, relativePath, keys)
	})
}

// Remove deletes the entry for storageKey and drops it from its file
// index entry.
func (s *Store) Remove(storageKey, relativePath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Delete([]byte(storageKey)); err != nil {
			return err
		}
		keys, err := s.fileIndex(tx, relativePath)
		if err != nil {
			return err
		}
		keys = removeOne(keys, storageKey)
		return s.putFileIndex(tx, relativePath, keys)
	})
}

// GetByFile returns every storage key indexed under relativePath. This is
// the auxiliary file->keys index that fixes the "unknown" placeholder bug
// in the cache invalidation path this system was copied from: rather than
// reconstructing a storage key from fragments the caller doesn't have,
// invalidation looks up the keys this index already recorded at Put time.
func (s *Store) GetByFile(relativePath string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		keys, err = s.fileIndex(tx, relativePath)
		return err
	})
	return keys, err
}

// InvalidateFile removes every entry indexed under relativePath and
// returns how many were removed.
func (s *Store) InvalidateFile(relativePath string) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		keys, err := s.fileIndex(tx, relativePath)
		if err != nil {
			return err
		}
		entries := tx.Bucket(bucketEntries)
		for _, k := range keys {
			if err := entries.Delete([]byte(k)); err != nil {
				return err
			}
			removed++
		}
		return tx.Bucket(bucketByFile).Delete([]byte(relativePath))
	})
	return removed, err
}

// Clear empties every bucket in the workspace's database and returns the
// number of entries it held.
func (s *Store) Clear() (int, error) {
	var count int
	err := s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		count = entries.Stats().KeyN
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	return count, err
}

// Count reports the number of entries currently stored.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) fileIndex(tx *bolt.Tx, relativePath string) ([]string, error) {
	data := tx.Bucket(bucketByFile).Get([]byte(relativePath))
	if data == nil {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) putFileIndex(tx *bolt.Tx, relativePath string, keys []string) error {
	if len(keys) == 0 {
		return tx.Bucket(bucketByFile).Delete([]byte(relativePath))
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketByFile).Put([]byte(relativePath), data)
}

func addUnique(keys []string, k string) []string {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}

func removeOne(keys []string, k string) []string {
	out := keys[:0]
	for _, existing := range keys {
		if existing != k {
			out = append(out, existing)
		}
	}
	return out
}

// edgeKey produces the bucketEdges key for e: source, target, and
// relation joined, matching Edge.Key()'s dedup identity.
func edgeKey(e types.Edge) string {
	k := e.Key()
	return k[0] + "\x00" + k[1] + "\x00" + k[2]
}

// ReplaceFileSymbolsAndEdges atomically replaces every symbol and edge
// previously recorded for relativePath with the freshly extracted set.
// If any symbol already recorded for relativePath carries a FileVersionID
// newer than version, the call changes nothing: an out-of-order write from
// a superseded analyzer run loses to the newer one already stored (spec
// section 5's ordering guarantee). A write at the same version replaces
// the stored rows, and an incoming symbol whose UID is already stored with
// a newer FileVersionID keeps the stored row.
func (s *Store) ReplaceFileSymbolsAndEdges(relativePath string, version uint64, symbols []types.Symbol, edges []types.Edge) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		symBucket := tx.Bucket(bucketSymbols)
		symByFile := tx.Bucket(bucketSymbolsByFile)
		edgeBucket := tx.Bucket(bucketEdges)
		edgeByFile := tx.Bucket(bucketEdgesByFile)

		if oldUIDs, err := stringSliceAt(symByFile, relativePath); err == nil {
			for _, uid := range oldUIDs {
				if existing, ok, _ := getSymbolTx(symBucket, uid); ok && existing.FileVersionID > version {
					return nil
				}
			}
			for _, uid := range oldUIDs {
				symBucket.Delete([]byte(uid))
			}
		}
		if oldKeys, err := stringSliceAt(edgeByFile, relativePath); err == nil {
			for _, k := range oldKeys {
				edgeBucket.Delete([]byte(k))
			}
			edgeByFile.Delete([]byte(relativePath))
		}

		newUIDs := make([]string, 0, len(symbols))
		for _, sym := range symbols {
			existing, ok, err := getSymbolTx(symBucket, sym.SymbolUID)
			if err != nil {
				return err
			}
			if ok && existing.FileVersionID > sym.FileVersionID {
				newUIDs = append(newUIDs, sym.SymbolUID)
				continue
			}
			data, err := json.Marshal(sym)
			if err != nil {
				return err
			}
			if err := symBucket.Put([]byte(sym.SymbolUID), data); err != nil {
				return err
			}
			newUIDs = append(newUIDs, sym.SymbolUID)
		}
		if err := putStringSliceAt(symByFile, relativePath, newUIDs); err != nil {
			return err
		}

		newKeys := make([]string, 0, len(edges))
		for _, e := range edges {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			key := edgeKey(e)
			if err := edgeBucket.Put([]byte(key), data); err != nil {
				return err
			}
			newKeys = append(newKeys, key)
		}
		return putStringSliceAt(edgeByFile, relativePath, newKeys)
	})
}

// GetSymbolsForFile returns every symbol currently recorded for
// relativePath.
func (s *Store) GetSymbolsForFile(relativePath string) ([]types.Symbol, error) {
	var out []types.Symbol
	err := s.db.View(func(tx *bolt.Tx) error {
		uids, err := stringSliceAt(tx.Bucket(bucketSymbolsByFile), relativePath)
		if err != nil {
			return err
		}
		symBucket := tx.Bucket(bucketSymbols)
		for _, uid := range uids {
			sym, ok, err := getSymbolTx(symBucket, uid)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, sym)
			}
		}
		return nil
	})
	return out, err
}

// GetSymbol returns the current row for uid, if any.
func (s *Store) GetSymbol(uid string) (types.Symbol, bool, error) {
	var sym types.Symbol
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		sym, found, err = getSymbolTx(tx.Bucket(bucketSymbols), uid)
		return err
	})
	return sym, found, err
}

// GetEdgesForFile returns every edge currently recorded for relativePath.
func (s *Store) GetEdgesForFile(relativePath string) ([]types.Edge, error) {
	var out []types.Edge
	err := s.db.View(func(tx *bolt.Tx) error {
		keys, err := stringSliceAt(tx.Bucket(bucketEdgesByFile), relativePath)
		if err != nil {
			return err
		}
		edgeBucket := tx.Bucket(bucketEdges)
		for _, k := range keys {
			data := edgeBucket.Get([]byte(k))
			if data == nil {
				continue
			}
			var e types.Edge
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// RemoveFileSymbolsAndEdges drops every symbol and edge recorded for
// relativePath (used when a file is deleted rather than reindexed).
func (s *Store) RemoveFileSymbolsAndEdges(relativePath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		symBucket := tx.Bucket(bucketSymbols)
		uids, err := stringSliceAt(tx.Bucket(bucketSymbolsByFile), relativePath)
		if err != nil {
			return err
		}
		for _, uid := range uids {
			symBucket.Delete([]byte(uid))
		}
		if err := tx.Bucket(bucketSymbolsByFile).Delete([]byte(relativePath)); err != nil {
			return err
		}

		edgeBucket := tx.Bucket(bucketEdges)
		keys, err := stringSliceAt(tx.Bucket(bucketEdgesByFile), relativePath)
		if err != nil {
			return err
		}
		for _, k := range keys {
			edgeBucket.Delete([]byte(k))
		}
		return tx.Bucket(bucketEdgesByFile).Delete([]byte(relativePath))
	})
}

func getSymbolTx(bucket *bolt.Bucket, uid string) (types.Symbol, bool, error) {
	data := bucket.Get([]byte(uid))
	if data == nil {
		return types.Symbol{}, false, nil
	}
	var sym types.Symbol
	if err := json.Unmarshal(data, &sym); err != nil {
		return types.Symbol{}, false, err
	}
	return sym, true, nil
}

func stringSliceAt(bucket *bolt.Bucket, key string) ([]string, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func putStringSliceAt(bucket *bolt.Bucket, key string, values []string) error {
	if len(values) == 0 {
		return bucket.Delete([]byte(key))
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), data)
}
