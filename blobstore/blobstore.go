// Package blobstore implements the content-addressed store that keeps
// EIP-4844 blob sidecars independently of pool membership: a mined
// transaction's sidecar stays here after the record leaves the pool, until
// the chain-tracker calls Delete at finality depth. The pool deletes the
// sidecar of a replaced or evicted transaction right away.
//
// Grounded on the teacher's core/txpool/blobpool, which backs its sidecar
// storage with github.com/holiman/billy, a slab-file store keyed by a
// monotonic id rather than content hash; this package layers a
// hash->billy-id index on top, exactly as the teacher's blobpool.lookup
// does for its own (larger) transaction-plus-sidecar blobs.
package blobstore

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/billy"
)

// sizeClasses mirrors the teacher's geometric slotter (blobpool/slotter.go):
// billy needs a fixed set of growing bucket sizes to shelve variable-length
// blobs without excessive internal fragmentation.
var sizeClasses = []uint32{
	4 * 1024,
	16 * 1024,
	64 * 1024,
	256 * 1024,
	1024 * 1024,
}

func newSlotter() func() (uint32, bool) {
	i := 0
	return func() (uint32, bool) {
		size := sizeClasses[i]
		done := i == len(sizeClasses)-1
		if !done {
			i++
		}
		return size, done
	}
}

// Store is a content-addressed hash -> sidecar mapping, backed by a billy
// slab database so large blob payloads are not duplicated in Go heap
// memory alongside the pool's other indices.
type Store struct {
	lock sync.RWMutex
	db   billy.Database
	ids  map[common.Hash]uint64 // hash -> billy slot id
}

// Open creates or reopens a blob store rooted at dir, exactly as the
// teacher's blobpool.Open roots its billy.Database under the node's
// datadir. billy needs a real path to shelve slabs in, so tests use
// t.TempDir() the same way blobpool_test.go does.
func Open(dir string) (*Store, error) {
	s := &Store{ids: make(map[common.Hash]uint64)}

	db, err := billy.Open(billy.Options{Path: dir}, newSlotter(), func(id uint64, size uint32, data []byte) {
		// Index callback invoked during billy's startup scan; without a
		// recorded hash we cannot recover the key, so an unindexable
		// leftover datum here means it was orphaned before a clean
		// shutdown. The pool always calls Delete before finality, so
		// treat this as a warning rather than a fatal reconciliation.
		log.Warn("blobstore: skipping unindexed slot recovered at startup", "id", id, "size", size)
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	s.db = db
	return s, nil
}

// Put stores sidecar bytes under hash, overwriting any previous entry for
// the same hash (a replaced transaction that shares a hash never happens,
// but a re-admitted reorged transaction reusing the same hash is expected).
func (s *Store) Put(hash common.Hash, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if old, ok := s.ids[hash]; ok {
		if err := s.db.Delete(old); err != nil {
			log.Warn("blobstore: failed to delete stale slot before overwrite", "hash", hash, "err", err)
		}
	}
	id, err := s.db.Put(data)
	if err != nil {
		return fmt.Errorf("store sidecar %s: %w", hash, err)
	}
	s.ids[hash] = id
	return nil
}

// Get returns the sidecar bytes stored under hash, or false if absent.
func (s *Store) Get(hash common.Hash) ([]byte, bool) {
	s.lock.RLock()
	id, ok := s.ids[hash]
	s.lock.RUnlock()
	if !ok {
		return nil, false
	}
	data, err := s.db.Get(id)
	if err != nil {
		log.Error("blobstore: indexed slot missing from billy database", "hash", hash, "id", id, "err", err)
		return nil, false
	}
	return data, true
}

// Has reports whether hash has a stored sidecar, without paying for the
// billy read.
func (s *Store) Has(hash common.Hash) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.ids[hash]
	return ok
}

// Delete removes the sidecar for hash. Called by the chain-tracker once a
// mined transaction has passed the finality-depth threshold; calling it
// for a hash with no stored sidecar is a silent no-op.
func (s *Store) Delete(hash common.Hash) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	id, ok := s.ids[hash]
	if !ok {
		return nil
	}
	delete(s.ids, hash)
	if err := s.db.Delete(id); err != nil {
		return fmt.Errorf("delete sidecar %s: %w", hash, err)
	}
	return nil
}

// Len returns the number of sidecars currently retained.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.ids)
}

// Close releases the underlying billy database.
func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.db.Close()
}
