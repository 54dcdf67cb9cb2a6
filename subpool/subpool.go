// Package subpool implements the four ordered sub-pool sets of spec §3/§4.3
// (Queued, BaseFee, Blob, Pending), each able to report both its best
// element (for best-first block-building iteration) and its worst element
// (for eviction) in O(log n).
//
// Grounded on two teacher patterns: the generic max-heap
// github.com/ethereum/go-ethereum/common/prque.Prque, used directly for the
// ordering; and the lazy-staleness technique of the teacher's
// core/txpool/legacypool pricedList (a heap entry that no longer matches
// the tracked "current" value for its key is discarded on pop instead of
// hunted down and removed eagerly) so membership changes never require an
// O(n) heap rebuild.
package subpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/prque"
)

// Tag is the sub-pool membership of a transaction. The numeric order
// matches spec §3's total order Queued < BaseFee < Blob < Pending.
type Tag uint8

const (
	Queued Tag = iota
	BaseFee
	Blob
	Pending
)

func (t Tag) String() string {
	switch t {
	case Queued:
		return "queued"
	case BaseFee:
		return "basefee"
	case Blob:
		return "blob"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// seqSpace reserves the low 24 bits of each packed key for the tie-break
// component, so two transactions with an identical primary value still
// order deterministically without a secondary compare pass. 1<<24
// insertion sequence numbers (16.7M) comfortably outlives any single
// pool's lifetime between restarts; wrapping past it only degrades the
// tie-break ordering between very old and very new entries of otherwise
// -equal value, never pool correctness.
const seqSpace = 1 << 24

// maxValue is the largest primary value that can be packed without the
// tie-break bits bleeding into it.
const maxValue = (int64(1) << 62) / seqSpace

// PackKey combines a "goodness" value (higher is better: a fee, or an
// insertion sequence number standing in for recency) with a tie-break
// component into a single orderable key. Lower tie-break values sort as
// strictly better among equal primary values. The fee-keyed sub-pools
// (Pending/BaseFee/Blob) pass the transaction's insertion sequence as the
// tie-break, so older transactions rank better per spec §4.3; Queued
// passes its insertion sequence as the primary value (oldest evicted
// first) and a hash derivation as the tie-break.
func PackKey(value uint64, tiebreak uint64) int64 {
	v := int64(value)
	if v > maxValue || v < 0 {
		v = maxValue
	}
	s := int64(tiebreak % seqSpace)
	return v*seqSpace - s
}

// Set is one ordered sub-pool. It is not safe for concurrent use; callers
// serialize access the way the pool core serializes all mutation under its
// own write lock.
type Set struct {
	tag     Tag
	best    *prque.Prque[int64, common.Hash] // max-heap: top is the highest key
	worst   *prque.Prque[int64, common.Hash] // max-heap on negated key: top is the lowest real key
	current map[common.Hash]int64
}

// NewSet creates an empty ordered set for the given sub-pool tag.
func NewSet(tag Tag) *Set {
	return &Set{
		tag:     tag,
		best:    prque.New[int64, common.Hash](nil),
		worst:   prque.New[int64, common.Hash](nil),
		current: make(map[common.Hash]int64),
	}
}

// Tag returns this set's sub-pool tag.
func (s *Set) Tag() Tag { return s.tag }

// Len returns the number of live members.
func (s *Set) Len() int { return len(s.current) }

// Contains reports whether hash is currently a member.
func (s *Set) Contains(hash common.Hash) bool {
	_, ok := s.current[hash]
	return ok
}

// Upsert inserts hash with the given key, or updates its key (promotion or
// demotion within the same set) if already a member. The stale heap entry
// left behind by an update is discarded lazily the next time it surfaces
// at the top of either heap.
func (s *Set) Upsert(hash common.Hash, key int64) {
	s.current[hash] = key
	s.best.Push(hash, key)
	s.worst.Push(hash, -key)
}

// Remove drops hash from the set. Any heap entries already pushed for it
// become stale and are discarded lazily.
func (s *Set) Remove(hash common.Hash) bool {
	if _, ok := s.current[hash]; !ok {
		return false
	}
	delete(s.current, hash)
	return true
}

// Best returns the member with the highest key, without removing it.
func (s *Set) Best() (common.Hash, int64, bool) {
	for !s.best.Empty() {
		hash, key := s.best.Pop()
		cur, live := s.current[hash]
		if !live || cur != key {
			continue // stale: superseded or removed since this was pushed
		}
		s.best.Push(hash, key) // restore; Pop only peeks logically here
		return hash, key, true
	}
	return common.Hash{}, 0, false
}

// Worst returns the member with the lowest key, without removing it: the
// eviction candidate of spec §4.4's eviction policy.
func (s *Set) Worst() (common.Hash, int64, bool) {
	for !s.worst.Empty() {
		hash, negKey := s.worst.Pop()
		key := -negKey
		cur, live := s.current[hash]
		if !live || cur != key {
			continue // stale: superseded or removed since this was pushed
		}
		s.worst.Push(hash, negKey) // restore; Pop only peeks logically here
		return hash, key, true
	}
	return common.Hash{}, 0, false
}

// WorstMatching is Worst, but skipping any member for which skip returns
// true - used to walk past protected (locally submitted) transactions
// when hunting for an eviction candidate, the way the teacher's
// legacypool never lets its noLocals exemption surface a local as a
// truncatePending/truncateQueue victim. Every skipped entry is restored
// before returning, so the exemption never drops a member from the set.
func (s *Set) WorstMatching(skip func(common.Hash) bool) (common.Hash, int64, bool) {
	if skip == nil {
		return s.Worst()
	}
	var skipped []common.Hash
	defer func() {
		for _, h := range skipped {
			if key, live := s.current[h]; live {
				s.worst.Push(h, -key)
			}
		}
	}()
	for !s.worst.Empty() {
		hash, negKey := s.worst.Pop()
		key := -negKey
		cur, live := s.current[hash]
		if !live || cur != key {
			continue
		}
		if skip(hash) {
			skipped = append(skipped, hash)
			continue
		}
		s.worst.Push(hash, negKey)
		return hash, key, true
	}
	return common.Hash{}, 0, false
}

// PopWorst removes and returns the member with the lowest key.
func (s *Set) PopWorst() (common.Hash, int64, bool) {
	hash, key, ok := s.Worst()
	if !ok {
		return common.Hash{}, 0, false
	}
	delete(s.current, hash)
	return hash, key, true
}

// Members returns every live hash, in no particular order.
func (s *Set) Members() []common.Hash {
	out := make([]common.Hash, 0, len(s.current))
	for h := range s.current {
		out = append(out, h)
	}
	return out
}
