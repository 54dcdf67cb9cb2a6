package txpool

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// feeIndex is the secondary ordering of spec §4.5 step 5: every pooled
// transaction keyed by one fee dimension, so that a base-fee (or blob-fee)
// change can locate exactly the transactions whose eligibility flipped in
// O(log n + k) instead of sweeping the whole pool. The pool keeps one
// instance over max_fee_per_gas for all transactions and a second over
// max_fee_per_blob_gas for blob transactions.
//
// Entries are a slice kept sorted by (fee, hash); n is bounded by the pool
// count limit, and mutation is already amortized against the O(log n) heap
// work every insertion performs anyway.
type feeIndex struct {
	entries []feeEntry
}

type feeEntry struct {
	fee  *uint256.Int
	hash common.Hash
}

// atOrAfter reports whether e sorts at or after (fee, hash).
func atOrAfter(e feeEntry, fee *uint256.Int, hash common.Hash) bool {
	if cmp := e.fee.Cmp(fee); cmp != 0 {
		return cmp > 0
	}
	return bytes.Compare(e.hash[:], hash[:]) >= 0
}

// slot returns the index at which (fee, hash) is or would be stored.
func (ix *feeIndex) slot(fee *uint256.Int, hash common.Hash) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		return atOrAfter(ix.entries[i], fee, hash)
	})
}

// Insert records hash under fee. Inserting a hash twice under the same fee
// is a caller bug; the pool's arena-duplicate check upstream prevents it.
func (ix *feeIndex) Insert(fee *uint256.Int, hash common.Hash) {
	i := ix.slot(fee, hash)
	ix.entries = append(ix.entries, feeEntry{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = feeEntry{fee: fee, hash: hash}
}

// Remove drops the entry for (fee, hash), if present.
func (ix *feeIndex) Remove(fee *uint256.Int, hash common.Hash) {
	i := ix.slot(fee, hash)
	if i >= len(ix.entries) || ix.entries[i].hash != hash || ix.entries[i].fee.Cmp(fee) != 0 {
		return
	}
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
}

// Len returns the number of indexed transactions.
func (ix *feeIndex) Len() int { return len(ix.entries) }

// Crossing returns the hashes whose eligibility may have flipped when the
// tracked fee moved from old to next: those with old <= fee < next (a rise
// demotes them) or next <= fee < old (a fall promotes them). A nil fee is
// treated as zero, matching the pool's fee classification of pre-activation
// blocks.
func (ix *feeIndex) Crossing(old, next *uint256.Int) []common.Hash {
	lo, hi := old, next
	if lo == nil {
		lo = new(uint256.Int)
	}
	if hi == nil {
		hi = new(uint256.Int)
	}
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	if lo.Cmp(hi) == 0 {
		return nil
	}
	start := ix.slot(lo, common.Hash{})
	var out []common.Hash
	for i := start; i < len(ix.entries); i++ {
		if ix.entries[i].fee.Cmp(hi) >= 0 {
			break
		}
		out = append(out, ix.entries[i].hash)
	}
	return out
}
