// Package senderindex maintains, for every sender address, the dense
// nonce -> transaction-hash mapping the pool needs to compute executable
// prefixes and descendant sets without scanning the whole pool.
//
// Grounded on the ordered nonce map visible in the teacher's
// core/txpool/legacypool/list.go (exercised by list_test.go): a sorted
// structure per account, with Forward/Ready/Cap-style range operations.
// This package expresses the same idea with a plain sorted slice of
// nonces per account, which is simpler to reason about at the scale a
// single account's outstanding transactions reach in practice (low
// hundreds at most, bounded by per-sender pool limits).
package senderindex

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNonceAlreadyKnown is returned by Insert when the nonce already has an
// occupant and the caller has not resolved replacement out of band.
var ErrNonceAlreadyKnown = errDup{}

type errDup struct{}

func (errDup) Error() string { return "nonce already known" }

// Account is the per-sender ordered nonce -> hash map.
type Account struct {
	txs    map[uint64]common.Hash
	nonces []uint64 // kept sorted; rebuilt on every mutation
}

func newAccount() *Account {
	return &Account{txs: make(map[uint64]common.Hash)}
}

// sync rebuilds the sorted-nonce cache. Called by the mutators only, so
// every read path is write-free and safe under a shared read lock.
func (a *Account) sync() {
	a.nonces = a.nonces[:0]
	for n := range a.txs {
		a.nonces = append(a.nonces, n)
	}
	sort.Slice(a.nonces, func(i, j int) bool { return a.nonces[i] < a.nonces[j] })
}

// Len returns the number of transactions held for this account.
func (a *Account) Len() int { return len(a.txs) }

// Get returns the hash at nonce, if any.
func (a *Account) Get(nonce uint64) (common.Hash, bool) {
	h, ok := a.txs[nonce]
	return h, ok
}

// put inserts or overwrites nonce -> hash unconditionally; used by Insert
// (after its occupancy check) and Replace.
func (a *Account) put(nonce uint64, hash common.Hash) {
	_, existed := a.txs[nonce]
	a.txs[nonce] = hash
	if !existed {
		a.sync()
	}
}

// Remove deletes the transaction at nonce, if present.
func (a *Account) Remove(nonce uint64) (common.Hash, bool) {
	h, ok := a.txs[nonce]
	if !ok {
		return common.Hash{}, false
	}
	delete(a.txs, nonce)
	a.sync()
	return h, true
}

// ExecutablePrefix returns the nonces of the longest gap-free run starting
// at onChainNonce, per spec §4.2.
func (a *Account) ExecutablePrefix(onChainNonce uint64) []uint64 {
	var prefix []uint64
	want := onChainNonce
	for _, n := range a.nonces {
		if n != want {
			break
		}
		prefix = append(prefix, n)
		want++
	}
	return prefix
}

// HighestConsecutive returns the last nonce of the executable prefix, and
// whether the prefix is non-empty.
func (a *Account) HighestConsecutive(onChainNonce uint64) (uint64, bool) {
	prefix := a.ExecutablePrefix(onChainNonce)
	if len(prefix) == 0 {
		return 0, false
	}
	return prefix[len(prefix)-1], true
}

// Descendants returns all nonces >= the given nonce, ascending.
func (a *Account) Descendants(nonce uint64) []uint64 {
	idx := sort.Search(len(a.nonces), func(i int) bool { return a.nonces[i] >= nonce })
	out := make([]uint64, len(a.nonces)-idx)
	copy(out, a.nonces[idx:])
	return out
}

// AllNonces returns every held nonce, ascending.
func (a *Account) AllNonces() []uint64 {
	out := make([]uint64, len(a.nonces))
	copy(out, a.nonces)
	return out
}

// Index is the sender -> Account map the pool keeps one of.
type Index struct {
	accounts map[common.Address]*Account
}

// New creates an empty sender index.
func New() *Index {
	return &Index{accounts: make(map[common.Address]*Account)}
}

// Account returns the account for addr, creating it if absent.
func (idx *Index) Account(addr common.Address) *Account {
	acc, ok := idx.accounts[addr]
	if !ok {
		acc = newAccount()
		idx.accounts[addr] = acc
	}
	return acc
}

// Lookup returns the account for addr without creating it.
func (idx *Index) Lookup(addr common.Address) (*Account, bool) {
	acc, ok := idx.accounts[addr]
	return acc, ok
}

// Insert places hash at (addr, nonce). It returns ErrNonceAlreadyKnown if
// the nonce is occupied; callers must resolve replacement themselves
// (remove the incumbent and Insert again, or overwrite it with Replace)
// per spec §4.2/§4.4.
func (idx *Index) Insert(addr common.Address, nonce uint64, hash common.Hash) error {
	acc := idx.Account(addr)
	if _, exists := acc.Get(nonce); exists {
		return ErrNonceAlreadyKnown
	}
	acc.put(nonce, hash)
	return nil
}

// Replace unconditionally overwrites the occupant at (addr, nonce),
// returning the previous hash if any, for a caller that has already
// approved a replacement bid. The pool core does not call it: it removes
// the incumbent and then calls Insert.
func (idx *Index) Replace(addr common.Address, nonce uint64, hash common.Hash) (common.Hash, bool) {
	acc := idx.Account(addr)
	old, existed := acc.Get(nonce)
	acc.put(nonce, hash)
	return old, existed
}

// Remove deletes (addr, nonce), pruning the account entirely once empty.
func (idx *Index) Remove(addr common.Address, nonce uint64) (common.Hash, bool) {
	acc, ok := idx.accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	h, removed := acc.Remove(nonce)
	if acc.Len() == 0 {
		delete(idx.accounts, addr)
	}
	return h, removed
}

// Senders returns every address currently tracked.
func (idx *Index) Senders() []common.Address {
	out := make([]common.Address, 0, len(idx.accounts))
	for addr := range idx.accounts {
		out = append(out, addr)
	}
	return out
}
