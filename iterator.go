package txpool

import (
	"bytes"
	"container/heap"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/haardikk21/go-txpool/txrecord"
)

// BestTransactionsAttributes overrides the pool's tracked fees for the
// duration of one iterator, so a block builder can simulate a future
// block's basefee/blob fee without mutating pool state, per spec §4.6.
type BestTransactionsAttributes struct {
	BaseFee *uint256.Int
	BlobFee *uint256.Int
}

// txHead is one sender's current best candidate plus the rest of its
// executable chain, ascending by nonce.
type txHead struct {
	sender common.Address
	tx     *txrecord.Transaction
	rest   []*txrecord.Transaction
}

// txHeap orders heads by effective priority fee under basefee, highest
// first, tied by oldest insertion time then lexicographically by hash.
// Grounded on the teacher's types.TransactionsByPriceAndNonce, which uses
// the same container/heap-over-per-account-heads shape to merge multiple
// nonce-ordered chains into a single global best-first stream.
type txHeap struct {
	heads   []*txHead
	basefee *uint256.Int
}

func (h *txHeap) Len() int { return len(h.heads) }

func (h *txHeap) Less(i, j int) bool {
	fi := h.heads[i].tx.EffectivePriorityFee(h.basefee)
	fj := h.heads[j].tx.EffectivePriorityFee(h.basefee)
	if cmp := fi.Cmp(fj); cmp != 0 {
		return cmp > 0
	}
	ti, tj := h.heads[i].tx.Time(), h.heads[j].tx.Time()
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return bytes.Compare(h.heads[i].tx.Hash[:], h.heads[j].tx.Hash[:]) < 0
}

func (h *txHeap) Swap(i, j int) { h.heads[i], h.heads[j] = h.heads[j], h.heads[i] }

func (h *txHeap) Push(x any) { h.heads = append(h.heads, x.(*txHead)) }

func (h *txHeap) Pop() any {
	old := h.heads
	n := len(old)
	item := old[n-1]
	h.heads = old[:n-1]
	return item
}

// BestTransactionsIterator is the stateful best-first cursor of spec
// §4.6, shared across one block-building attempt. It takes a read-only
// snapshot of the pool's executable transactions at construction time;
// Next, MarkInvalid and SkipBlobs operate purely over that snapshot and
// never reacquire the pool lock, so a long block-building pass is never
// blocked by concurrent pool writes (nor does it observe them; see
// NoUpdates).
type BestTransactionsIterator struct {
	heap    txHeap
	basefee *uint256.Int
	blobfee *uint256.Int

	// sidecarOK records, per blob transaction, whether its sidecar was
	// attached when the snapshot was taken. Sidecar state is the one
	// record field the pool may mutate after insertion, so it is captured
	// here rather than re-read without the pool lock.
	sidecarOK map[common.Hash]bool

	skipBlobs bool
	lastHash  common.Hash
	lastValid bool
}

// BestTransactions constructs an iterator over p's currently executable
// transactions (nonce-continuous and funded, per sender), using attrs to
// override the pool's tracked fees if given.
func (p *Pool) BestTransactions(attrs *BestTransactionsAttributes) *BestTransactionsIterator {
	p.mu.RLock()
	defer p.mu.RUnlock()

	basefee := p.block.PendingBaseFee
	blobfee := p.block.PendingBlobFee
	if attrs != nil {
		if attrs.BaseFee != nil {
			basefee = attrs.BaseFee
		}
		if attrs.BlobFee != nil {
			blobfee = attrs.BlobFee
		}
	}
	if basefee == nil {
		basefee = new(uint256.Int)
	}

	it := &BestTransactionsIterator{
		heap:      txHeap{basefee: basefee},
		basefee:   basefee,
		blobfee:   blobfee,
		sidecarOK: make(map[common.Hash]bool),
	}
	for _, sender := range p.senders.Senders() {
		chain := p.executableChainLocked(sender)
		if len(chain) == 0 {
			continue
		}
		for _, tx := range chain {
			if tx.IsBlob() {
				it.sidecarOK[tx.Hash] = tx.SidecarState() == txrecord.Present
			}
		}
		it.pushChain(sender, chain)
	}
	heap.Init(&it.heap)
	return it
}

func (it *BestTransactionsIterator) pushChain(sender common.Address, chain []*txrecord.Transaction) {
	heap.Push(&it.heap, &txHead{sender: sender, tx: chain[0], rest: chain[1:]})
}

// executableChainLocked returns sender's transactions, ascending by
// nonce, up to (not including) the first nonce gap or balance-exhausting
// entry - the same continuity test reclassify uses to decide Queued
// membership, independent of fee sufficiency (fee sufficiency is the
// iterator's own concern, since it may be evaluating a hypothetical
// future basefee). Caller must hold p.mu.
func (p *Pool) executableChainLocked(sender common.Address) []*txrecord.Transaction {
	acc, ok := p.senders.Lookup(sender)
	if !ok {
		return nil
	}
	account := p.accountOf(sender)
	running := new(uint256.Int)
	var chain []*txrecord.Transaction
	expected := account.Nonce
	for _, nonce := range acc.AllNonces() {
		if nonce != expected {
			break
		}
		hash, _ := acc.Get(nonce)
		tx := p.arena[hash]
		if tx == nil {
			break
		}
		if account.Balance != nil {
			running.Add(running, tx.Cost())
			if running.Cmp(account.Balance) > 0 {
				break
			}
		}
		chain = append(chain, tx)
		expected = nonce + 1
	}
	return chain
}

// executable reports whether tx can be included in a block at its
// configured fees: its fee cap must cover basefee, and a blob transaction
// additionally needs a present sidecar and a sufficient blob fee cap.
func (it *BestTransactionsIterator) executable(tx *txrecord.Transaction) bool {
	if tx.GasFeeCap.Cmp(it.basefee) < 0 {
		return false
	}
	if tx.IsBlob() {
		if !it.sidecarOK[tx.Hash] {
			return false
		}
		if it.blobfee != nil && tx.BlobFeeCap.Cmp(it.blobfee) < 0 {
			return false
		}
	}
	return true
}

// dropSender removes the head entry belonging to sender from the heap
// entirely, discarding the rest of its chain - used by MarkInvalid,
// SkipBlobs, and fee-inexecutability, all of which suppress every
// higher-nonce descendant along with the transaction itself.
func (it *BestTransactionsIterator) dropSender(sender common.Address) {
	for i, head := range it.heap.heads {
		if head.sender == sender {
			heap.Remove(&it.heap, i)
			return
		}
	}
}

// Next returns the next best transaction, or false once the remaining
// yield set is empty. Each call that returns a transaction advances that
// transaction's sender to its next nonce, assuming normal consumption;
// call MarkInvalid immediately afterward to undo that assumption.
func (it *BestTransactionsIterator) Next() (*txrecord.Transaction, bool) {
	for it.heap.Len() > 0 {
		head := it.heap.heads[0]

		if it.skipBlobs && head.tx.IsBlob() {
			it.dropSender(head.sender)
			continue
		}
		if !it.executable(head.tx) {
			it.dropSender(head.sender)
			continue
		}

		tx := head.tx
		if len(head.rest) > 0 {
			head.tx, head.rest = head.rest[0], head.rest[1:]
			heap.Fix(&it.heap, 0)
		} else {
			heap.Pop(&it.heap)
		}
		it.lastHash, it.lastValid = tx.Hash, true
		return tx, true
	}
	return nil, false
}

// MarkInvalid signals that the transaction most recently returned by
// Next cannot be executed, per spec §4.6: it and every higher-nonce
// transaction of the same sender are removed from the remaining yield
// set. A call that does not reference the last-yielded hash is ignored.
func (it *BestTransactionsIterator) MarkInvalid(hash common.Hash, sender common.Address, _ error) {
	if !it.lastValid || it.lastHash != hash {
		return
	}
	it.lastValid = false
	it.dropSender(sender)
}

// SkipBlobs suppresses blob-carrying transactions, and every higher-nonce
// descendant of their senders, from the remaining yield set.
func (it *BestTransactionsIterator) SkipBlobs() {
	it.skipBlobs = true
	for i := 0; i < it.heap.Len(); {
		if it.heap.heads[i].tx.IsBlob() {
			heap.Remove(&it.heap, i)
			continue
		}
		i++
	}
}

// NoUpdates is a documented no-op: this iterator always operates over
// the snapshot taken at construction and never observes later pool
// writes, so there is nothing further to freeze. Present to satisfy
// spec §4.6's cursor interface for callers migrating from a live-updating
// implementation.
func (it *BestTransactionsIterator) NoUpdates() {}
