package txpool

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/haardikk21/go-txpool/subpool"
	"github.com/haardikk21/go-txpool/txrecord"
)

// AddTransactions inserts a batch, returning one error slot per input in
// order (nil on success), the way legacypool.Add reports per-transaction
// outcomes for a gossip batch.
func (p *Pool) AddTransactions(txs []*txrecord.Transaction) []error {
	errs := make([]error, len(txs))
	p.mu.Lock()
	for i, tx := range txs {
		errs[i] = p.addLocked(tx)
	}
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
	return errs
}

// Contains reports whether hash is currently pooled.
func (p *Pool) Contains(hash common.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.arena[hash]
	return ok
}

// GetAll returns the pooled records among hashes, preserving input order
// and skipping unknowns.
func (p *Pool) GetAll(hashes []common.Hash) []*txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*txrecord.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if tx, ok := p.arena[h]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// FilterUnknown returns the subset of an announcement's hashes the pool
// does not already hold, for deciding which announced transactions are
// worth fetching from a peer.
func (p *Pool) FilterUnknown(hashes []common.Hash) []common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var unknown []common.Hash
	for _, h := range hashes {
		if _, ok := p.arena[h]; !ok {
			unknown = append(unknown, h)
		}
	}
	return unknown
}

// PendingAndQueuedCount returns the occupancy of the two ends of the
// readiness spectrum in one snapshot.
func (p *Pool) PendingAndQueuedCount() (pending, queued int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sets[subpool.Pending].Len(), p.sets[subpool.Queued].Len()
}

// PooledTransactionHashesMax returns at most max pooled hashes, for
// size-capped initial peer sync messages.
func (p *Pool) PooledTransactionHashesMax(max int) []common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Hash, 0, max)
	for h := range p.arena {
		if len(out) == max {
			break
		}
		out = append(out, h)
	}
	return out
}

// GetTransactionsByOrigin returns every pooled transaction submitted
// through the given channel.
func (p *Pool) GetTransactionsByOrigin(origin txrecord.Origin) []*txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*txrecord.Transaction
	for _, tx := range p.arena {
		if tx.TxOrigin() == origin {
			out = append(out, tx)
		}
	}
	return out
}

// GetPendingTransactionsBySender returns addr's transactions currently in
// the Pending sub-pool, ordered by nonce.
func (p *Pool) GetPendingTransactionsBySender(addr common.Address) []*txrecord.Transaction {
	return p.senderTransactionsIn(addr, subpool.Pending)
}

// GetQueuedTransactionsBySender returns addr's transactions currently in
// the Queued sub-pool, ordered by nonce.
func (p *Pool) GetQueuedTransactionsBySender(addr common.Address) []*txrecord.Transaction {
	return p.senderTransactionsIn(addr, subpool.Queued)
}

func (p *Pool) senderTransactionsIn(addr common.Address, tag subpool.Tag) []*txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.senders.Lookup(addr)
	if !ok {
		return nil
	}
	var out []*txrecord.Transaction
	for _, n := range acc.AllNonces() {
		h, _ := acc.Get(n)
		if p.membership[h] == tag {
			out = append(out, p.arena[h])
		}
	}
	return out
}

// GetHighestTransactionBySender returns addr's highest-nonce pooled
// transaction, or nil.
func (p *Pool) GetHighestTransactionBySender(addr common.Address) *txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.senders.Lookup(addr)
	if !ok {
		return nil
	}
	nonces := acc.AllNonces()
	if len(nonces) == 0 {
		return nil
	}
	h, _ := acc.Get(nonces[len(nonces)-1])
	return p.arena[h]
}

// GetHighestConsecutiveTransactionBySender returns the last transaction of
// addr's executable prefix starting at the sender's on-chain nonce, or
// nil if the prefix is empty - the highest nonce a block built right now
// could include for this sender.
func (p *Pool) GetHighestConsecutiveTransactionBySender(addr common.Address) *txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.senders.Lookup(addr)
	if !ok {
		return nil
	}
	nonce, ok := acc.HighestConsecutive(p.accountOf(addr).Nonce)
	if !ok {
		return nil
	}
	h, _ := acc.Get(nonce)
	return p.arena[h]
}

// GetTransactionBySenderAndNonce returns the pooled transaction occupying
// (addr, nonce), or nil.
func (p *Pool) GetTransactionBySenderAndNonce(addr common.Address, nonce uint64) *txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.senders.Lookup(addr)
	if !ok {
		return nil
	}
	h, ok := acc.Get(nonce)
	if !ok {
		return nil
	}
	return p.arena[h]
}

// UniqueSenders returns every address with at least one pooled
// transaction.
func (p *Pool) UniqueSenders() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.senders.Senders()
}

// RemoveTransactions drops the given hashes from the pool without touching
// their senders' other transactions; any higher nonces left gapped by a
// removal migrate to queued through the usual reclassification. Unknown
// hashes are skipped. Returns the removed records.
func (p *Pool) RemoveTransactions(hashes []common.Hash) []*txrecord.Transaction {
	p.mu.Lock()
	var removed []*txrecord.Transaction
	touched := make(map[common.Address]struct{})
	for _, h := range hashes {
		tx, ok := p.arena[h]
		if !ok {
			continue
		}
		removed = append(removed, tx)
		touched[tx.Sender] = struct{}{}
		p.removeOne(h, EvDiscarded, nil, 0)
	}
	for sender := range touched {
		p.reclassify(sender)
	}
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
	return removed
}

// RemoveTransactionsAndDescendants drops the given hashes and, for each,
// every higher-nonce transaction of the same sender.
func (p *Pool) RemoveTransactionsAndDescendants(hashes []common.Hash) {
	p.mu.Lock()
	for _, h := range hashes {
		p.evictSingle(h, EvDiscarded, nil)
	}
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
}

// RemoveTransactionsBySender drops every pooled transaction of addr.
func (p *Pool) RemoveTransactionsBySender(addr common.Address) {
	p.mu.Lock()
	if acc, ok := p.senders.Lookup(addr); ok {
		for _, nonce := range acc.AllNonces() {
			if h, ok := acc.Get(nonce); ok {
				p.removeOne(h, EvDiscarded, nil, 0)
			}
		}
	}
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
}

// GetAllBlobs returns the stored sidecars for the given hashes, keyed by
// hash; hashes with no stored sidecar are omitted.
func (p *Pool) GetAllBlobs(hashes []common.Hash) map[common.Hash][]byte {
	out := make(map[common.Hash][]byte)
	for _, h := range hashes {
		if data, ok := p.blobs.Get(h); ok {
			out[h] = data
		}
	}
	return out
}

// DeleteBlobs removes the stored sidecars for a batch of finalized
// transactions.
func (p *Pool) DeleteBlobs(hashes []common.Hash) error {
	for _, h := range hashes {
		if err := p.blobs.Delete(h); err != nil {
			return err
		}
	}
	return nil
}
