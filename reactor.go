package txpool

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/haardikk21/go-txpool/txrecord"
)

// UpdateKind distinguishes a straight chain extension from a reorg, per
// spec §4.5.
type UpdateKind uint8

const (
	Commit UpdateKind = iota
	Reorg
)

func (k UpdateKind) String() string {
	if k == Reorg {
		return "reorg"
	}
	return "commit"
}

// AccountChange carries a sender's new on-chain nonce and balance, as
// observed in a canonical-state update.
type AccountChange struct {
	Address    common.Address
	NewNonce   uint64
	NewBalance *uint256.Int
}

// ReorgedTransaction is a previously-mined transaction the chain-tracker
// hands back for re-admission after a reorg removed the block it was
// mined in, per spec §4.5 step 4.
type ReorgedTransaction struct {
	Tx *txrecord.Transaction
}

// CanonicalStateUpdate is the chain-tracker's sole input to the reactor.
// Updates must be strictly ordered: every update's parent must be the
// pool's currently-tracked block, matching spec §6's input-channel
// contract. The pool does not itself verify chain linkage: an update that
// violates it is applied as given and no error is returned.
type CanonicalStateUpdate struct {
	NewTip            BlockInfo
	ChangedAccounts   []AccountChange
	MinedTransactions []common.Hash
	Reorged           []ReorgedTransaction // non-empty only when Kind == Reorg
	Kind              UpdateKind
}

// OnCanonicalStateChange implements the canonical-state reactor of spec
// §4.5. Grounded on the teacher's legacypool.runReorg: the new tip and its
// fees are recorded first, then mined removal, account-state reset, reorg
// re-admission, and finally a single reclassification of every sender the
// update touched or whose transactions crossed a fee threshold, all under the pool's
// single write lock so RPC/gossip readers never observe an intermediate
// state. Notifications are journaled and flushed after the lock drops.
func (p *Pool) OnCanonicalStateChange(update CanonicalStateUpdate) error {
	p.mu.Lock()

	oldBaseFee := p.block.PendingBaseFee
	oldBlobFee := p.block.PendingBlobFee
	p.block = update.NewTip

	// Senders whose sub-pool membership could have changed under this
	// update; each is reclassified exactly once at the end.
	dirty := mapset.NewThreadUnsafeSet[common.Address]()

	for _, hash := range update.MinedTransactions {
		tx, ok := p.arena[hash]
		if !ok {
			// Mined elsewhere (never pooled here, or already evicted) is a
			// no-op per SPEC_FULL.md's Open Question resolution: count it,
			// don't treat it as an inconsistency.
			minedUnknownMeter.Mark(1)
			continue
		}
		dirty.Add(tx.Sender)
		p.removeOne(hash, EvMined, nil, update.NewTip.Number)
	}

	for _, change := range update.ChangedAccounts {
		p.accounts[change.Address] = AccountState{Nonce: change.NewNonce, Balance: change.NewBalance}
		if acc, ok := p.senders.Lookup(change.Address); ok {
			for _, nonce := range acc.AllNonces() {
				if nonce >= change.NewNonce {
					continue
				}
				if hash, ok := acc.Get(nonce); ok {
					// Mined elsewhere or orphaned by the new chain view;
					// not a mined-here transaction, so no Mined event.
					p.removeOne(hash, EvDiscarded, ErrNonceTooLow, 0)
				}
			}
		}
		dirty.Add(change.Address)
	}

	if update.Kind == Reorg {
		for _, re := range update.Reorged {
			// Re-admission runs through the ordinary insertion path, per
			// spec §4.5 step 4: the same limits and replacement rules as
			// any fresh arrival, possibly landing in a different sub-pool
			// than before being mined. A duplicate (a second reorg handing
			// the same transaction back twice) is simply kept.
			if err := p.addLocked(re.Tx); err != nil && !errors.Is(err, ErrAlreadyImported) {
				log.Warn("txpool: reorg re-admission rejected", "hash", re.Tx.Hash, "err", err)
			}
		}
	}

	// Fee-threshold sweep of spec §4.5 step 5: the secondary fee-ordered
	// indexes surface only the transactions whose eligibility flipped
	// between the old and new fees, so the sweep is O(log n + k) in the
	// pool size rather than a full rescan.
	for _, hash := range p.feeByGas.Crossing(oldBaseFee, update.NewTip.PendingBaseFee) {
		if tx := p.arena[hash]; tx != nil {
			dirty.Add(tx.Sender)
		}
	}
	for _, hash := range p.feeByBlob.Crossing(oldBlobFee, update.NewTip.PendingBlobFee) {
		if tx := p.arena[hash]; tx != nil {
			dirty.Add(tx.Sender)
		}
	}

	dirty.Each(func(sender common.Address) bool {
		p.reclassify(sender)
		return false
	})

	tip := p.block
	p.jr.canon = &tip

	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
	return nil
}
