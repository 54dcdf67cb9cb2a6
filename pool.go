// Package txpool implements the mempool core described in spec.md: sender
// indexing and nonce continuity, fee-market-aware sub-pool membership,
// best-first block-building iteration, replacement and eviction, and
// canonical-state reactions to commits and reorgs.
//
// Grounded on the teacher's core/txpool (the coordinator/subpool split) and
// core/txpool/legacypool (the single-pool insertion/promotion/eviction
// algorithms); see DESIGN.md for the full per-component ledger.
package txpool

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"

	"github.com/haardikk21/go-txpool/blobstore"
	"github.com/haardikk21/go-txpool/senderindex"
	"github.com/haardikk21/go-txpool/subpool"
	"github.com/haardikk21/go-txpool/txrecord"
)

var (
	pendingGauge = metrics.NewRegisteredGauge("txpool/pending", nil)
	basefeeGauge = metrics.NewRegisteredGauge("txpool/basefee", nil)
	blobGauge    = metrics.NewRegisteredGauge("txpool/blob", nil)
	queuedGauge  = metrics.NewRegisteredGauge("txpool/queued", nil)

	insertMeter       = metrics.NewRegisteredMeter("txpool/insert", nil)
	replaceMeter      = metrics.NewRegisteredMeter("txpool/replace", nil)
	evictMeter        = metrics.NewRegisteredMeter("txpool/evict", nil)
	minedUnknownMeter = metrics.NewRegisteredMeter("txpool/reactor/minedunknown", nil)
)

// AccountState is the pool's view of a sender's on-chain nonce and
// balance, updated by the canonical-state reactor. A nil Balance means the
// chain-tracker has not reported this account yet; the pool then applies
// no spend-budget constraint, since the validator already vouched for
// affordability at admission time (spec §4.4 preconditions).
type AccountState struct {
	Nonce   uint64
	Balance *uint256.Int
}

// Pool is the mempool core of spec §4.4. All public methods are safe for
// concurrent use; mutation is serialized under mu, matching the teacher's
// single pool.mu in legacypool. Notifications generated under the lock
// are journaled and flushed only after it is released, so no event
// delivery ever runs inside the critical section.
type Pool struct {
	mu sync.RWMutex

	cfg Config

	arena      map[common.Hash]*txrecord.Transaction // the sole owner of each record
	senders    *senderindex.Index
	sets       map[subpool.Tag]*subpool.Set
	membership map[common.Hash]subpool.Tag

	// seqs records each transaction's insertion sequence number, assigned
	// once at admission and reused for every sub-pool key the transaction
	// is ever given: the "older wins" tie-break must reflect insertion
	// order, not the order a later reclassification sweep happened to
	// visit senders in.
	seqs map[common.Hash]uint64

	// Secondary fee-ordered indexes for the canonical-update sweep: every
	// record by its gas fee cap, blob records additionally by their blob
	// fee cap, so a fee move reclassifies only the senders whose
	// transactions actually crossed the threshold.
	feeByGas  feeIndex
	feeByBlob feeIndex

	blobs     *blobstore.Store
	blobCount uint64 // blob-typed records in the pool, any sub-pool
	blobSize  uint64 // their cumulative encoded size

	accounts  map[common.Address]AccountState
	block     BlockInfo
	totalSize uint64
	seq       uint64

	// locals tracks senders that have ever submitted a Local-origin
	// transaction. Grounded on the teacher's core/txpool/locals tracker:
	// local senders are exempted from the cross-sender eviction path (they
	// may still be capped by their own per-sender limit), matching
	// legacypool's protection of locally-submitted transactions from
	// being dropped under outside pressure.
	locals mapset.Set[common.Address]

	jr     journal
	events *eventBus
}

// New constructs an empty pool. blobDir is passed through to
// blobstore.Open and must be a writable directory (tests use t.TempDir()).
func New(cfg Config, block BlockInfo, blobDir string) (*Pool, error) {
	blobs, err := blobstore.Open(blobDir)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	p := &Pool{
		cfg:        cfg.sanitize(),
		arena:      make(map[common.Hash]*txrecord.Transaction),
		senders:    senderindex.New(),
		membership: make(map[common.Hash]subpool.Tag),
		seqs:       make(map[common.Hash]uint64),
		blobs:      blobs,
		accounts:   make(map[common.Address]AccountState),
		block:      block,
		locals:     mapset.NewSet[common.Address](),
		events:     newEventBus(cfg.sanitize().ListenerChannelCapacity),
		sets: map[subpool.Tag]*subpool.Set{
			subpool.Queued:  subpool.NewSet(subpool.Queued),
			subpool.BaseFee: subpool.NewSet(subpool.BaseFee),
			subpool.Blob:    subpool.NewSet(subpool.Blob),
			subpool.Pending: subpool.NewSet(subpool.Pending),
		},
	}
	return p, nil
}

// Close releases the pool's blob store and event subscriptions.
func (p *Pool) Close() error {
	p.events.close()
	return p.blobs.Close()
}

func (p *Pool) nextSeq() uint64 {
	p.seq++
	return p.seq
}

func (p *Pool) accountOf(addr common.Address) AccountState {
	if acc, ok := p.accounts[addr]; ok {
		return acc
	}
	return AccountState{}
}

// takeJournal detaches the notifications accumulated by the current locked
// section. The caller flushes them after releasing p.mu.
func (p *Pool) takeJournal() journal {
	j := p.jr
	p.jr = journal{}
	return j
}

func (p *Pool) noteEvent(ev TxEvent) {
	p.jr.events = append(p.jr.events, ev)
}

// AddTransaction implements the insertion contract of spec §4.4.
func (p *Pool) AddTransaction(tx *txrecord.Transaction) error {
	p.mu.Lock()
	err := p.addLocked(tx)
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
	return err
}

// addLocked is the single insertion path: fresh arrivals and reorg
// re-admissions both run through it, so the replacement policy and the
// resource limits apply identically to each. Caller holds p.mu.
func (p *Pool) addLocked(tx *txrecord.Transaction) error {
	if _, ok := p.arena[tx.Hash]; ok {
		return ErrAlreadyImported
	}
	if tx.GasFeeCap.Cmp(p.cfg.MinProtocolBaseFee) < 0 {
		return ErrFeeCapTooLow
	}
	account := p.accountOf(tx.Sender)
	if tx.Nonce < account.Nonce {
		return ErrNonceTooLow
	}
	// Gossip may legitimately announce a blob transaction by hash alone,
	// with the sidecar following out of band via AttachSidecar. Direct
	// submission channels (local RPC, private bundles) have the full
	// transaction in hand and must include the sidecar up front.
	if tx.IsBlob() && tx.SidecarState() == txrecord.Missing && tx.TxOrigin() != txrecord.External {
		return ErrBlobSidecarMissing
	}

	if senderAcc, ok := p.senders.Lookup(tx.Sender); ok {
		if incumbentHash, exists := senderAcc.Get(tx.Nonce); exists {
			incumbent := p.arena[incumbentHash]
			if !outbids(incumbent, tx, p.cfg.PriceBumpPercent) {
				return ErrReplaceUnderpriced
			}
			// Replacement swaps out only the incumbent at this exact
			// nonce; unlike eviction it must not cascade to higher-nonce
			// descendants, which remain valid and are simply re-evaluated
			// by reclassify below once the new transaction is in place.
			p.removeOne(incumbentHash, EvReplaced, nil, 0)
			replaceMeter.Mark(1)
		}
	}

	if err := p.makeRoomFor(tx); err != nil {
		return err
	}

	if tx.TxOrigin() == txrecord.Local {
		p.locals.Add(tx.Sender)
	}

	if err := p.senders.Insert(tx.Sender, tx.Nonce, tx.Hash); err != nil {
		// Unreachable: makeRoomFor/replacement above already cleared any
		// occupant of this nonce.
		return fmt.Errorf("txpool: internal invariant broken: %w", err)
	}
	p.arena[tx.Hash] = tx
	p.seqs[tx.Hash] = p.nextSeq()
	p.totalSize += tx.Size()
	p.feeByGas.Insert(tx.GasFeeCap, tx.Hash)
	if tx.IsBlob() {
		p.feeByBlob.Insert(tx.BlobFeeCap, tx.Hash)
		p.blobCount++
		p.blobSize += tx.Size()
	}
	insertMeter.Mark(1)

	p.reclassify(tx.Sender)
	p.jr.newTxs = append(p.jr.newTxs, NewTxEvent{Hash: tx.Hash, Subpool: p.membership[tx.Hash], Origin: tx.TxOrigin()})

	if tx.IsBlob() && tx.SidecarState() == txrecord.Present {
		if err := p.storeSidecar(tx); err != nil {
			log.Error("txpool: failed to persist blob sidecar", "hash", tx.Hash, "err", err)
		}
	}
	return nil
}

func (p *Pool) storeSidecar(tx *txrecord.Transaction) error {
	sc := tx.Sidecar()
	if sc == nil {
		return nil
	}
	raw := encodeSidecar(sc)
	if err := p.blobs.Put(tx.Hash, raw); err != nil {
		return err
	}
	p.jr.sidecars = append(p.jr.sidecars, tx.Hash)
	return nil
}

// encodeSidecar flattens a sidecar into a byte blob for the content-
// addressed store; the pool never interprets these bytes.
func encodeSidecar(sc *txrecord.Sidecar) []byte {
	var out []byte
	for _, b := range sc.Blobs {
		out = append(out, b...)
	}
	for _, c := range sc.Commitments {
		out = append(out, c...)
	}
	for _, pr := range sc.Proofs {
		out = append(out, pr...)
	}
	return out
}

// outbids implements the replacement policy of spec §4.4: the incoming bid
// must beat the incumbent by at least bumpPercent on every applicable fee
// dimension (fee cap and priority fee always; blob fee cap additionally
// for blob transactions). This spec requires AND across dimensions, see
// SPEC_FULL.md's Open Question resolution.
func outbids(incumbent, incoming *txrecord.Transaction, bumpPercent uint64) bool {
	if !meetsBump(incumbent.GasFeeCap, incoming.GasFeeCap, bumpPercent) {
		return false
	}
	if !meetsBump(incumbent.GasTipCap, incoming.GasTipCap, bumpPercent) {
		return false
	}
	if incumbent.IsBlob() {
		if !incoming.IsBlob() {
			return false
		}
		if !meetsBump(incumbent.BlobFeeCap, incoming.BlobFeeCap, bumpPercent) {
			return false
		}
	}
	return true
}

// meetsBump reports whether candidate >= old*(100+bumpPercent)/100.
func meetsBump(old, candidate *uint256.Int, bumpPercent uint64) bool {
	threshold := new(uint256.Int).Mul(old, uint256.NewInt(100+bumpPercent))
	threshold.Div(threshold, uint256.NewInt(100))
	return candidate.Cmp(threshold) >= 0
}

// makeRoomFor enforces the pool-wide and per-sender limits of spec §3,
// evicting per the policy of §4.4 until the incoming transaction fits, or
// rejecting it if it cannot be made to fit.
func (p *Pool) makeRoomFor(incoming *txrecord.Transaction) error {
	if acc, ok := p.senders.Lookup(incoming.Sender); ok && uint64(acc.Len()) >= p.cfg.MaxPerSenderCount {
		// Per-sender overflow only ever evicts that sender's own worst
		// (highest-nonce, since nonce order already reflects priority
		// within a sender) transaction - never another sender's.
		if !p.evictWorstOwnTx(incoming) {
			return ErrPoolOverflow
		}
	}
	for uint64(len(p.arena))+1 > p.cfg.MaxPoolCount || p.totalSize+incoming.Size() > p.cfg.MaxPoolSizeBytes {
		ok, err := p.evictGlobalWorst(incoming)
		if !ok {
			return err
		}
	}
	if incoming.IsBlob() {
		for p.blobCount+1 > p.cfg.BlobPoolMaxCount || p.blobSize+incoming.Size() > p.cfg.BlobPoolMaxSize {
			// Blob records waiting on fees or sidecars congregate in the
			// Blob sub-pool; those are the dedicated blob limits' eviction
			// ground. Blob transactions already promoted to Pending are
			// past the bottleneck the limits exist for and are left to the
			// global eviction order.
			hash, _, ok := p.sets[subpool.Blob].WorstMatching(p.isLocalTx)
			if !ok {
				return ErrPoolOverflow
			}
			p.evictSingle(hash, EvDiscarded, ErrPoolOverflow)
			evictMeter.Mark(1)
		}
	}
	return nil
}

// evictWorstOwnTx drops the highest-nonce transaction of incoming's own
// sender, cascading to any of its descendants (there are none, since it is
// already the highest). Returns false if the sender has no transaction
// that the incoming one is entitled to bump.
func (p *Pool) evictWorstOwnTx(incoming *txrecord.Transaction) bool {
	acc, ok := p.senders.Lookup(incoming.Sender)
	if !ok {
		return false
	}
	nonces := acc.AllNonces()
	if len(nonces) == 0 {
		return false
	}
	highest := nonces[len(nonces)-1]
	if highest <= incoming.Nonce {
		return false
	}
	hash, _ := acc.Get(highest)
	p.evictSingle(hash, EvDiscarded, ErrPoolOverflow)
	return true
}

// evictGlobalWorst implements the eviction order of spec §4.4: Queued,
// then BaseFee, then Blob, then Pending, cascading each eviction to the
// evicted transaction's higher-nonce descendants. It reports false (with
// the error to surface) if either no candidate exists at all
// (ErrPoolOverflow) or the only candidates are not worse than incoming
// (ErrUnderpriced).
func (p *Pool) evictGlobalWorst(incoming *txrecord.Transaction) (bool, error) {
	order := []subpool.Tag{subpool.Queued, subpool.BaseFee, subpool.Blob, subpool.Pending}
	incomingTag := p.classifyFees(incoming)

	for _, tag := range order {
		set := p.sets[tag]
		if set.Len() == 0 {
			continue
		}
		worstHash, worstKey, ok := set.WorstMatching(p.isLocalTx)
		if !ok || !p.worseThan(worstHash, worstKey, tag, incoming, incomingTag) {
			continue
		}
		p.evictSingle(worstHash, EvDiscarded, ErrPoolOverflow)
		evictMeter.Mark(1)
		return true, nil
	}
	if p.noEvictableCandidate() {
		return false, ErrPoolOverflow
	}
	return false, ErrUnderpriced
}

// noEvictableCandidate reports whether every sub-pool is either empty or
// holds only protected (local-sender) transactions, meaning there is
// nothing the pool could ever evict to admit incoming - not just nothing
// cheap enough, per spec §7's PoolOverflow/Underpriced distinction.
func (p *Pool) noEvictableCandidate() bool {
	for _, s := range p.sets {
		if _, _, ok := s.WorstMatching(p.isLocalTx); ok {
			return false
		}
	}
	return true
}

// isLocalTx reports whether hash belongs to a sender that has ever
// submitted a Local-origin transaction, exempting it from cross-sender
// eviction per the teacher's locals-protection behavior.
func (p *Pool) isLocalTx(hash common.Hash) bool {
	tx, ok := p.arena[hash]
	if !ok {
		return false
	}
	return p.locals.Contains(tx.Sender)
}

// IsLocal reports whether addr has ever submitted a Local-origin
// transaction and is therefore exempt from cross-sender eviction.
func (p *Pool) IsLocal(addr common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locals.Contains(addr)
}

// worseThan reports whether the candidate occupying slot (tag, key) is
// strictly worse than incoming would be if admitted at incomingTag.
func (p *Pool) worseThan(_ common.Hash, key int64, tag subpool.Tag, incoming *txrecord.Transaction, incomingTag subpool.Tag) bool {
	if tag != incomingTag {
		return tag < incomingTag
	}
	incomingKey := p.priorityKey(incoming, incomingTag, p.nextSeqPeek())
	return key < incomingKey
}

// nextSeqPeek returns the sequence number that would be assigned to the
// next insertion, without consuming it.
func (p *Pool) nextSeqPeek() uint64 { return p.seq + 1 }

// evictSingle removes hash and every higher-nonce descendant of its sender
// from the pool, emitting a lifecycle event for each, per spec §4.4's
// eviction-cascade rule.
func (p *Pool) evictSingle(hash common.Hash, kind EventKind, reason error) {
	tx, ok := p.arena[hash]
	if !ok {
		return
	}
	acc, ok := p.senders.Lookup(tx.Sender)
	if !ok {
		p.removeOne(hash, kind, reason, 0)
		return
	}
	for _, nonce := range acc.Descendants(tx.Nonce) {
		if h, ok := acc.Get(nonce); ok {
			p.removeOne(h, kind, reason, 0)
		}
	}
}

// removeOne removes a single transaction from every index and journals its
// terminal (or Replaced) event. It does not cascade.
func (p *Pool) removeOne(hash common.Hash, kind EventKind, reason error, block uint64) {
	tx, ok := p.arena[hash]
	if !ok {
		return
	}
	delete(p.arena, hash)
	delete(p.seqs, hash)
	p.totalSize -= tx.Size()
	p.senders.Remove(tx.Sender, tx.Nonce)
	p.feeByGas.Remove(tx.GasFeeCap, hash)
	if tx.IsBlob() {
		p.feeByBlob.Remove(tx.BlobFeeCap, hash)
		p.blobCount--
		p.blobSize -= tx.Size()
	}

	if tag, ok := p.membership[hash]; ok {
		p.sets[tag].Remove(hash)
		delete(p.membership, hash)
		p.gaugeFor(tag).Dec(1)
	}
	if tx.IsBlob() {
		if kind == EvMined {
			// The store keeps a mined transaction's sidecar bytes until
			// finality (DeleteBlob); the record's own in-memory copy is
			// released now.
			tx.TakeSidecar()
		} else if err := p.blobs.Delete(hash); err != nil {
			// Orphaned by replacement or eviction: the sidecar goes too.
			log.Warn("txpool: failed to delete orphaned blob sidecar", "hash", hash, "err", err)
		}
	}
	p.noteEvent(TxEvent{Hash: hash, Origin: tx.TxOrigin(), Kind: kind, Reason: reason, Block: block})
}

func (p *Pool) gaugeFor(tag subpool.Tag) interface {
	Dec(int64)
	Inc(int64)
} {
	switch tag {
	case subpool.Pending:
		return pendingGauge
	case subpool.BaseFee:
		return basefeeGauge
	case subpool.Blob:
		return blobGauge
	default:
		return queuedGauge
	}
}

// classifyFees determines the sub-pool a nonce-consecutive, in-budget
// transaction belongs to under the current block fees, per spec §3. It
// does not consider nonce gaps or balance; reclassify handles those first.
func (p *Pool) classifyFees(tx *txrecord.Transaction) subpool.Tag {
	basefee := p.block.PendingBaseFee
	if tx.IsBlob() {
		blobfee := p.block.PendingBlobFee
		insufficientBlobFee := blobfee != nil && tx.BlobFeeCap.Cmp(blobfee) < 0
		if tx.SidecarState() != txrecord.Present || insufficientBlobFee {
			return subpool.Blob
		}
		if basefee != nil && tx.GasFeeCap.Cmp(basefee) < 0 {
			return subpool.BaseFee // sidecar and blob fee are fine; only the fee cap is short
		}
		return subpool.Pending
	}
	if basefee != nil && tx.GasFeeCap.Cmp(basefee) < 0 {
		return subpool.BaseFee
	}
	return subpool.Pending
}

// priorityKey computes the ordering key for tx within tag, per spec §4.3.
// seq is the transaction's insertion sequence number, assigned once at
// admission; it is the "older wins" tie-break for the fee-keyed sub-pools
// and the primary (oldest evicted first) ordering for Queued, which
// breaks its own ties by hash.
func (p *Pool) priorityKey(tx *txrecord.Transaction, tag subpool.Tag, seq uint64) int64 {
	switch tag {
	case subpool.Pending:
		basefee := p.block.PendingBaseFee
		if basefee == nil {
			basefee = new(uint256.Int)
		}
		return subpool.PackKey(tx.EffectivePriorityFee(basefee).Uint64(), seq)
	case subpool.BaseFee:
		return subpool.PackKey(tx.GasFeeCap.Uint64(), seq)
	case subpool.Blob:
		return subpool.PackKey(tx.BlobFeeCap.Uint64(), seq)
	default:
		return subpool.PackKey(seq, hashTieBreak(tx.Hash))
	}
}

// hashTieBreak derives a stable numeric tie-break from a transaction hash
// (lexicographically lower hash ranks better), for orderings whose
// tie-breaker is the hash itself rather than insertion recency. Only the
// leading bytes fit the packed key's tie-break space; hashes sharing all
// of them tie outright, which is harmless for eviction ordering.
func hashTieBreak(hash common.Hash) uint64 {
	return uint64(hash[0])<<16 | uint64(hash[1])<<8 | uint64(hash[2])
}

// reclassify recomputes sub-pool membership for every transaction of
// sender under the current (on-chain nonce, on-chain balance, fees), per
// spec §4.4. It is the single place that moves a transaction between
// Queued/BaseFee/Blob/Pending and journals the corresponding
// Pending/Queued events.
func (p *Pool) reclassify(sender common.Address) {
	acc, ok := p.senders.Lookup(sender)
	if !ok {
		return
	}
	account := p.accountOf(sender)
	nonces := acc.AllNonces()

	expected := account.Nonce
	running := new(uint256.Int)
	gapped := false

	for _, nonce := range nonces {
		hash, _ := acc.Get(nonce)
		tx := p.arena[hash]
		if tx == nil {
			continue
		}
		if nonce != expected {
			gapped = true
		}
		overBudget := false
		if !gapped && account.Balance != nil {
			running.Add(running, tx.Cost())
			overBudget = running.Cmp(account.Balance) > 0
		}
		var tag subpool.Tag
		if gapped || overBudget {
			tag = subpool.Queued
			gapped = true
		} else {
			tag = p.classifyFees(tx)
			expected = nonce + 1
		}
		p.setMembership(hash, tag)
	}
}

// setMembership moves hash into tag (creating, promoting or demoting as
// needed) and journals Pending/Queued events on the transitions the event
// stream of spec §4.7 cares about.
func (p *Pool) setMembership(hash common.Hash, tag subpool.Tag) {
	tx := p.arena[hash]
	prev, hadPrev := p.membership[hash]
	if hadPrev && prev == tag {
		return // unchanged; re-upsert would just cost a heap round-trip
	}
	if hadPrev {
		p.sets[prev].Remove(hash)
		p.gaugeFor(prev).Dec(1)
	}
	// The key reuses the insertion sequence captured at admission, so a
	// demote-and-repromote round trip (or a whole-pool sweep visiting
	// senders in map order) can never reshuffle the relative age of
	// equal-fee transactions.
	key := p.priorityKey(tx, tag, p.seqs[hash])
	p.sets[tag].Upsert(hash, key)
	p.membership[hash] = tag
	p.gaugeFor(tag).Inc(1)

	switch {
	case tag == subpool.Pending && prev != subpool.Pending:
		p.noteEvent(TxEvent{Hash: hash, Origin: tx.TxOrigin(), Kind: EvPending})
		p.jr.pending = append(p.jr.pending, pendingNote{hash: hash, origin: tx.TxOrigin()})
	case tag == subpool.Queued && (!hadPrev || prev != subpool.Queued):
		p.noteEvent(TxEvent{Hash: hash, Origin: tx.TxOrigin(), Kind: EvQueued})
	}
}

// PoolSize returns the per-sub-pool occupancy, satisfying
// pool.size.total == pending + basefee + blob + queued.
func (p *Pool) PoolSize() (pending, basefee, blob, queued int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sets[subpool.Pending].Len(), p.sets[subpool.BaseFee].Len(), p.sets[subpool.Blob].Len(), p.sets[subpool.Queued].Len()
}

// BlockInfo returns the pool's current tracked chain tip.
func (p *Pool) BlockInfo() BlockInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.block
}

// AllTransactions returns every pooled transaction hash.
func (p *Pool) AllTransactions() []common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Hash, 0, len(p.arena))
	for h := range p.arena {
		out = append(out, h)
	}
	return out
}

// PendingTransactions returns every hash currently in the Pending sub-pool.
func (p *Pool) PendingTransactions() []common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sets[subpool.Pending].Members()
}

// QueuedTransactions returns every hash currently in the Queued sub-pool.
func (p *Pool) QueuedTransactions() []common.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sets[subpool.Queued].Members()
}

// GetTransactionsBySender returns a sender's transactions ordered by
// nonce.
func (p *Pool) GetTransactionsBySender(addr common.Address) []*txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.senders.Lookup(addr)
	if !ok {
		return nil
	}
	nonces := acc.AllNonces()
	out := make([]*txrecord.Transaction, 0, len(nonces))
	for _, n := range nonces {
		h, _ := acc.Get(n)
		out = append(out, p.arena[h])
	}
	return out
}

// Get returns a transaction by hash, or nil.
func (p *Pool) Get(hash common.Hash) *txrecord.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.arena[hash]
}

// GetPooledTransactionElement returns a transaction with its blob sidecar
// attached (if any), for the p2p on-demand response of spec §6.
func (p *Pool) GetPooledTransactionElement(hash common.Hash) (*txrecord.Transaction, []byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.arena[hash]
	if !ok {
		return nil, nil, false
	}
	if !tx.IsBlob() {
		return tx, nil, true
	}
	raw, _ := p.blobs.Get(hash)
	return tx, raw, true
}

// PooledTransactionHashes returns every pooled hash, for initial peer sync.
func (p *Pool) PooledTransactionHashes() []common.Hash {
	return p.AllTransactions()
}

// AttachSidecar implements the blob-propagation input channel of spec §6:
// a blob transaction received without its sidecar can have one attached
// out of band, which may unlock promotion to Pending.
func (p *Pool) AttachSidecar(hash common.Hash, sc *txrecord.Sidecar) error {
	p.mu.Lock()
	err := p.attachSidecarLocked(hash, sc)
	j := p.takeJournal()
	p.mu.Unlock()

	p.events.flush(j)
	return err
}

func (p *Pool) attachSidecarLocked(hash common.Hash, sc *txrecord.Sidecar) error {
	tx, ok := p.arena[hash]
	if !ok {
		return ErrUnknownTransaction
	}
	if !tx.AttachSidecar(sc) {
		return ErrInvalidSidecarState
	}
	if err := p.storeSidecar(tx); err != nil {
		return fmt.Errorf("txpool: persist attached sidecar: %w", err)
	}
	p.reclassify(tx.Sender)
	return nil
}

// GetBlob returns the stored sidecar bytes for hash, independent of pool
// membership (it may still be retained post-mining, pre-finality).
func (p *Pool) GetBlob(hash common.Hash) ([]byte, bool) {
	return p.blobs.Get(hash)
}

// DeleteBlob is invoked by the chain-tracker once a mined blob
// transaction's sidecar has passed the finality-depth threshold.
func (p *Pool) DeleteBlob(hash common.Hash) error {
	return p.blobs.Delete(hash)
}

// SubscribeTransactionEvents returns a channel delivering hash's lifecycle
// events from this point forward (ending in a terminal kind), plus an
// unsubscribe function. allOrigin=false restricts delivery to
// externally-gossiped transactions (propagate-only), per spec §4.7.
func (p *Pool) SubscribeTransactionEvents(hash common.Hash, allOrigin bool) (<-chan TxEvent, func()) {
	return p.events.Subscribe(hash, allOrigin)
}

// PendingTransactionsListener subscribes ch to the hashes of newly
// propagatable transactions, the p2p announcement feed of spec §6.
// Private-origin transactions never appear on it.
func (p *Pool) PendingTransactionsListener(ch chan<- common.Hash) event.Subscription {
	return p.events.SubscribePendingHashes(ch)
}

// SubscribeBlobSidecars subscribes ch to hashes whose blob sidecar just
// became available in the pool's blob store.
func (p *Pool) SubscribeBlobSidecars(ch chan<- common.Hash) event.Subscription {
	return p.events.SubscribeBlobSidecars(ch)
}

// SubscribeCanonicalUpdates subscribes ch to the aggregate
// CanonicalStateUpdated notification emitted at the end of every
// canonical-state change.
func (p *Pool) SubscribeCanonicalUpdates(ch chan<- BlockInfo) event.Subscription {
	return p.events.SubscribeCanonicalUpdates(ch)
}

// SubscribeNewTransactions subscribes ch to every insertion, tagged with
// the sub-pool the transaction landed in. allOrigin=false restricts the
// stream to externally-gossiped transactions.
func (p *Pool) SubscribeNewTransactions(ch chan<- NewTxEvent, allOrigin bool) event.Subscription {
	return p.events.SubscribeNewTransactions(ch, allOrigin)
}
