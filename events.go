package txpool

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/haardikk21/go-txpool/subpool"
	"github.com/haardikk21/go-txpool/txrecord"
)

// EventKind is the per-transaction event vocabulary of spec §4.7: a finite
// sequence of these, ending in a terminal kind.
type EventKind uint8

const (
	EvPending EventKind = iota
	EvQueued
	EvReplaced
	EvDiscarded
	EvMined
)

func (k EventKind) String() string {
	switch k {
	case EvPending:
		return "pending"
	case EvQueued:
		return "queued"
	case EvReplaced:
		return "replaced"
	case EvDiscarded:
		return "discarded"
	case EvMined:
		return "mined"
	default:
		return "unknown"
	}
}

// terminal reports whether k ends a transaction's lifecycle stream. A
// replaced incumbent is destroyed along with its record, so Replaced is a
// terminal for the incumbent's stream (the replacement starts its own).
func (k EventKind) terminal() bool {
	return k == EvMined || k == EvDiscarded || k == EvReplaced
}

// TxEvent is one entry in a transaction's lifecycle stream.
type TxEvent struct {
	Hash   common.Hash
	Origin txrecord.Origin
	Kind   EventKind
	Reason error  // set for EvDiscarded
	Block  uint64 // set for EvMined
}

// pendingNote records a transaction that just became propagatable, for the
// p2p pending-hash feed. Private-origin transactions are withheld from the
// feed at flush time.
type pendingNote struct {
	hash   common.Hash
	origin txrecord.Origin
}

// NewTxEvent announces a freshly inserted transaction together with the
// sub-pool it landed in, on the pool-wide stream of spec §4.7.
type NewTxEvent struct {
	Hash    common.Hash
	Subpool subpool.Tag
	Origin  txrecord.Origin
}

// journal accumulates every notification generated while the pool's write
// lock is held. Public pool methods swap it out before unlocking and hand
// it to eventBus.flush afterwards, so no feed send or listener delivery
// ever runs inside the critical section - the same discipline the
// teacher's legacypool.runReorg follows by batching core.NewTxsEvent sends
// until after pool.mu is released.
type journal struct {
	events   []TxEvent
	newTxs   []NewTxEvent
	pending  []pendingNote
	sidecars []common.Hash
	canon    *BlockInfo
}

// listener is one subscriber's bounded mailbox.
type listener struct {
	ch        chan TxEvent
	allOrigin bool // false: propagate-only, delivering external-origin events exclusively
}

func (l *listener) wants(ev TxEvent) bool {
	return l.allOrigin || ev.Origin == txrecord.External
}

// eventBus fans out per-transaction lifecycle events and pool-wide
// notifications. Grounded on the teacher's event.Feed (used here for the
// pool-wide pending-hash, blob-sidecar and canonical-update streams) plus
// a hand-rolled bounded per-hash fan-out for the terminal-ending
// per-transaction streams.
type eventBus struct {
	mu        sync.Mutex
	listeners map[common.Hash][]*listener
	capacity  int

	pendingFeed event.Feed // emits common.Hash of newly-propagatable txs
	blobFeed    event.Feed // emits common.Hash when a sidecar is attached
	reorgFeed   event.Feed // emits BlockInfo on every canonical state update

	// The pool-wide new-transaction stream, partitioned by origin scope
	// rather than filtered per listener: a subscriber declares propagate
	// -only or all-origin by picking the feed, since event.Feed fans every
	// send out to all of its subscribers.
	newTxAllFeed      event.Feed // emits NewTxEvent for every insertion
	newTxExternalFeed event.Feed // emits NewTxEvent for external-origin insertions only

	scope event.SubscriptionScope
}

func newEventBus(capacity int) *eventBus {
	return &eventBus{
		listeners: make(map[common.Hash][]*listener),
		capacity:  capacity,
	}
}

// flush delivers everything a locked pool section journaled. Must be
// called without the pool's write lock held.
func (b *eventBus) flush(j journal) {
	for _, ev := range j.events {
		b.emit(ev)
	}
	for _, ev := range j.newTxs {
		b.newTxAllFeed.Send(ev)
		if ev.Origin == txrecord.External {
			b.newTxExternalFeed.Send(ev)
		}
	}
	for _, n := range j.pending {
		if n.origin == txrecord.Private {
			continue // private transactions are never announced to peers
		}
		b.pendingFeed.Send(n.hash)
	}
	for _, h := range j.sidecars {
		b.blobFeed.Send(h)
	}
	if j.canon != nil {
		b.reorgFeed.Send(*j.canon)
	}
}

// Subscribe returns a channel receiving every lifecycle event for hash from
// this point forward, and an unsubscribe function. allOrigin selects
// whether events of locally- and privately-submitted transactions are
// included, or only externally-gossiped ones (propagate-only), per §4.7.
func (b *eventBus) Subscribe(hash common.Hash, allOrigin bool) (<-chan TxEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := &listener{ch: make(chan TxEvent, b.capacity), allOrigin: allOrigin}
	b.listeners[hash] = append(b.listeners[hash], l)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Only a listener still registered gets closed here; one already
		// detached by a terminal event or an overflow drop had its channel
		// closed at that point.
		ls := b.listeners[hash]
		for i, cand := range ls {
			if cand == l {
				b.listeners[hash] = append(ls[:i], ls[i+1:]...)
				if len(b.listeners[hash]) == 0 {
					delete(b.listeners, hash)
				}
				close(l.ch)
				return
			}
		}
	}
	return l.ch, unsub
}

// emit delivers ev to every listener of hash, dropping (and closing) any
// listener whose mailbox is full rather than blocking the caller. Events
// are never dropped individually - the whole listener goes, preserving
// causal ordering for everyone still subscribed.
func (b *eventBus) emit(ev TxEvent) {
	b.mu.Lock()
	ls := b.listeners[ev.Hash]
	var survivors []*listener
	for _, l := range ls {
		if !l.wants(ev) {
			survivors = append(survivors, l)
			continue
		}
		select {
		case l.ch <- ev:
			survivors = append(survivors, l)
		default:
			log.Warn("txpool: dropping slow event listener", "hash", ev.Hash, "kind", ev.Kind)
			close(l.ch)
		}
	}
	if len(survivors) == 0 {
		delete(b.listeners, ev.Hash)
	} else {
		b.listeners[ev.Hash] = survivors
	}
	terminal := ev.Kind.terminal()
	b.mu.Unlock()

	if terminal {
		b.gc(ev.Hash)
	}
}

// gc detaches every listener of a hash whose lifecycle has ended, closing
// their channels so subscribers observe the stream ending right after the
// terminal event. Buffered events remain readable until drained.
func (b *eventBus) gc(hash common.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners[hash] {
		close(l.ch)
	}
	delete(b.listeners, hash)
}

// SubscribePendingHashes subscribes to newly-propagatable transaction
// hashes, for the p2p output channel of spec §6.
func (b *eventBus) SubscribePendingHashes(ch chan<- common.Hash) event.Subscription {
	return b.scope.Track(b.pendingFeed.Subscribe(ch))
}

// SubscribeBlobSidecars subscribes to hashes whose blob sidecar just
// became available.
func (b *eventBus) SubscribeBlobSidecars(ch chan<- common.Hash) event.Subscription {
	return b.scope.Track(b.blobFeed.Subscribe(ch))
}

// SubscribeCanonicalUpdates subscribes to aggregate CanonicalStateUpdated
// notifications carrying the new tip's block info.
func (b *eventBus) SubscribeCanonicalUpdates(ch chan<- BlockInfo) event.Subscription {
	return b.scope.Track(b.reorgFeed.Subscribe(ch))
}

// SubscribeNewTransactions subscribes to the pool-wide insertion stream.
// allOrigin=false restricts it to externally-gossiped transactions
// (propagate-only), per §4.7's listener declaration.
func (b *eventBus) SubscribeNewTransactions(ch chan<- NewTxEvent, allOrigin bool) event.Subscription {
	if allOrigin {
		return b.scope.Track(b.newTxAllFeed.Subscribe(ch))
	}
	return b.scope.Track(b.newTxExternalFeed.Subscribe(ch))
}

func (b *eventBus) close() {
	b.scope.Close()
}
