package txpool

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/haardikk21/go-txpool/subpool"
	"github.com/haardikk21/go-txpool/txrecord"
)

func drainEvents(ch <-chan TxEvent) []TxEvent {
	var out []TxEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// A transaction's lifecycle stream is causal: Pending precedes Mined, and
// the stream ends with the terminal kind.
func TestLifecycleStreamEndsInTerminal(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	target := tx(t, 1, 1, 0, 100, 10)
	ch, unsub := p.SubscribeTransactionEvents(target.Hash, true)
	defer unsub()

	require.NoError(t, p.AddTransaction(target))
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:            BlockInfo{Number: 7, PendingBaseFee: uint256.NewInt(10)},
		MinedTransactions: []common.Hash{target.Hash},
		Kind:              Commit,
	}))

	events := drainEvents(ch)
	require.Len(t, events, 2)
	require.Equal(t, EvPending, events[0].Kind)
	require.Equal(t, EvMined, events[1].Kind)
	require.Equal(t, uint64(7), events[1].Block)
	require.Nil(t, p.Get(target.Hash), "mined transaction leaves the pool")
}

func TestReplacedIncumbentStreamTerminates(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	incumbent := tx(t, 1, 1, 0, 100, 10)
	ch, unsub := p.SubscribeTransactionEvents(incumbent.Hash, true)
	defer unsub()

	require.NoError(t, p.AddTransaction(incumbent))
	require.NoError(t, p.AddTransaction(tx(t, 2, 1, 0, 150, 15)))

	events := drainEvents(ch)
	require.NotEmpty(t, events)
	require.Equal(t, EvReplaced, events[len(events)-1].Kind)
}

func TestDiscardedCarriesReason(t *testing.T) {
	cfg := DefaultConfig
	cfg.MaxPoolCount = 1
	p := newTestPool(t, cfg, 1)

	victim := tx(t, 1, 1, 0, 10, 1)
	ch, unsub := p.SubscribeTransactionEvents(victim.Hash, true)
	defer unsub()

	require.NoError(t, p.AddTransaction(victim))
	require.NoError(t, p.AddTransaction(tx(t, 2, 2, 0, 1000, 100)))

	events := drainEvents(ch)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, EvDiscarded, last.Kind)
	require.ErrorIs(t, last.Reason, ErrPoolOverflow)
}

// A propagate-only listener sees external-origin events exclusively.
func TestPropagateOnlyListenerFiltersLocalOrigin(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	nextTestTime = nextTestTime.Add(time.Second)
	localTx := txrecord.New(common.Hash{1}, common.Address{1}, 0,
		uint256.NewInt(100), uint256.NewInt(10), nil, 21000, new(uint256.Int), nil, 0,
		txrecord.Opts{Size: 128, Origin: txrecord.Local, Time: nextTestTime})

	filtered, unsubFiltered := p.SubscribeTransactionEvents(localTx.Hash, false)
	defer unsubFiltered()
	all, unsubAll := p.SubscribeTransactionEvents(localTx.Hash, true)
	defer unsubAll()

	require.NoError(t, p.AddTransaction(localTx))

	require.Empty(t, drainEvents(filtered), "propagate-only listener must not see local-origin events")
	require.NotEmpty(t, drainEvents(all))
}

// Private transactions are withheld from the p2p announcement feed but
// still visible to direct event subscribers.
func TestPrivateOriginWithheldFromPendingFeed(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	announced := make(chan common.Hash, 4)
	sub := p.PendingTransactionsListener(announced)
	defer sub.Unsubscribe()

	nextTestTime = nextTestTime.Add(time.Second)
	private := txrecord.New(common.Hash{1}, common.Address{1}, 0,
		uint256.NewInt(100), uint256.NewInt(10), nil, 21000, new(uint256.Int), nil, 0,
		txrecord.Opts{Size: 128, Origin: txrecord.Private, Time: nextTestTime})
	require.NoError(t, p.AddTransaction(private))

	public := tx(t, 2, 2, 0, 100, 10)
	require.NoError(t, p.AddTransaction(public))

	select {
	case h := <-announced:
		require.Equal(t, public.Hash, h, "only the non-private transaction is announced")
	case <-time.After(time.Second):
		t.Fatal("expected an announcement for the external transaction")
	}
	select {
	case h := <-announced:
		t.Fatalf("unexpected announcement for %s", h)
	default:
	}
}

// A listener that stops draining its mailbox is dropped (channel closed)
// instead of stalling the pool; events are never dropped individually.
func TestSlowListenerDropped(t *testing.T) {
	cfg := DefaultConfig
	cfg.ListenerChannelCapacity = 1
	p := newTestPool(t, cfg, 40)

	target := tx(t, 1, 1, 0, 50, 5)
	ch, unsub := p.SubscribeTransactionEvents(target.Hash, true)
	defer unsub()

	require.NoError(t, p.AddTransaction(target)) // Pending fills the mailbox

	// Demote and re-promote without draining: the second event overflows
	// the single-slot mailbox and the listener is dropped.
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(60)},
		Kind:   Commit,
	}))
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 3, PendingBaseFee: uint256.NewInt(40)},
		Kind:   Commit,
	}))

	ev, open := <-ch
	require.True(t, open)
	require.Equal(t, EvPending, ev.Kind)
	_, open = <-ch
	require.False(t, open, "overflowing listener must find its channel closed")
}

func TestCanonicalUpdateNotification(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	updates := make(chan BlockInfo, 1)
	sub := p.SubscribeCanonicalUpdates(updates)
	defer sub.Unsubscribe()

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 9, PendingBaseFee: uint256.NewInt(12)},
		Kind:   Commit,
	}))
	select {
	case info := <-updates:
		require.Equal(t, uint64(9), info.Number)
	case <-time.After(time.Second):
		t.Fatal("expected a canonical-update notification")
	}
}

// The pool-wide insertion stream reports the landing sub-pool, and its
// propagate-only variant omits non-external origins.
func TestNewTransactionStreamPartitionedBySubpool(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	all := make(chan NewTxEvent, 4)
	external := make(chan NewTxEvent, 4)
	subAll := p.SubscribeNewTransactions(all, true)
	defer subAll.Unsubscribe()
	subExt := p.SubscribeNewTransactions(external, false)
	defer subExt.Unsubscribe()

	ready := tx(t, 1, 1, 0, 100, 10)
	gapped := tx(t, 2, 2, 7, 100, 10)
	nextTestTime = nextTestTime.Add(time.Second)
	private := txrecord.New(common.Hash{3}, common.Address{3}, 0,
		uint256.NewInt(100), uint256.NewInt(10), nil, 21000, new(uint256.Int), nil, 0,
		txrecord.Opts{Size: 128, Origin: txrecord.Private, Time: nextTestTime})
	require.NoError(t, p.AddTransaction(ready))
	require.NoError(t, p.AddTransaction(gapped))
	require.NoError(t, p.AddTransaction(private))

	ev := <-all
	require.Equal(t, ready.Hash, ev.Hash)
	require.Equal(t, subpool.Pending, ev.Subpool)
	ev = <-all
	require.Equal(t, gapped.Hash, ev.Hash)
	require.Equal(t, subpool.Queued, ev.Subpool)
	ev = <-all
	require.Equal(t, private.Hash, ev.Hash)

	require.Len(t, external, 2, "propagate-only stream omits the private insertion")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	target := tx(t, 1, 1, 0, 100, 10)
	ch, unsub := p.SubscribeTransactionEvents(target.Hash, true)
	unsub()

	require.NoError(t, p.AddTransaction(target))
	_, open := <-ch
	require.False(t, open, "unsubscribed channel is closed and receives nothing")
}
