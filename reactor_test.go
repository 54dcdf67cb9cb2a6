package txpool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// poolSnapshot captures the externally observable pool state for the
// reorg-symmetry property: which hashes are held, and in which sub-pool.
func poolSnapshot(p *Pool) map[common.Hash]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[common.Hash]string, len(p.arena))
	for h := range p.arena {
		out[h] = p.membership[h].String()
	}
	return out
}

// Reorg symmetry (§8): committing block B and then reorging it out again
// restores the same pool state as if B had never been committed.
func TestReorgSymmetry(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)
	funded := uint256.NewInt(1_000_000_000)

	t1 := tx(t, 1, 1, 0, 100, 10)
	t2 := tx(t, 2, 1, 1, 100, 10)
	bystander := tx(t, 3, 2, 0, 80, 8)
	require.NoError(t, p.AddTransaction(t1))
	require.NoError(t, p.AddTransaction(t2))
	require.NoError(t, p.AddTransaction(bystander))

	before := poolSnapshot(p)

	// Commit B mining t1, t2.
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:            BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		MinedTransactions: []common.Hash{t1.Hash, t2.Hash},
		ChangedAccounts:   []AccountChange{{Address: common.Address{1}, NewNonce: 2, NewBalance: funded}},
		Kind:              Commit,
	}))
	require.Len(t, poolSnapshot(p), 1)

	// Reorg B out, commit an empty B' at the same height.
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:          BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		ChangedAccounts: []AccountChange{{Address: common.Address{1}, NewNonce: 0, NewBalance: funded}},
		Reorged:         []ReorgedTransaction{{Tx: t1}, {Tx: t2}},
		Kind:            Reorg,
	}))

	require.Equal(t, before, poolSnapshot(p))
	checkInvariants(t, p)
}

// A mined hash the pool never held is a counted no-op, never an error.
func TestMinedUnknownTransactionIsNoop(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)
	resident := tx(t, 1, 1, 0, 100, 10)
	require.NoError(t, p.AddTransaction(resident))

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:            BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		MinedTransactions: []common.Hash{{0xde, 0xad}},
		Kind:              Commit,
	}))
	require.NotNil(t, p.Get(resident.Hash), "unrelated residents are untouched")
	require.Len(t, p.AllTransactions(), 1)
}

// Idempotence (§8): a repeated identical update with no mined transactions
// produces no per-transaction events the second time.
func TestRepeatedUpdateEmitsNoTxEvents(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)
	target := tx(t, 1, 1, 0, 100, 10)
	require.NoError(t, p.AddTransaction(target))

	update := CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(30)},
		Kind:   Commit,
	}
	require.NoError(t, p.OnCanonicalStateChange(update))

	ch, unsub := p.SubscribeTransactionEvents(target.Hash, true)
	defer unsub()
	require.NoError(t, p.OnCanonicalStateChange(update))
	require.Empty(t, drainEvents(ch))
}

func TestAccountChangeDropsStaleNonces(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	n0 := tx(t, 1, 1, 0, 100, 10)
	n1 := tx(t, 2, 1, 1, 100, 10)
	n2 := tx(t, 3, 1, 2, 100, 10)
	require.NoError(t, p.AddTransaction(n0))
	require.NoError(t, p.AddTransaction(n1))
	require.NoError(t, p.AddTransaction(n2))

	// The chain advanced the sender's nonce to 2 without mining through
	// this pool (the transactions were included from another node's view).
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:          BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		ChangedAccounts: []AccountChange{{Address: common.Address{1}, NewNonce: 2, NewBalance: uint256.NewInt(1_000_000_000)}},
		Kind:            Commit,
	}))

	require.Nil(t, p.Get(n0.Hash))
	require.Nil(t, p.Get(n1.Hash))
	require.NotNil(t, p.Get(n2.Hash))
	pending, _, _, _ := p.PoolSize()
	require.Equal(t, 1, pending)
	checkInvariants(t, p)
}

// The base-fee sweep touches exactly the transactions whose fee cap lies
// between the old and new base fee, promoting or demoting them while the
// rest keep their sub-pool.
func TestBaseFeeSweepReclassifiesOnlyCrossers(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 50)

	low := tx(t, 1, 1, 0, 20, 2)    // below 50 and 80: basefee until the fall to 10
	mid := tx(t, 2, 2, 0, 60, 6)    // between 50 and 80: demoted by the rise
	high := tx(t, 3, 3, 0, 200, 20) // above both: stays pending
	require.NoError(t, p.AddTransaction(low))
	require.NoError(t, p.AddTransaction(mid))
	require.NoError(t, p.AddTransaction(high))

	pending, basefeeSub, _, _ := p.PoolSize()
	require.Equal(t, 2, pending)
	require.Equal(t, 1, basefeeSub)

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(80)},
		Kind:   Commit,
	}))
	pending, basefeeSub, _, _ = p.PoolSize()
	require.Equal(t, 1, pending)
	require.Equal(t, 2, basefeeSub)

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 3, PendingBaseFee: uint256.NewInt(10)},
		Kind:   Commit,
	}))
	pending, basefeeSub, _, _ = p.PoolSize()
	require.Equal(t, 3, pending)
	require.Equal(t, 0, basefeeSub)
	checkInvariants(t, p)
}

// The blob-fee sweep moves blob transactions between the Blob and Pending
// sub-pools as the pending blob fee crosses their blob fee caps.
func TestBlobFeeSweep(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	bt := blobTx(t, 1, 1, 0, 100, 10, 40, &sidecarFixture)
	require.NoError(t, p.AddTransaction(bt))
	pending, _, blob, _ := p.PoolSize()
	require.Equal(t, 1, pending)
	require.Equal(t, 0, blob)

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10), PendingBlobFee: uint256.NewInt(50)},
		Kind:   Commit,
	}))
	pending, _, blob, _ = p.PoolSize()
	require.Equal(t, 0, pending)
	require.Equal(t, 1, blob, "blob fee above the cap parks the transaction in the blob sub-pool")

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip: BlockInfo{Number: 3, PendingBaseFee: uint256.NewInt(10), PendingBlobFee: uint256.NewInt(30)},
		Kind:   Commit,
	}))
	pending, _, blob, _ = p.PoolSize()
	require.Equal(t, 1, pending)
	require.Equal(t, 0, blob)
	checkInvariants(t, p)
}

// A balance report below the sender's cumulative cost demotes the
// unaffordable tail to queued; restoring the balance promotes it back.
func TestBalanceDemotesUnaffordableTail(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	n0 := tx(t, 1, 1, 0, 100, 10) // cost 100*21000 = 2,100,000
	n1 := tx(t, 2, 1, 1, 100, 10)
	require.NoError(t, p.AddTransaction(n0))
	require.NoError(t, p.AddTransaction(n1))

	// Enough for one transaction, not two.
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:          BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		ChangedAccounts: []AccountChange{{Address: common.Address{1}, NewNonce: 0, NewBalance: uint256.NewInt(3_000_000)}},
		Kind:            Commit,
	}))
	pending, _, _, queued := p.PoolSize()
	require.Equal(t, 1, pending)
	require.Equal(t, 1, queued)

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:          BlockInfo{Number: 3, PendingBaseFee: uint256.NewInt(10)},
		ChangedAccounts: []AccountChange{{Address: common.Address{1}, NewNonce: 0, NewBalance: uint256.NewInt(5_000_000)}},
		Kind:            Commit,
	}))
	pending, _, _, queued = p.PoolSize()
	require.Equal(t, 2, pending)
	require.Equal(t, 0, queued)
	checkInvariants(t, p)
}

// A reorg re-admission that collides with a fresh replacement at the same
// nonce is subject to the normal replacement policy, not blindly restored.
func TestReorgReadmissionRespectsReplacementPolicy(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)
	funded := uint256.NewInt(1_000_000_000)

	mined := tx(t, 1, 1, 0, 100, 10)
	require.NoError(t, p.AddTransaction(mined))
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:            BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		MinedTransactions: []common.Hash{mined.Hash},
		ChangedAccounts:   []AccountChange{{Address: common.Address{1}, NewNonce: 1, NewBalance: funded}},
		Kind:              Commit,
	}))

	// The sender resubmitted nonce 0 at a much higher fee while the mined
	// copy was canonical; the reorg resets the nonce and hands the old
	// copy back, but it cannot displace the stronger incumbent.
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:          BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		ChangedAccounts: []AccountChange{{Address: common.Address{1}, NewNonce: 0, NewBalance: funded}},
		Kind:            Reorg,
	}))
	stronger := tx(t, 2, 1, 0, 500, 50)
	require.NoError(t, p.AddTransaction(stronger))

	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{
		NewTip:  BlockInfo{Number: 2, PendingBaseFee: uint256.NewInt(10)},
		Reorged: []ReorgedTransaction{{Tx: mined}},
		Kind:    Reorg,
	}))
	require.Nil(t, p.Get(mined.Hash), "weaker reorged copy loses to the pooled incumbent")
	require.NotNil(t, p.Get(stronger.Hash))
	checkInvariants(t, p)
}

func TestBlockInfoTracksTip(t *testing.T) {
	p := newTestPool(t, DefaultConfig, 10)

	tip := BlockInfo{Hash: common.Hash{0xb1}, Number: 42, GasLimit: 30_000_000, PendingBaseFee: uint256.NewInt(77)}
	require.NoError(t, p.OnCanonicalStateChange(CanonicalStateUpdate{NewTip: tip, Kind: Commit}))

	got := p.BlockInfo()
	require.Equal(t, tip.Hash, got.Hash)
	require.Equal(t, uint64(42), got.Number)
	require.Equal(t, uint64(77), got.PendingBaseFee.Uint64())
}
