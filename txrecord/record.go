// Package txrecord defines the immutable transaction record that flows
// through the mempool: a validated transaction plus the cached fields the
// pool needs to order, size and evict it without re-deriving them on every
// access.
package txrecord

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Origin classifies how a transaction entered the pool.
type Origin uint8

const (
	Local Origin = iota
	External
	Private
)

func (o Origin) String() string {
	switch o {
	case Local:
		return "local"
	case External:
		return "external"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// SidecarState tracks whether a blob transaction's sidecar is available.
type SidecarState uint8

const (
	// NoSidecar marks a non-blob transaction; the state never changes.
	NoSidecar SidecarState = iota
	// Missing marks a blob transaction whose sidecar has not arrived yet.
	Missing
	// Present marks a blob transaction with its sidecar attached.
	Present
)

// Sidecar is the opaque blob-sidecar payload (blobs, commitments, proofs)
// accompanying an EIP-4844 transaction. The pool never inspects its
// contents; it only stores and returns it.
type Sidecar struct {
	Blobs       [][]byte
	Commitments [][]byte
	Proofs      [][]byte
}

// Transaction is an immutable, validated mempool record. Every field is
// set at construction time except for the narrow sidecar transition the
// pool is allowed to perform after the fact.
type Transaction struct {
	Hash        common.Hash
	Sender      common.Address
	Nonce       uint64
	GasFeeCap   *uint256.Int // max fee per gas
	GasTipCap   *uint256.Int // max priority fee per gas
	BlobFeeCap  *uint256.Int // max fee per blob gas, nil for non-blob txs
	GasLimit    uint64
	Value       *uint256.Int
	BlobHashes  []common.Hash // versioned hashes, nil for non-blob txs
	BlobGasUsed uint64

	cost     *uint256.Int
	size     uint64
	origin   Origin
	time     time.Time
	sidecar  SidecarState
	blobData *Sidecar
}

// Opts bundles the constructor inputs that are not themselves part of the
// on-wire transaction shape.
type Opts struct {
	Size    uint64
	Origin  Origin
	Time    time.Time
	Sidecar *Sidecar // non-nil only for blob transactions received with a sidecar attached
}

// IsBlob reports whether this is an EIP-4844 blob-carrying transaction.
func (tx *Transaction) IsBlob() bool {
	return tx.BlobFeeCap != nil
}

// New builds a transaction record, computing its saturating cost bound.
//
// cost = GasFeeCap*GasLimit + Value + BlobFeeCap*BlobGasUsed, saturating at
// uint256's maximum rather than overflowing or panicking.
func New(hash common.Hash, sender common.Address, nonce uint64, gasFeeCap, gasTipCap, blobFeeCap *uint256.Int, gasLimit uint64, value *uint256.Int, blobHashes []common.Hash, blobGasUsed uint64, opts Opts) *Transaction {
	tx := &Transaction{
		Hash:        hash,
		Sender:      sender,
		Nonce:       nonce,
		GasFeeCap:   gasFeeCap,
		GasTipCap:   gasTipCap,
		BlobFeeCap:  blobFeeCap,
		GasLimit:    gasLimit,
		Value:       value,
		BlobHashes:  blobHashes,
		BlobGasUsed: blobGasUsed,
		size:        opts.Size,
		origin:      opts.Origin,
		time:        opts.Time,
	}
	if tx.time.IsZero() {
		tx.time = time.Now()
	}
	tx.cost = computeCost(gasFeeCap, gasLimit, value, blobFeeCap, blobGasUsed)

	switch {
	case !tx.IsBlob():
		tx.sidecar = NoSidecar
	case opts.Sidecar != nil:
		tx.sidecar = Present
		tx.blobData = opts.Sidecar
	default:
		tx.sidecar = Missing
	}
	return tx
}

// computeCost saturates instead of overflowing, per spec: a maliciously
// huge fee cap must never wrap around into a small, payable-looking cost.
func computeCost(gasFeeCap *uint256.Int, gasLimit uint64, value, blobFeeCap *uint256.Int, blobGasUsed uint64) *uint256.Int {
	total := new(uint256.Int)

	gasCost, overflow := new(uint256.Int).MulOverflow(gasFeeCap, uint256.NewInt(gasLimit))
	if overflow {
		return saturated()
	}
	if total, overflow = total.AddOverflow(total, gasCost); overflow {
		return saturated()
	}
	if total, overflow = total.AddOverflow(total, value); overflow {
		return saturated()
	}
	if blobFeeCap != nil {
		blobCost, overflow := new(uint256.Int).MulOverflow(blobFeeCap, uint256.NewInt(blobGasUsed))
		if overflow {
			return saturated()
		}
		if total, overflow = total.AddOverflow(total, blobCost); overflow {
			return saturated()
		}
	}
	return total
}

func saturated() *uint256.Int {
	max := new(uint256.Int)
	return max.Not(max) // all bits set = max uint256
}

// Cost returns the saturating cost bound computed at construction.
func (tx *Transaction) Cost() *uint256.Int { return tx.cost }

// Size returns the caller-supplied encoded byte length.
func (tx *Transaction) Size() uint64 { return tx.size }

// TxOrigin returns how the transaction entered the pool.
func (tx *Transaction) TxOrigin() Origin { return tx.origin }

// Time returns the insertion timestamp, used as an ordering tie-breaker.
func (tx *Transaction) Time() time.Time { return tx.time }

// SidecarState returns the current blob-sidecar availability.
func (tx *Transaction) SidecarState() SidecarState { return tx.sidecar }

// Sidecar returns the attached sidecar, or nil if Missing/NoSidecar.
func (tx *Transaction) Sidecar() *Sidecar { return tx.blobData }

// AttachSidecar transitions Missing -> Present. It is a no-op error to call
// this on a transaction that is not a blob transaction awaiting a sidecar.
func (tx *Transaction) AttachSidecar(s *Sidecar) bool {
	if tx.sidecar != Missing {
		return false
	}
	tx.sidecar = Present
	tx.blobData = s
	return true
}

// TakeSidecar transitions Present -> Missing, returning the sidecar that was
// attached. Used when a mined transaction leaves the pool while its blob
// data stays in the blob store until finality.
func (tx *Transaction) TakeSidecar() (*Sidecar, bool) {
	if tx.sidecar != Present {
		return nil, false
	}
	old := tx.blobData
	tx.sidecar = Missing
	tx.blobData = nil
	return old, true
}

// EffectivePriorityFee returns min(GasTipCap, GasFeeCap-basefee), floored at
// zero, per spec §4.3.
func (tx *Transaction) EffectivePriorityFee(basefee *uint256.Int) *uint256.Int {
	if tx.GasFeeCap.Cmp(basefee) <= 0 {
		return new(uint256.Int)
	}
	headroom := new(uint256.Int).Sub(tx.GasFeeCap, basefee)
	if tx.GasTipCap.Cmp(headroom) < 0 {
		return new(uint256.Int).Set(tx.GasTipCap)
	}
	return headroom
}
