package txpool

import "errors"

// Error taxonomy surfaced from insertion, per spec §7. All rejection
// reasons are synchronous and non-swallowed; none of these indicate a bug
// in the pool itself. A broken internal invariant found during insertion is
// returned by addLocked as a wrapped "internal invariant broken" error; the
// pool does not terminate the process for it.
var (
	ErrAlreadyImported     = errors.New("txpool: transaction already imported")
	ErrReplaceUnderpriced  = errors.New("txpool: replacement transaction underpriced")
	ErrNonceTooLow         = errors.New("txpool: nonce too low")
	ErrFeeCapTooLow        = errors.New("txpool: max fee per gas below minimum protocol base fee")
	ErrPoolOverflow        = errors.New("txpool: pool full and no transaction could be evicted")
	ErrUnderpriced         = errors.New("txpool: transaction underpriced relative to pool contents")
	ErrBlobSidecarMissing  = errors.New("txpool: blob transaction submitted without a sidecar")
	ErrIntrinsicGasTooLow  = errors.New("txpool: intrinsic gas too low")
	ErrExceedsMaxInitCode  = errors.New("txpool: init code size exceeds maximum")
	ErrInvalidSidecarState = errors.New("txpool: sidecar attach/take attempted in wrong state")
	ErrUnknownTransaction  = errors.New("txpool: transaction not present in pool")
)
