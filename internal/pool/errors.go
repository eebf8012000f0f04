package pool

import errorsmod "cosmossdk.io/errors"

// ModuleName is the error codespace for the pool lifecycle engine.
const ModuleName = "pool"

// Pool sentinel errors. Every guard in the lifecycle controller fails with
// exactly one of these so callers can distinguish configuration faults,
// phase violations, state conflicts, proof rejections and transfer failures
// without parsing log text.
var (
	ErrInvalidConfig = errorsmod.Register(ModuleName, 1, "invalid pool configuration")

	// Phase violations: retry later (or never, for a closed window).
	ErrEnrollmentClosed  = errorsmod.Register(ModuleName, 2, "enrollment window closed")
	ErrPlaytimeNotEnded  = errorsmod.Register(ModuleName, 3, "playtime not ended")
	ErrClaimWindowClosed = errorsmod.Register(ModuleName, 4, "claim window closed")
	ErrClaimWindowOpen   = errorsmod.Register(ModuleName, 5, "claim window still open")

	// State conflicts: not retryable with the same input.
	ErrIntakeClosed         = errorsmod.Register(ModuleName, 6, "intake closed")
	ErrAlreadyJoined        = errorsmod.Register(ModuleName, 7, "already joined")
	ErrWrongPayment         = errorsmod.Register(ModuleName, 8, "payment does not match entry price")
	ErrIntakeUnchanged      = errorsmod.Register(ModuleName, 9, "intake flag already has that value")
	ErrModeConflict         = errorsmod.Register(ModuleName, 10, "prize and refund modes are exclusive")
	ErrRefundInactive       = errorsmod.Register(ModuleName, 11, "refund mode not active")
	ErrRefundsAlreadyPaid   = errorsmod.Register(ModuleName, 12, "refunds already paid out")
	ErrRootAlreadyPublished = errorsmod.Register(ModuleName, 13, "prize root already published")
	ErrNoRoot               = errorsmod.Register(ModuleName, 14, "no prize root published")
	ErrZeroRoot             = errorsmod.Register(ModuleName, 15, "prize root must not be zero")
	ErrAlreadyClaimed       = errorsmod.Register(ModuleName, 16, "already claimed")
	ErrNotJoined            = errorsmod.Register(ModuleName, 17, "not a pool participant")
	ErrCommissionClaimed    = errorsmod.Register(ModuleName, 18, "commission already claimed")
	ErrZeroCommission       = errorsmod.Register(ModuleName, 19, "commission amount is zero")
	ErrNothingToSweep       = errorsmod.Register(ModuleName, 20, "nothing to sweep")

	ErrProofRejected = errorsmod.Register(ModuleName, 21, "merkle proof rejected")

	// ErrTransferFailed wraps the settlement adapter's error; the triggering
	// action has been fully rolled back when this is returned.
	ErrTransferFailed = errorsmod.Register(ModuleName, 22, "settlement transfer failed")

	// ErrReentrantCall rejects a mutating call issued while another mutating
	// call on the same pool is still in flight (e.g. from inside a transfer
	// callback).
	ErrReentrantCall = errorsmod.Register(ModuleName, 23, "re-entrant pool call")
)
