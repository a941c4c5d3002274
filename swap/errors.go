package swap

import "errors"

var (
	ErrMissingID          = errors.New("swap id is missing")
	ErrSwapNotSupported   = errors.New("swap not supported")
	ErrTimelockGap        = errors.New("alpha expiry must exceed beta expiry by the minimum timelock gap")
	ErrInvalidPhase       = errors.New("command not allowed in the current phase")
	ErrIllegalTransition  = errors.New("illegal leg transition")
	ErrActionNotAvailable = errors.New("action not available")
	ErrFundsAtStake       = errors.New("swap holds funds, it cannot be abandoned")
	ErrAbandoned          = errors.New("swap abandoned")
	ErrRunnerStopped      = errors.New("swap runner is not running")
	ErrSecretMismatch     = errors.New("observed secret does not match the secret hash")
	ErrEarlyRefund        = errors.New("refund observed before the expiry")
	ErrConflictingOutcome = errors.New("leg reported both redeemed and refunded")
	ErrUnknownEvent       = errors.New("unknown swap event")
	ErrEmptyHistory       = errors.New("swap history is empty")
	ErrSwapNotFound       = errors.New("swap not found")
	ErrVersionConflict    = errors.New("swap version conflict")
)
