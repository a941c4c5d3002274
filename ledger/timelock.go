package ledger

import (
	"errors"
	"time"

	"github.com/btcsuite/btcd/txscript"
)

var ErrInvalidExpiry = errors.New("invalid htlc expiry")

// ValidateExpiry checks that an absolute expiry can be encoded on the ledger.
// Bitcoin interprets lock times below txscript.LockTimeThreshold as block
// heights, so those are refused.
func ValidateExpiry(kind Kind, expiry time.Time) error {
	if expiry.IsZero() || expiry.Unix() <= 0 {
		return ErrInvalidExpiry
	}
	switch kind {
	case Bitcoin:
		if expiry.Unix() < txscript.LockTimeThreshold || expiry.Unix() > int64(^uint32(0)) {
			return ErrInvalidExpiry
		}
	case Ethereum:
		if expiry.Unix() > int64(^uint32(0)) {
			return ErrInvalidExpiry
		}
	default:
		return ErrUnsupportedLedger
	}
	return nil
}
