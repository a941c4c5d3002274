package node

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/TEENet-io/swap-go/swap"
)

var (
	ErrWrongRole        = errors.New("operation not allowed for this role")
	ErrUnexpectedPeer   = errors.New("message from a peer that is not the counterparty")
	ErrDuplicateSwap    = errors.New("swap already exists")
	ErrMissingPeer      = errors.New("counterparty address is missing")
	ErrNotStarted       = errors.New("node service not started")
	ErrIdentityNotOwned = errors.New("bitcoin identity must be the node's own key")
)

func ErrRoleMismatch(id uuid.UUID, want, got swap.Role) error {
	return fmt.Errorf("%w: swap %s is %s, need %s", ErrWrongRole, id, got, want)
}
