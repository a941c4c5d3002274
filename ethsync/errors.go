package ethsync

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNotEthereum     = errors.New("htlc params are not ethereum params")
	ErrNetworkMismatch = errors.New("htlc is on another ethereum chain")
)

func ErrChainIDUnmatched(expected, actual *big.Int) error {
	msg := fmt.Sprintf("chain ID mismatch: expected=%v, actual=%v", expected, actual)
	return errors.New(msg)
}
