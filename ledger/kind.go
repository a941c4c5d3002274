/*
Package ledger describes the ledgers a swap can run on: the asset quantity,
address, identity and htlc location types of each one.

Only two ledgers are supported and the set is closed. Code that switches on
Kind is expected to handle both and return ErrUnsupportedLedger otherwise.
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

type Kind uint8

const (
	Unknown Kind = iota
	Bitcoin
	Ethereum
)

var (
	ErrUnsupportedLedger = errors.New("unsupported ledger")
	ErrAssetMismatch     = errors.New("asset belongs to another ledger")
)

func (k Kind) String() string {
	switch k {
	case Bitcoin:
		return "bitcoin"
	case Ethereum:
		return "ethereum"
	default:
		return "unknown"
	}
}

func (k Kind) Valid() bool {
	return k == Bitcoin || k == Ethereum
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bitcoin", "btc":
		return Bitcoin, nil
	case "ethereum", "eth":
		return Ethereum, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedLedger, s)
	}
}

// MarshalText writes "unknown" for anything but the two ledgers, which
// UnmarshalText rejects.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
