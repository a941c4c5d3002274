/*
Package secret holds the swap secret, its sha256 commitment and the per-swap
key material derived from a node seed.
*/
package secret

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/TEENet-io/swap-go/common"
)

const Size = 32

var (
	ErrInvalidSecret = errors.New("secret must be 32 bytes")
	ErrInvalidHash   = errors.New("secret hash must be 32 bytes")
)

// Secret is the preimage that unlocks the redeem path of both htlcs.
type Secret [Size]byte

// Hash is sha256(secret), published before the secret itself.
type Hash [sha256.Size]byte

func NewRandom() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, err
	}
	return s, nil
}

func FromBytes(b []byte) (Secret, error) {
	var s Secret
	if len(b) != Size {
		return s, ErrInvalidSecret
	}
	copy(s[:], b)
	return s, nil
}

func (s Secret) Hash() Hash {
	return sha256.Sum256(s[:])
}

func (s Secret) Bytes() []byte { return bytes.Clone(s[:]) }

func (s Secret) String() string { return hex.EncodeToString(s[:]) }

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Secret) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(common.Trim0xPrefix(string(b)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	parsed, err := FromBytes(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != len(h) {
		return h, ErrInvalidHash
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash accepts a hex string with or without 0x prefix.
func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(common.Trim0xPrefix(s))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return HashFromBytes(raw)
}

// Matches reports whether s is the preimage of h.
func (h Hash) Matches(s Secret) bool {
	return s.Hash() == h
}

func (h Hash) Bytes() []byte { return bytes.Clone(h[:]) }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
