package secret

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/TEENet-io/swap-go/common"
)

var (
	ErrInvalidSeed     = errors.New("seed must be 32 bytes")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// info strings of the hkdf expansion; changing them changes every key.
var (
	infoSecret = []byte("SECRET")
	infoRedeem = []byte("REDEEM")
	infoRefund = []byte("REFUND")
)

// Source yields the secret material of a single swap.
type Source interface {
	// Secret is the same value on every call for the same swap.
	Secret() Secret
	// RedeemKey signs spends of the redeem path on the leg this party receives.
	RedeemKey() *btcec.PrivateKey
	// RefundKey signs spends of the refund path on the leg this party funds.
	RefundKey() *btcec.PrivateKey
}

// Seed is the root of every per-swap secret of a node.
type Seed [32]byte

func NewRandomSeed() Seed {
	return Seed(common.RandBytes32())
}

func SeedFromBytes(b []byte) (Seed, error) {
	if len(b) != len(Seed{}) {
		return Seed{}, ErrInvalidSeed
	}
	return Seed(b), nil
}

// SeedFromMnemonic turns a bip39 mnemonic into a seed. The 64-byte bip39
// seed is compressed with sha256.
func SeedFromMnemonic(mnemonic, password string) (Seed, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return Seed{}, ErrInvalidMnemonic
	}
	return Seed(sha256.Sum256(bip39.NewSeed(mnemonic, password))), nil
}

// SwapSource derives the secret material of one swap. Nothing is cached:
// the values are recomputed from the seed on demand.
func (s Seed) SwapSource(swapID uuid.UUID) Source {
	return &swapSource{seed: s, swapID: swapID}
}

type swapSource struct {
	seed   Seed
	swapID uuid.UUID
}

func (s *swapSource) expand(info []byte) [32]byte {
	var out [32]byte
	r := hkdf.New(sha256.New, s.seed[:], s.swapID[:], info)
	if _, err := io.ReadFull(r, out[:]); err != nil {
		// hkdf only fails after 255*32 bytes
		panic(fmt.Sprintf("hkdf expand: %v", err))
	}
	return out
}

func (s *swapSource) Secret() Secret {
	return Secret(s.expand(infoSecret))
}

func (s *swapSource) RedeemKey() *btcec.PrivateKey {
	b := s.expand(infoRedeem)
	key, _ := btcec.PrivKeyFromBytes(b[:])
	return key
}

func (s *swapSource) RefundKey() *btcec.PrivateKey {
	b := s.expand(infoRefund)
	key, _ := btcec.PrivKeyFromBytes(b[:])
	return key
}

// WithSecret returns a source that reports a learned secret instead of the
// derived one. The keys still come from src.
func WithSecret(src Source, s Secret) Source {
	return &learned{Source: src, secret: s}
}

type learned struct {
	Source
	secret Secret
}

func (l *learned) Secret() Secret { return l.secret }
