package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// BitcoinIdentity is the hash160 of a compressed secp256k1 public key.
type BitcoinIdentity [20]byte

func BitcoinIdentityFromPubKey(pub *btcec.PublicKey) BitcoinIdentity {
	var id BitcoinIdentity
	copy(id[:], btcutil.Hash160(pub.SerializeCompressed()))
	return id
}

func (id BitcoinIdentity) String() string { return hex.EncodeToString(id[:]) }

func (id BitcoinIdentity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *BitcoinIdentity) UnmarshalText(b []byte) error {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	if len(raw) != len(id) {
		return fmt.Errorf("bitcoin identity must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// EthereumIdentity is the account funds are released to.
type EthereumIdentity = common.Address

func EthereumIdentityFromPubKey(pub *btcec.PublicKey) EthereumIdentity {
	return ethcrypto.PubkeyToAddress(*pub.ToECDSA())
}

var ErrInvalidIdentity = errors.New("invalid identity")

func ParseBitcoinIdentity(s string) (BitcoinIdentity, error) {
	var id BitcoinIdentity
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return id, nil
}

func ParseEthereumIdentity(s string) (EthereumIdentity, error) {
	if !common.IsHexAddress(s) {
		return EthereumIdentity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	return common.HexToAddress(s), nil
}

// ParseIdentity checks s is a well formed identity on the given ledger.
func ParseIdentity(kind Kind, s string) error {
	var err error
	switch kind {
	case Bitcoin:
		_, err = ParseBitcoinIdentity(s)
	case Ethereum:
		_, err = ParseEthereumIdentity(s)
	default:
		err = ErrUnsupportedLedger
	}
	return err
}
