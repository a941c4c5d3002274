package btchtlc

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/swap-go/secret"
)

// ExtractSecret looks for a witness push hashing to h.
func ExtractSecret(witness wire.TxWitness, h secret.Hash) (secret.Secret, error) {
	for _, push := range witness {
		if len(push) != secret.Size {
			continue
		}
		s, _ := secret.FromBytes(push)
		if h.Matches(s) {
			return s, nil
		}
	}
	return secret.Secret{}, ErrNoSecret
}

// IsRefundWitness reports whether the witness takes the OP_ELSE branch of
// script.
func IsRefundWitness(witness wire.TxWitness, script []byte) bool {
	return len(witness) == 4 && len(witness[2]) == 0 && bytes.Equal(witness[3], script)
}

// IsRedeemWitness reports whether the witness takes the OP_IF branch of
// script.
func IsRedeemWitness(witness wire.TxWitness, script []byte) bool {
	return len(witness) == 5 && bytes.Equal(witness[3], []byte{0x01}) && bytes.Equal(witness[4], script)
}
