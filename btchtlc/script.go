/*
Package btchtlc builds the bitcoin side of a swap: the two-branch htlc script,
its P2WSH address and the witness spends of either branch.

	OP_IF
		OP_SIZE 32 OP_EQUALVERIFY OP_SHA256 <secret hash> OP_EQUALVERIFY
		OP_DUP OP_HASH160 <redeem pubkey hash>
	OP_ELSE
		<expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
		OP_DUP OP_HASH160 <refund pubkey hash>
	OP_ENDIF
	OP_EQUALVERIFY OP_CHECKSIG
*/
package btchtlc

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var (
	ErrInvalidScript = errors.New("not a swap htlc script")
	ErrDustOutput    = errors.New("spend output would be dust after fees")
	ErrNoSecret      = errors.New("witness carries no matching secret")
)

// Script returns the htlc script. Identical inputs give identical bytes.
func Script(redeem, refund ledger.BitcoinIdentity, hash secret.Hash, expiry time.Time) ([]byte, error) {
	b := txscript.NewScriptBuilder()

	b.AddOp(txscript.OP_IF)
	{
		b.AddOp(txscript.OP_SIZE)
		b.AddInt64(secret.Size)
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(txscript.OP_SHA256)
		b.AddData(hash[:])
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(redeem[:])
	}
	b.AddOp(txscript.OP_ELSE)
	{
		b.AddInt64(expiry.Unix())
		b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
		b.AddOp(txscript.OP_DROP)
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(refund[:])
	}
	b.AddOp(txscript.OP_ENDIF)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)

	return b.Script()
}

// Address is the P2WSH address paying to the script.
func Address(script []byte, params *chaincfg.Params) (*btcutil.AddressWitnessScriptHash, error) {
	h := sha256.Sum256(script)
	return btcutil.NewAddressWitnessScriptHash(h[:], params)
}

// PkScript is the output script an htlc funding output carries.
func PkScript(script []byte) ([]byte, error) {
	h := sha256.Sum256(script)
	return txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(h[:]).Script()
}
