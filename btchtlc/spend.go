package btchtlc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/swap-go/secret"
)

// Spend is an htlc output primed for one of its two branches.
// A nil Secret selects the refund branch.
type Spend struct {
	Outpoint wire.OutPoint
	Value    btcutil.Amount
	Script   []byte
	Key      *btcec.PrivateKey
	Secret   *secret.Secret
	// LockTime is the htlc expiry, only used by refunds.
	LockTime uint32
}

func (s *Spend) IsRefund() bool { return s.Secret == nil }

// BuildTx assembles and signs a transaction moving the htlc output to dest,
// paying feePerVByte satoshi per virtual byte.
func (s *Spend) BuildTx(dest btcutil.Address, feePerVByte btcutil.Amount) (*wire.MsgTx, error) {
	destScript, err := txscript.PayToAddrScript(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination script: %w", err)
	}
	pkScript, err := PkScript(s.Script)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	txIn := wire.NewTxIn(&s.Outpoint, nil, nil)
	if s.IsRefund() {
		// CLTV needs a non-final sequence and a lock time past the expiry
		txIn.Sequence = wire.MaxTxInSequenceNum - 1
		tx.LockTime = s.LockTime
	}
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(s.Value), destScript))

	// sign once to learn the virtual size, then again with the fee applied
	if err := s.sign(tx, pkScript); err != nil {
		return nil, err
	}
	fee := feePerVByte * btcutil.Amount(mempool.GetTxVirtualSize(btcutil.NewTx(tx)))
	tx.TxOut[0].Value = int64(s.Value - fee)
	if tx.TxOut[0].Value <= 0 || mempool.IsDust(tx.TxOut[0], mempool.DefaultMinRelayTxFee) {
		return nil, fmt.Errorf("%w: value=%v fee=%v", ErrDustOutput, s.Value, fee)
	}
	if err := s.sign(tx, pkScript); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Spend) sign(tx *wire.MsgTx, pkScript []byte) error {
	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, int64(s.Value))
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	sig, err := txscript.RawTxInWitnessSignature(tx, sigHashes, 0, int64(s.Value), s.Script, txscript.SigHashAll, s.Key)
	if err != nil {
		return fmt.Errorf("failed to sign htlc spend: %w", err)
	}
	pub := s.Key.PubKey().SerializeCompressed()

	if s.IsRefund() {
		tx.TxIn[0].Witness = wire.TxWitness{sig, pub, nil, s.Script}
	} else {
		tx.TxIn[0].Witness = wire.TxWitness{sig, pub, s.Secret.Bytes(), {0x01}, s.Script}
	}
	return nil
}
