/*
Package htlc is the ledger agnostic description of one htlc instance and the
derivation of the actions that fund, redeem and refund it.

Params is a closed set: *BitcoinParams and *EthereumParams. Values are
immutable once constructed.
*/
package htlc

import (
	"errors"
	"time"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var (
	ErrLocationMismatch = errors.New("htlc location belongs to another ledger")
	ErrAmountMismatch   = errors.New("funded amount belongs to another ledger")
	ErrSecretMismatch   = errors.New("secret does not match the htlc secret hash")
	ErrKeyMismatch      = errors.New("signing key does not match the htlc identity")
)

type Params interface {
	Ledger() ledger.Kind
	Asset() ledger.Asset
	SecretHash() secret.Hash
	Expiry() time.Time

	// Representation is the on-chain artifact of the htlc: the output
	// script on bitcoin, the deploy bytecode on ethereum.
	Representation() ([]byte, error)

	FundAction() (action.Action, error)
	RedeemAction(f Funding, src secret.Source) (action.Action, error)
	RefundAction(f Funding, src secret.Source) (action.Action, error)

	isParams()
}

// Funding is an observed htlc: where it is and what it holds.
type Funding struct {
	Location ledger.HtlcLocation
	Amount   ledger.Asset
}
