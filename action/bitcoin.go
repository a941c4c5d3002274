package action

import (
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/swap-go/btchtlc"
	"github.com/TEENet-io/swap-go/ledger"
)

// SendToAddress pays Amount to the htlc address.
type SendToAddress struct {
	To      btcutil.Address
	Amount  ledger.BitcoinQuantity
	Network ledger.BitcoinNetwork
}

func (SendToAddress) Ledger() ledger.Kind { return ledger.Bitcoin }
func (SendToAddress) isPayload()          {}

func (p SendToAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		To      string `json:"to"`
		Amount  int64  `json:"amount"`
		Network string `json:"network"`
	}{p.To.EncodeAddress(), int64(p.Amount.Sat), string(p.Network)})
}

// SpendOutput is an htlc output primed with the signing material of one
// branch. The transaction is only built once the caller names a destination.
type SpendOutput struct {
	btchtlc.Spend
	Network ledger.BitcoinNetwork
}

func (SpendOutput) Ledger() ledger.Kind { return ledger.Bitcoin }
func (SpendOutput) isPayload()          {}

// SpendTo signs a transaction moving the htlc output to dest.
func (p SpendOutput) SpendTo(dest btcutil.Address, feePerVByte btcutil.Amount) (*wire.MsgTx, error) {
	return p.Spend.BuildTx(dest, feePerVByte)
}

// The signing key never leaves the process through json.
func (p SpendOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outpoint string `json:"outpoint"`
		Value    int64  `json:"value"`
		Network  string `json:"network"`
		Refund   bool   `json:"refund"`
	}{p.Outpoint.String(), int64(p.Value), string(p.Network), p.IsRefund()})
}
