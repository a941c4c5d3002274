package htlc

import (
	"errors"
	"fmt"
	"time"

	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var ErrZeroAmount = errors.New("htlc amount must not be zero")

// Terms is the wire form of one leg as the peers negotiate it, before both
// identities are known. Network is a bitcoin network name or an ethereum
// chain id; Amount is in base units.
type Terms struct {
	Ledger  ledger.Kind `json:"ledger"`
	Network string      `json:"network"`
	Amount  string      `json:"amount"`
	Expiry  int64       `json:"expiry"`
}

func NewTerms(asset ledger.Asset, network string, expiry time.Time) Terms {
	return Terms{
		Ledger:  asset.Ledger(),
		Network: network,
		Amount:  ledger.BaseUnits(asset),
		Expiry:  expiry.Unix(),
	}
}

func (t Terms) ExpiryTime() time.Time { return time.Unix(t.Expiry, 0) }

func (t Terms) Asset() (ledger.Asset, error) {
	return ledger.ParseBaseUnits(t.Ledger, t.Amount)
}

func (t Terms) Validate() error {
	if !t.Ledger.Valid() {
		return ledger.ErrUnsupportedLedger
	}
	asset, err := t.Asset()
	if err != nil {
		return err
	}
	if asset.IsZero() {
		return ErrZeroAmount
	}
	switch t.Ledger {
	case ledger.Bitcoin:
		if _, err := ledger.BitcoinNetwork(t.Network).Params(); err != nil {
			return err
		}
	case ledger.Ethereum:
		if _, err := ledger.ParseEthereumNetwork(t.Network); err != nil {
			return err
		}
	}
	return ledger.ValidateExpiry(t.Ledger, t.ExpiryTime())
}

// Build turns agreed terms plus both identities into params.
func Build(t Terms, refundIdentity, redeemIdentity string, hash secret.Hash) (Params, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	asset, _ := t.Asset()

	switch t.Ledger {
	case ledger.Bitcoin:
		refund, err := ledger.ParseBitcoinIdentity(refundIdentity)
		if err != nil {
			return nil, fmt.Errorf("refund identity: %w", err)
		}
		redeem, err := ledger.ParseBitcoinIdentity(redeemIdentity)
		if err != nil {
			return nil, fmt.Errorf("redeem identity: %w", err)
		}
		return NewBitcoinParams(asset.(ledger.BitcoinQuantity), refund, redeem, hash,
			t.ExpiryTime(), ledger.BitcoinNetwork(t.Network)), nil
	case ledger.Ethereum:
		refund, err := ledger.ParseEthereumIdentity(refundIdentity)
		if err != nil {
			return nil, fmt.Errorf("refund identity: %w", err)
		}
		redeem, err := ledger.ParseEthereumIdentity(redeemIdentity)
		if err != nil {
			return nil, fmt.Errorf("redeem identity: %w", err)
		}
		network, _ := ledger.ParseEthereumNetwork(t.Network)
		return NewEthereumParams(asset.(ledger.EtherQuantity), refund, redeem, hash,
			t.ExpiryTime(), network), nil
	}
	return nil, ledger.ErrUnsupportedLedger
}
