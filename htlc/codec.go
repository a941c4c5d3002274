package htlc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

var ErrMalformedParams = errors.New("malformed htlc params")

type envelope struct {
	Ledger   ledger.Kind   `json:"ledger"`
	Bitcoin  *bitcoinJSON  `json:"bitcoin,omitempty"`
	Ethereum *ethereumJSON `json:"ethereum,omitempty"`
}

type bitcoinJSON struct {
	Amount         int64                  `json:"amount"`
	RedeemIdentity ledger.BitcoinIdentity `json:"redeem_identity"`
	RefundIdentity ledger.BitcoinIdentity `json:"refund_identity"`
	SecretHash     secret.Hash            `json:"secret_hash"`
	Expiry         int64                  `json:"expiry"`
	Network        ledger.BitcoinNetwork  `json:"network"`
}

type ethereumJSON struct {
	Amount         string         `json:"amount"`
	RedeemIdentity common.Address `json:"redeem_identity"`
	RefundIdentity common.Address `json:"refund_identity"`
	SecretHash     secret.Hash    `json:"secret_hash"`
	Expiry         int64          `json:"expiry"`
	ChainID        string         `json:"chain_id"`
}

func Marshal(p Params) ([]byte, error) {
	switch v := p.(type) {
	case *BitcoinParams:
		return json.Marshal(envelope{Ledger: ledger.Bitcoin, Bitcoin: &bitcoinJSON{
			Amount:         int64(v.amount.Sat),
			RedeemIdentity: v.redeemIdentity,
			RefundIdentity: v.refundIdentity,
			SecretHash:     v.secretHash,
			Expiry:         v.expiry.Unix(),
			Network:        v.network,
		}})
	case *EthereumParams:
		chainID := ""
		if v.network.ChainID != nil {
			chainID = v.network.ChainID.String()
		}
		return json.Marshal(envelope{Ledger: ledger.Ethereum, Ethereum: &ethereumJSON{
			Amount:         v.amount.Wei.String(),
			RedeemIdentity: v.redeemIdentity,
			RefundIdentity: v.refundIdentity,
			SecretHash:     v.secretHash,
			Expiry:         v.expiry.Unix(),
			ChainID:        chainID,
		}})
	}
	return nil, ledger.ErrUnsupportedLedger
}

func Unmarshal(b []byte) (Params, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedParams, err)
	}
	switch env.Ledger {
	case ledger.Bitcoin:
		v := env.Bitcoin
		if v == nil {
			return nil, ErrMalformedParams
		}
		if _, err := v.Network.Params(); err != nil {
			return nil, err
		}
		return NewBitcoinParams(ledger.NewBitcoinQuantity(v.Amount), v.RefundIdentity, v.RedeemIdentity,
			v.SecretHash, time.Unix(v.Expiry, 0), v.Network), nil
	case ledger.Ethereum:
		v := env.Ethereum
		if v == nil {
			return nil, ErrMalformedParams
		}
		wei, ok := new(big.Int).SetString(v.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("%w: amount %q", ErrMalformedParams, v.Amount)
		}
		var network ledger.EthereumNetwork
		if v.ChainID != "" {
			chainID, ok := new(big.Int).SetString(v.ChainID, 10)
			if !ok {
				return nil, fmt.Errorf("%w: chain id %q", ErrMalformedParams, v.ChainID)
			}
			network.ChainID = chainID
		}
		return NewEthereumParams(ledger.NewEtherQuantity(wei), v.RefundIdentity, v.RedeemIdentity,
			v.SecretHash, time.Unix(v.Expiry, 0), network), nil
	}
	return nil, ledger.ErrUnsupportedLedger
}
