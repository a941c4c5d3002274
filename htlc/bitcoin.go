package htlc

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/btchtlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

type BitcoinParams struct {
	amount         ledger.BitcoinQuantity
	redeemIdentity ledger.BitcoinIdentity
	refundIdentity ledger.BitcoinIdentity
	secretHash     secret.Hash
	expiry         time.Time
	network        ledger.BitcoinNetwork
}

func NewBitcoinParams(
	amount ledger.BitcoinQuantity,
	refundIdentity, redeemIdentity ledger.BitcoinIdentity,
	secretHash secret.Hash,
	expiry time.Time,
	network ledger.BitcoinNetwork,
) *BitcoinParams {
	return &BitcoinParams{
		amount:         amount,
		redeemIdentity: redeemIdentity,
		refundIdentity: refundIdentity,
		secretHash:     secretHash,
		expiry:         time.Unix(expiry.Unix(), 0),
		network:        network,
	}
}

func (p *BitcoinParams) Ledger() ledger.Kind                    { return ledger.Bitcoin }
func (p *BitcoinParams) Asset() ledger.Asset                    { return p.amount }
func (p *BitcoinParams) Amount() ledger.BitcoinQuantity         { return p.amount }
func (p *BitcoinParams) SecretHash() secret.Hash                { return p.secretHash }
func (p *BitcoinParams) Expiry() time.Time                      { return p.expiry }
func (p *BitcoinParams) RedeemIdentity() ledger.BitcoinIdentity { return p.redeemIdentity }
func (p *BitcoinParams) RefundIdentity() ledger.BitcoinIdentity { return p.refundIdentity }
func (p *BitcoinParams) Network() ledger.BitcoinNetwork         { return p.network }
func (*BitcoinParams) isParams()                                {}

func (p *BitcoinParams) Script() ([]byte, error) {
	return btchtlc.Script(p.redeemIdentity, p.refundIdentity, p.secretHash, p.expiry)
}

func (p *BitcoinParams) Address() (btcutil.Address, error) {
	script, err := p.Script()
	if err != nil {
		return nil, err
	}
	chainParams, err := p.network.Params()
	if err != nil {
		return nil, err
	}
	return btchtlc.Address(script, chainParams)
}

func (p *BitcoinParams) Representation() ([]byte, error) {
	script, err := p.Script()
	if err != nil {
		return nil, err
	}
	return btchtlc.PkScript(script)
}

func (p *BitcoinParams) FundAction() (action.Action, error) {
	addr, err := p.Address()
	if err != nil {
		return action.Action{}, err
	}
	return action.Action{
		Kind:   action.KindFund,
		Ledger: ledger.Bitcoin,
		Payload: action.SendToAddress{
			To:      addr,
			Amount:  p.amount,
			Network: p.network,
		},
	}, nil
}

func (p *BitcoinParams) RedeemAction(f Funding, src secret.Source) (action.Action, error) {
	s := src.Secret()
	if !p.secretHash.Matches(s) {
		return action.Action{}, ErrSecretMismatch
	}
	key := src.RedeemKey()
	if ledger.BitcoinIdentityFromPubKey(key.PubKey()) != p.redeemIdentity {
		return action.Action{}, ErrKeyMismatch
	}
	spend, err := p.spend(f)
	if err != nil {
		return action.Action{}, err
	}
	spend.Key = key
	spend.Secret = &s

	return action.Action{
		Kind:    action.KindRedeem,
		Ledger:  ledger.Bitcoin,
		Payload: action.SpendOutput{Spend: spend, Network: p.network},
	}, nil
}

func (p *BitcoinParams) RefundAction(f Funding, src secret.Source) (action.Action, error) {
	key := src.RefundKey()
	if ledger.BitcoinIdentityFromPubKey(key.PubKey()) != p.refundIdentity {
		return action.Action{}, ErrKeyMismatch
	}
	spend, err := p.spend(f)
	if err != nil {
		return action.Action{}, err
	}
	spend.Key = key
	spend.LockTime = uint32(p.expiry.Unix())

	invalidUntil := p.expiry
	return action.Action{
		Kind:         action.KindRefund,
		Ledger:       ledger.Bitcoin,
		InvalidUntil: &invalidUntil,
		Payload:      action.SpendOutput{Spend: spend, Network: p.network},
	}, nil
}

// spend primes the funded output; the value is what was observed, which may
// exceed the agreed amount when overfunding is accepted.
func (p *BitcoinParams) spend(f Funding) (btchtlc.Spend, error) {
	loc, ok := f.Location.(ledger.BitcoinLocation)
	if !ok {
		return btchtlc.Spend{}, ErrLocationMismatch
	}
	value := p.amount
	if f.Amount != nil {
		q, ok := f.Amount.(ledger.BitcoinQuantity)
		if !ok {
			return btchtlc.Spend{}, ErrAmountMismatch
		}
		value = q
	}
	script, err := p.Script()
	if err != nil {
		return btchtlc.Spend{}, err
	}
	return btchtlc.Spend{Outpoint: loc.OutPoint, Value: value.Sat, Script: script}, nil
}
