package htlc

import (
	"time"

	"github.com/TEENet-io/swap-go/action"
	"github.com/TEENet-io/swap-go/ethhtlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/secret"
)

type EthereumParams struct {
	amount         ledger.EtherQuantity
	redeemIdentity ledger.EthereumIdentity
	refundIdentity ledger.EthereumIdentity
	secretHash     secret.Hash
	expiry         time.Time
	network        ledger.EthereumNetwork
}

func NewEthereumParams(
	amount ledger.EtherQuantity,
	refundIdentity, redeemIdentity ledger.EthereumIdentity,
	secretHash secret.Hash,
	expiry time.Time,
	network ledger.EthereumNetwork,
) *EthereumParams {
	return &EthereumParams{
		amount:         ledger.NewEtherQuantity(amount.Wei),
		redeemIdentity: redeemIdentity,
		refundIdentity: refundIdentity,
		secretHash:     secretHash,
		expiry:         time.Unix(expiry.Unix(), 0),
		network:        network,
	}
}

func (p *EthereumParams) Ledger() ledger.Kind                     { return ledger.Ethereum }
func (p *EthereumParams) Asset() ledger.Asset                     { return p.amount }
func (p *EthereumParams) Amount() ledger.EtherQuantity            { return ledger.NewEtherQuantity(p.amount.Wei) }
func (p *EthereumParams) SecretHash() secret.Hash                 { return p.secretHash }
func (p *EthereumParams) Expiry() time.Time                       { return p.expiry }
func (p *EthereumParams) RedeemIdentity() ledger.EthereumIdentity { return p.redeemIdentity }
func (p *EthereumParams) RefundIdentity() ledger.EthereumIdentity { return p.refundIdentity }
func (p *EthereumParams) Network() ledger.EthereumNetwork         { return p.network }
func (*EthereumParams) isParams()                                 {}

func (p *EthereumParams) contract() *ethhtlc.Contract {
	return &ethhtlc.Contract{
		RedeemAddress: p.redeemIdentity,
		RefundAddress: p.refundIdentity,
		SecretHash:    p.secretHash,
		Expiry:        p.expiry,
	}
}

func (p *EthereumParams) Representation() ([]byte, error) {
	return p.contract().DeployCode()
}

// FundAction deploys the htlc with the asset attached, so it is tagged as a
// deploy.
func (p *EthereumParams) FundAction() (action.Action, error) {
	code, err := p.Representation()
	if err != nil {
		return action.Action{}, err
	}
	return action.Action{
		Kind:   action.KindDeploy,
		Ledger: ledger.Ethereum,
		Payload: action.ContractDeploy{
			Data:     code,
			Amount:   p.Amount(),
			GasLimit: ethhtlc.DeployGasLimit,
			Network:  p.network,
		},
	}, nil
}

// RedeemAction needs no key: the contract pays the redeem identity whoever
// sends the secret.
func (p *EthereumParams) RedeemAction(f Funding, src secret.Source) (action.Action, error) {
	loc, ok := f.Location.(ledger.EthereumLocation)
	if !ok {
		return action.Action{}, ErrLocationMismatch
	}
	s := src.Secret()
	if !p.secretHash.Matches(s) {
		return action.Action{}, ErrSecretMismatch
	}
	return action.Action{
		Kind:   action.KindRedeem,
		Ledger: ledger.Ethereum,
		Payload: action.SendTransaction{
			To:       loc.Address,
			Data:     ethhtlc.RedeemData(s),
			Amount:   ledger.NewEtherQuantity(nil),
			GasLimit: ethhtlc.RedeemGasLimit,
			Network:  p.network,
		},
	}, nil
}

func (p *EthereumParams) RefundAction(f Funding, _ secret.Source) (action.Action, error) {
	loc, ok := f.Location.(ledger.EthereumLocation)
	if !ok {
		return action.Action{}, ErrLocationMismatch
	}
	invalidUntil := p.expiry
	return action.Action{
		Kind:         action.KindRefund,
		Ledger:       ledger.Ethereum,
		InvalidUntil: &invalidUntil,
		Payload: action.SendTransaction{
			To:       loc.Address,
			Data:     ethhtlc.RefundData(),
			Amount:   ledger.NewEtherQuantity(nil),
			GasLimit: ethhtlc.RefundGasLimit,
			Network:  p.network,
		},
	}, nil
}
