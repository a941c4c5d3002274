package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
)

var ErrUnknownNetwork = errors.New("unknown network")

// BitcoinNetwork is the textual name of a bitcoin chain.
type BitcoinNetwork string

const (
	BitcoinMainnet BitcoinNetwork = "mainnet"
	BitcoinTestnet BitcoinNetwork = "testnet"
	BitcoinRegtest BitcoinNetwork = "regtest"
)

func (n BitcoinNetwork) Params() (*chaincfg.Params, error) {
	switch n {
	case BitcoinMainnet:
		return &chaincfg.MainNetParams, nil
	case BitcoinTestnet:
		return &chaincfg.TestNet3Params, nil
	case BitcoinRegtest:
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("%w: bitcoin %q", ErrUnknownNetwork, string(n))
}

// MustParams is for networks that were validated on construction.
func (n BitcoinNetwork) MustParams() *chaincfg.Params {
	p, err := n.Params()
	if err != nil {
		panic(err)
	}
	return p
}

func BitcoinNetworkFromParams(p *chaincfg.Params) BitcoinNetwork {
	switch p.Net {
	case chaincfg.MainNetParams.Net:
		return BitcoinMainnet
	case chaincfg.TestNet3Params.Net:
		return BitcoinTestnet
	default:
		return BitcoinRegtest
	}
}

// EthereumNetwork is identified by its chain id.
type EthereumNetwork struct {
	ChainID *big.Int `json:"chain_id"`
}

func NewEthereumNetwork(chainID int64) EthereumNetwork {
	return EthereumNetwork{ChainID: big.NewInt(chainID)}
}

func (n EthereumNetwork) String() string {
	if n.ChainID == nil {
		return "ethereum(unknown)"
	}
	return fmt.Sprintf("ethereum(%s)", n.ChainID)
}

// ParseEthereumNetwork reads a decimal chain id.
func ParseEthereumNetwork(s string) (EthereumNetwork, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() <= 0 {
		return EthereumNetwork{}, fmt.Errorf("%w: ethereum chain id %q", ErrUnknownNetwork, s)
	}
	return EthereumNetwork{ChainID: id}, nil
}
