package ledger

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
)

// HtlcLocation is where a deployed htlc can be found on its ledger.
type HtlcLocation interface {
	Ledger() Kind
	String() string
	isHtlcLocation()
}

// BitcoinLocation is the outpoint holding the htlc output.
type BitcoinLocation struct {
	wire.OutPoint
}

func NewBitcoinLocation(txid chainhash.Hash, vout uint32) BitcoinLocation {
	return BitcoinLocation{OutPoint: *wire.NewOutPoint(&txid, vout)}
}

// ParseBitcoinLocation parses "txid:vout".
func ParseBitcoinLocation(s string) (BitcoinLocation, error) {
	op, err := wire.NewOutPointFromString(s)
	if err != nil {
		return BitcoinLocation{}, fmt.Errorf("invalid bitcoin htlc location %q: %w", s, err)
	}
	return BitcoinLocation{OutPoint: *op}, nil
}

func (l BitcoinLocation) Ledger() Kind   { return Bitcoin }
func (l BitcoinLocation) String() string { return l.OutPoint.String() }
func (BitcoinLocation) isHtlcLocation()  {}

// EthereumLocation is the address of the deployed htlc contract.
type EthereumLocation struct {
	Address common.Address
}

func (l EthereumLocation) Ledger() Kind   { return Ethereum }
func (l EthereumLocation) String() string { return l.Address.Hex() }
func (EthereumLocation) isHtlcLocation()  {}

// ParseLocation decodes the textual form produced by HtlcLocation.String.
func ParseLocation(kind Kind, s string) (HtlcLocation, error) {
	switch kind {
	case Bitcoin:
		return ParseBitcoinLocation(s)
	case Ethereum:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid ethereum htlc location %q", s)
		}
		return EthereumLocation{Address: common.HexToAddress(s)}, nil
	}
	return nil, ErrUnsupportedLedger
}
