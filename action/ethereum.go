package action

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/TEENet-io/swap-go/ledger"
)

// ContractDeploy creates the htlc contract with Amount attached.
type ContractDeploy struct {
	Data     []byte
	Amount   ledger.EtherQuantity
	GasLimit uint64
	Network  ledger.EthereumNetwork
}

func (ContractDeploy) Ledger() ledger.Kind { return ledger.Ethereum }
func (ContractDeploy) isPayload()          {}

func (p ContractDeploy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Data     hexutil.Bytes  `json:"data"`
		Amount   *hexutil.Big   `json:"amount"`
		GasLimit hexutil.Uint64 `json:"gas_limit"`
		ChainID  *hexutil.Big   `json:"chain_id"`
	}{p.Data, (*hexutil.Big)(weiOf(p.Amount)), hexutil.Uint64(p.GasLimit), (*hexutil.Big)(p.Network.ChainID)})
}

// SendTransaction invokes a deployed htlc.
type SendTransaction struct {
	To       common.Address
	Data     []byte
	Amount   ledger.EtherQuantity
	GasLimit uint64
	Network  ledger.EthereumNetwork
}

func (SendTransaction) Ledger() ledger.Kind { return ledger.Ethereum }
func (SendTransaction) isPayload()          {}

func (p SendTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		To       common.Address `json:"to"`
		Data     hexutil.Bytes  `json:"data"`
		Amount   *hexutil.Big   `json:"amount"`
		GasLimit hexutil.Uint64 `json:"gas_limit"`
		ChainID  *hexutil.Big   `json:"chain_id"`
	}{p.To, p.Data, (*hexutil.Big)(weiOf(p.Amount)), hexutil.Uint64(p.GasLimit), (*hexutil.Big)(p.Network.ChainID)})
}

func weiOf(q ledger.EtherQuantity) *big.Int {
	if q.Wei == nil {
		return new(big.Int)
	}
	return q.Wei
}
