package etherman

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

var (
	SimulatedChainID = big.NewInt(1337)
	blockGasLimit    = uint64(30_000_000)
)

type SimulatedAccount struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// SimulatedChain is an in-process chain with funded accounts, for tests.
type SimulatedChain struct {
	Backend  *simulated.Backend
	Accounts []*SimulatedAccount
	*Etherman
}

func NewSimulatedChain(nAccount int) *SimulatedChain {
	accounts := make([]*SimulatedAccount, nAccount)
	genesisAlloc := map[common.Address]types.Account{}
	for i := 0; i < nAccount; i++ {
		sk, _ := crypto.GenerateKey()
		accounts[i] = &SimulatedAccount{Key: sk, Address: crypto.PubkeyToAddress(sk.PublicKey)}

		balance, _ := new(big.Int).SetString("100000000000000000000", 10)
		genesisAlloc[accounts[i].Address] = types.Account{Balance: balance}
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(blockGasLimit))

	return &SimulatedChain{
		Backend:  backend,
		Accounts: accounts,
		Etherman: &Etherman{client: backend.Client(), chainID: SimulatedChainID},
	}
}

func (c *SimulatedChain) Commit() common.Hash {
	return c.Backend.Commit()
}

func (c *SimulatedChain) Close() error {
	return c.Backend.Close()
}
