package etherman

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedChain(t *testing.T) {
	sim := NewSimulatedChain(2)
	defer sim.Close()

	ctx := context.Background()
	balance, err := sim.Client().BalanceAt(ctx, sim.Accounts[0].Address, nil)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", balance.String())

	_, err = NewEtherman(sim.Client(), &Config{ChainID: big.NewInt(1)})
	assert.Error(t, err)

	e, err := NewEtherman(sim.Client(), &Config{ChainID: SimulatedChainID, Confirmations: 2})
	require.NoError(t, err)
	_, err = e.GetLatestFinalizedBlockNumber(ctx)
	assert.ErrorIs(t, err, ErrNoFinalizedBlock)

	to := sim.Accounts[1].Address
	tx, err := sim.SendTx(ctx, sim.Accounts[0].Key, &to, big.NewInt(1000), nil, 21000)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		sim.Commit()
	}

	receipt, err := sim.Client().TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)

	fin, err := e.GetLatestFinalizedBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fin)

	_, err = sim.LatestBlockTime(ctx)
	assert.NoError(t, err)
}
