package btcsync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/swap-go/btcman/rpc"
	"github.com/TEENet-io/swap-go/htlc"
	"github.com/TEENet-io/swap-go/ledger"
	"github.com/TEENet-io/swap-go/swap"
)

// wallet of the regtest node, also the coinbase receiver
const regtestCoinbase = "mkVXZnqaaKt4puQNr4ovPHYg48mjguFCnT"

func regtestClient(t *testing.T) *rpc.RpcClient {
	server, port := os.Getenv("SERVER"), os.Getenv("PORT")
	username, password := os.Getenv("USER"), os.Getenv("PASS")
	if server == "" || port == "" || username == "" || password == "" {
		t.Skip("Skipping test: SERVER, PORT, USER, PASS not set for a regtest bitcoin node")
	}
	client, err := rpc.NewRpcClient(&rpc.RpcClientConfig{
		ServerAddr: server,
		Port:       port,
		Username:   username,
		Pwd:        password,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestRegtestFundingReported(t *testing.T) {
	client := regtestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, accept, _ := swap.RandRequest(time.Now())
	alpha, _, err := req.Params(&accept)
	require.NoError(t, err)
	params := alpha.(*htlc.BitcoinParams)
	addr, err := params.Address()
	require.NoError(t, err)
	coinbase, err := btcutil.DecodeAddress(regtestCoinbase, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	monitor := NewBTCMonitor(&Config{ChainConfig: &chaincfg.RegressionNetParams, Confirmations: 1}, client)
	funded, err := monitor.SubscribeFunded(ctx, params)
	require.NoError(t, err)

	txHash, err := client.SendToAddress(addr, params.Amount().Sat)
	require.NoError(t, err)
	_, err = client.GenerateBlocks(1, coinbase)
	require.NoError(t, err)
	require.NoError(t, monitor.Scan())

	ev := recv(t, funded)
	assert.Equal(t, txHash.String(), ev.TxID)
	assert.Equal(t, txHash.String(), ev.Funding.Location.(ledger.BitcoinLocation).OutPoint.Hash.String())
	assert.Equal(t, 0, ev.Funding.Amount.Cmp(params.Amount()))
}
