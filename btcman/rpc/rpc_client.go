package rpc

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type RpcClientConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// Wrapper of btc rpc client.
type RpcClient struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
	client     *rpcclient.Client
}

// Create a new RPC client which
// contains the calls the swap watcher needs.
func NewRpcClient(rcc *RpcClientConfig) (*RpcClient, error) {
	// Connect to Bitcoin node using HTTP
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rcc.ServerAddr + ":" + rcc.Port,
		User:         rcc.Username,
		Pass:         rcc.Pwd,
		HTTPPostMode: true, // original bitcoin only supports HTTP POST mode
		DisableTLS:   true, // original bitcoin does not support TLS
	}, nil)

	if err != nil {
		return nil, err
	}

	return &RpcClient{rcc.ServerAddr, rcc.Port, rcc.Username, rcc.Pwd, client}, nil
}

// Close the rpc client
func (r *RpcClient) Close() {
	r.client.Shutdown()
}

// Get the latest block height.
func (r *RpcClient) GetLatestBlockHeight() (int64, error) {
	return r.client.GetBlockCount()
}

// Get the block height by providing block hash.
func (r *RpcClient) GetBlockHeightByHash(blockHash *chainhash.Hash) (int32, error) {
	blockHeaderVerbose, err := r.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return 0, err
	}
	return blockHeaderVerbose.Height, nil
}

func (r *RpcClient) GetBlockHash(height int64) (*chainhash.Hash, error) {
	return r.client.GetBlockHash(height)
}

func (r *RpcClient) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	return r.client.GetBlock(hash)
}

// MedianTime is the median time past of the chain tip. Absolute lock times
// are checked against it, not against the wall clock.
func (r *RpcClient) MedianTime() (time.Time, error) {
	info, err := r.client.GetBlockChainInfo()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get blockchain info: %w", err)
	}
	return time.Unix(info.MedianTime, 0), nil
}

// Generate a given number of blocks.
// This function is useful for testing purposes.
// Unfortunately, the original r.client.Generate() is deprecated in the library.
func (r *RpcClient) GenerateBlocks(numBlocks int64, coinbase btcutil.Address) ([]*chainhash.Hash, error) {
	return r.client.GenerateToAddress(numBlocks, coinbase, nil)
}

// Pay amount to addr from the node wallet. Regtest tests fund htlcs with it.
func (r *RpcClient) SendToAddress(addr btcutil.Address, amount btcutil.Amount) (*chainhash.Hash, error) {
	return r.client.SendToAddress(addr, amount)
}
