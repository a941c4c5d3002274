package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	logger "github.com/sirupsen/logrus"

	btcrpc "github.com/TEENet-io/swap-go/btcman/rpc"
	"github.com/TEENet-io/swap-go/common"
	"github.com/TEENet-io/swap-go/secret"
)

var ErrNoSeed = errors.New("either a seed or a mnemonic must be configured")

// fileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// Shared Helper function. Create a btc rpc client.
func SetupBtcRpc(server string, port string, username string, password string) (*btcrpc.RpcClient, error) {
	_config := btcrpc.RpcClientConfig{
		ServerAddr: server,
		Port:       port,
		Username:   username,
		Pwd:        password,
	}
	r, err := btcrpc.NewRpcClient(&_config)
	if err != nil {
		logger.WithField("server", server+":"+port).Errorf("failed to create btc rpc client: %v", err)
		return nil, err
	}
	return r, nil
}

// ParseSeed reads the node seed from its hex form, or derives it from a
// mnemonic when no hex seed is given.
func ParseSeed(seedHex string, mnemonic string) (secret.Seed, error) {
	switch {
	case seedHex != "":
		b, err := hex.DecodeString(common.Trim0xPrefix(seedHex))
		if err != nil {
			return secret.Seed{}, fmt.Errorf("%w: %v", secret.ErrInvalidSeed, err)
		}
		return secret.SeedFromBytes(b)
	case mnemonic != "":
		return secret.SeedFromMnemonic(mnemonic, "")
	}
	return secret.Seed{}, ErrNoSeed
}

// ParseBtcChainConfig maps "regtest", "testnet" or "mainnet" to chain params.
func ParseBtcChainConfig(name string) (*chaincfg.Params, error) {
	switch name {
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "regtest", "":
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("unknown btc chain config %q", name)
}
